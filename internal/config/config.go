// Package config loads the terminal configuration from environment
// variables, with defaults suitable for a single-register deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the offline/sync subsystem.
type Config struct {
	DataDir    string
	ListenAddr string
	LogLevel   string

	RemoteURL     string
	RemoteTimeout time.Duration

	DeviceID string
	UserID   string

	SyncInterval    time.Duration
	SyncMaxRetries  int
	SyncBackoffBase time.Duration

	QueueMaxSize    int
	QueueMaxRetries int
	QueueInterval   time.Duration

	BackupInterval  time.Duration
	BackupRetention int

	CacheMaxAge time.Duration

	ConnectivityPollInterval time.Duration
	ConnectivityDebounce     time.Duration
	ConnectivitySettleDelay  time.Duration
}

// Load reads configuration from the environment. REMOTE_URL is required for
// the daemon; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:    getEnv("DATA_DIR", "./data"),
		ListenAddr: getEnv("LISTEN_ADDR", "127.0.0.1:8090"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		RemoteURL:  os.Getenv("REMOTE_URL"),
		DeviceID:   os.Getenv("DEVICE_ID"),
		UserID:     os.Getenv("USER_ID"),
	}

	var err error
	if cfg.RemoteTimeout, err = getDuration("REMOTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncMaxRetries, err = getInt("SYNC_MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.SyncBackoffBase, err = getDuration("SYNC_BACKOFF_BASE", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.QueueMaxSize, err = getInt("QUEUE_MAX_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.QueueMaxRetries, err = getInt("QUEUE_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.QueueInterval, err = getDuration("QUEUE_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackupInterval, err = getDuration("BACKUP_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BackupRetention, err = getInt("BACKUP_RETENTION", 10); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = getDuration("CACHE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ConnectivityPollInterval, err = getDuration("CONNECTIVITY_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConnectivityDebounce, err = getDuration("CONNECTIVITY_DEBOUNCE", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConnectivitySettleDelay, err = getDuration("CONNECTIVITY_SETTLE_DELAY", 3*time.Second); err != nil {
		return nil, err
	}

	if cfg.QueueMaxSize <= 0 {
		return nil, errors.New("QUEUE_MAX_SIZE must be positive")
	}
	if cfg.BackupRetention <= 0 {
		return nil, errors.New("BACKUP_RETENTION must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

func TestHTTPRemoteFetchDecodesSnapshot(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sync", r.URL.Path)
		assert.Equal(t, "d1", r.Header.Get("X-Device-Id"))
		assert.Equal(t, "u1", r.Header.Get("X-User-Id"))
		json.NewEncoder(w).Encode(models.Snapshot{
			Products: []models.Product{{ID: "p1"}},
			LastSync: base,
		})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	snap, err := remote.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Products, 1)
	assert.Equal(t, base, snap.LastSync)
}

func TestHTTPRemoteFetchNeverSyncedAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	snap, err := remote.Fetch(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap, "404 means the account has never synced, not an error")
}

func TestHTTPRemoteFetchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	_, err := remote.Fetch(context.Background())
	assert.True(t, errors.Is(err, errors.ErrRemoteUnavailable))
	assert.True(t, errors.IsTransient(err))
}

func TestHTTPRemoteFetchUnreachableEndpoint(t *testing.T) {
	remote := NewHTTPRemote("http://127.0.0.1:1", "d1", "u1", time.Second)
	_, err := remote.Fetch(context.Background())
	assert.True(t, errors.IsTransient(err))
}

func TestHTTPRemotePushReturnsAcknowledgedTimestamp(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	ack := base.Add(time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var snap models.Snapshot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&snap))
		assert.Len(t, snap.Products, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{"timestamp": ack})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	got, err := remote.Push(context.Background(), &models.Snapshot{
		Products: []models.Product{{ID: "p1"}},
		LastSync: base,
	})
	require.NoError(t, err)
	assert.Equal(t, ack, got)
}

func TestHTTPRemotePushFallsBackToLocalTimestamp(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	got, err := remote.Push(context.Background(), &models.Snapshot{LastSync: base})
	require.NoError(t, err)
	assert.Equal(t, base, got, "a remote that omits the timestamp keeps the local one")
}

func TestHTTPRemotePushRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "d1", "u1", time.Second)
	_, err := remote.Push(context.Background(), &models.Snapshot{})
	assert.True(t, errors.Is(err, errors.ErrSyncFailed))
	assert.False(t, errors.IsTransient(err))
}

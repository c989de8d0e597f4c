// Package sync implements the snapshot reconciler: the component that
// exchanges full snapshots with the remote counterpart, resolves divergence
// deterministically and applies the winning state to the local store.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

// Remote is the sync counterpart. Fetch returns (nil, nil) when the remote
// has never seen this account.
type Remote interface {
	Fetch(ctx context.Context) (*models.Snapshot, error)
	Push(ctx context.Context, snap *models.Snapshot) (time.Time, error)
}

// pushResponse is the remote's acknowledgement of an accepted snapshot.
type pushResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

// HTTPRemote talks to the sync endpoint over HTTP: GET /sync returns the
// account's snapshot, POST /sync persists one as authoritative.
type HTTPRemote struct {
	BaseURL  string
	DeviceID string
	UserID   string
	Client   *http.Client
}

// NewHTTPRemote builds an HTTPRemote with the given request timeout.
func NewHTTPRemote(baseURL, deviceID, userID string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		BaseURL:  baseURL,
		DeviceID: deviceID,
		UserID:   userID,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRemote) newRequest(ctx context.Context, method, body string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+"/sync", bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build sync request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Id", r.DeviceID)
	req.Header.Set("X-User-Id", r.UserID)
	return req, nil
}

func classifyTransport(err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(errors.ErrSyncTimeout, "sync request timed out", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrSyncTimeout, "sync request timed out", err)
	}
	return errors.Wrap(errors.ErrNetworkUnavailable, "sync endpoint unreachable", err)
}

// Fetch retrieves the remote snapshot. 404 means the account has never
// synced; 5xx and transport failures are transient.
func (r *HTTPRemote) Fetch(ctx context.Context) (*models.Snapshot, error) {
	req, err := r.newRequest(ctx, http.MethodGet, "")
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrRemoteUnavailable,
			fmt.Sprintf("sync endpoint returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(errors.ErrSyncFailed,
			fmt.Sprintf("sync fetch rejected with %d", resp.StatusCode))
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, errors.Wrap(errors.ErrSyncFailed, "malformed remote snapshot", err)
	}
	return &snap, nil
}

// Push uploads the local snapshot as the authoritative state and returns the
// timestamp the remote recorded for it.
func (r *HTTPRemote) Push(ctx context.Context, snap *models.Snapshot) (time.Time, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrInternal, "failed to encode snapshot", err)
	}
	req, err := r.newRequest(ctx, http.MethodPost, string(body))
	if err != nil {
		return time.Time{}, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return time.Time{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return time.Time{}, errors.New(errors.ErrRemoteUnavailable,
			fmt.Sprintf("sync endpoint returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return time.Time{}, errors.New(errors.ErrSyncFailed,
			fmt.Sprintf("sync push rejected with %d", resp.StatusCode))
	}

	var ack pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return time.Time{}, errors.Wrap(errors.ErrSyncFailed, "malformed push acknowledgement", err)
	}
	if ack.Timestamp.IsZero() {
		ack.Timestamp = snap.LastSync
	}
	return ack.Timestamp, nil
}

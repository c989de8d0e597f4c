// Package conflict decides which of two snapshots is authoritative during
// reconciliation. The rule is pluggable so a finer-grained merge strategy
// can replace last-writer-wins without touching the reconciliation flow.
package conflict

import (
	"github.com/smoocho/pos-terminal/internal/logging"
	"github.com/smoocho/pos-terminal/internal/models"
)

// Side names the winner of a resolution.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
	SideEqual  Side = "equal"
)

// Resolution is the outcome of comparing two snapshots. Exactly one side
// wins (or both are already consistent); there is never a field-level merge,
// and the losing side is fully overwritten by the caller.
type Resolution struct {
	Winner Side
	Local  *models.Snapshot
	Remote *models.Snapshot
}

// Winning returns the winning snapshot, or nil when the sides are equal.
func (r Resolution) Winning() *models.Snapshot {
	switch r.Winner {
	case SideLocal:
		return r.Local
	case SideRemote:
		return r.Remote
	}
	return nil
}

// Strategy resolves divergence between a local and a remote snapshot.
type Strategy interface {
	Resolve(local, remote *models.Snapshot) Resolution
	Name() string
}

// LastWriteWins picks the snapshot with the later lastSync instant. This is
// deliberately coarse, whole-snapshot resolution: a device offline for a long
// time may overwrite concurrent remote changes, which is the accepted
// trade-off for a single-terminal-at-a-time deployment. Wall-clock
// timestamps are compared, so clock skew between devices can let an older
// write win; the intended semantics of the original system are kept here.
type LastWriteWins struct{}

// Name returns the strategy identifier.
func (LastWriteWins) Name() string { return "last_write_wins" }

// Resolve compares lastSync instants. Strictly newer wins; equal means the
// datasets are already consistent.
func (LastWriteWins) Resolve(local, remote *models.Snapshot) Resolution {
	res := Resolution{Local: local, Remote: remote}

	switch {
	case local.LastSync.After(remote.LastSync):
		res.Winner = SideLocal
	case remote.LastSync.After(local.LastSync):
		res.Winner = SideRemote
	default:
		res.Winner = SideEqual
	}

	logging.Debug("Resolved snapshot divergence", map[string]interface{}{
		"strategy":       "last_write_wins",
		"winner":         string(res.Winner),
		"localLastSync":  local.LastSync,
		"remoteLastSync": remote.LastSync,
	})
	return res
}

package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smoocho/pos-terminal/internal/models"
)

func snapAt(ts time.Time) *models.Snapshot {
	return &models.Snapshot{LastSync: ts}
}

func TestLastWriteWinsPicksNewerSide(t *testing.T) {
	base := time.Unix(1700000000, 0)
	strategy := LastWriteWins{}

	newer := snapAt(base.Add(time.Minute))
	older := snapAt(base)

	res := strategy.Resolve(newer, older)
	assert.Equal(t, SideLocal, res.Winner)
	assert.Same(t, newer, res.Winning())

	res = strategy.Resolve(older, newer)
	assert.Equal(t, SideRemote, res.Winner)
	assert.Same(t, newer, res.Winning())
}

func TestLastWriteWinsEqualTimestamps(t *testing.T) {
	base := time.Unix(1700000000, 0)
	res := LastWriteWins{}.Resolve(snapAt(base), snapAt(base))
	assert.Equal(t, SideEqual, res.Winner)
	assert.Nil(t, res.Winning())
}

func TestLastWriteWinsIsDeterministic(t *testing.T) {
	base := time.Unix(1700000000, 0)
	local := snapAt(base.Add(time.Second))
	remote := snapAt(base)

	first := LastWriteWins{}.Resolve(local, remote)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Winner, LastWriteWins{}.Resolve(local, remote).Winner)
	}
}

func TestLastWriteWinsName(t *testing.T) {
	assert.Equal(t, "last_write_wins", LastWriteWins{}.Name())
}

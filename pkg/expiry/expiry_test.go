package expiry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
)

func newTestQueue() *Queue {
	return NewQueue(DefaultConfig(), logger.NewLogger("error"))
}

func TestSoonestReturnsEarliestExpiry(t *testing.T) {
	q := newTestQueue()
	q.Track(KindDeposit, "DEP-1", 5000)
	q.Track(KindWithdrawal, "WDR-1", 3000)
	q.Track(KindEscrow, "ESC-1", 4000)

	item, ok := q.Soonest()
	require.True(t, ok)
	assert.Equal(t, "WDR-1", item.Code)
	assert.EqualValues(t, 3000, item.ExpiresAt)
}

func TestUntrackRemovesItem(t *testing.T) {
	q := newTestQueue()
	q.Track(KindDeposit, "DEP-1", 5000)
	q.Track(KindWithdrawal, "WDR-1", 3000)

	q.Untrack("WDR-1")
	assert.Equal(t, 1, q.Size())

	item, ok := q.Soonest()
	require.True(t, ok)
	assert.Equal(t, "DEP-1", item.Code)
}

func TestTrackUpdatesExistingExpiry(t *testing.T) {
	q := newTestQueue()
	q.Track(KindEscrow, "ESC-1", 5000)
	q.Track(KindEscrow, "ESC-1", 1000)

	assert.Equal(t, 1, q.Size())
	item, ok := q.Soonest()
	require.True(t, ok)
	assert.EqualValues(t, 1000, item.ExpiresAt)
}

func TestOverdueReturnsOnlyExpiredItems(t *testing.T) {
	q := newTestQueue()
	q.Track(KindDeposit, "DEP-1", 1000)
	q.Track(KindDeposit, "DEP-2", 9000)

	overdue := q.Overdue(2000)
	require.Len(t, overdue, 1)
	assert.Equal(t, "DEP-1", overdue[0].Code)
}

func TestSoonestOnEmptyQueue(t *testing.T) {
	q := newTestQueue()
	_, ok := q.Soonest()
	assert.False(t, ok)
}

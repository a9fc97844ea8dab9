// Package expiry is an advisory observability queue over pending
// deposit/withdrawal requests and escrows, tracking whichever one is
// soonest to expire. Adapted from pkg/mempool's container/heap priority
// queue and cleanupLoop: the teacher evicted the lowest-priority
// transaction past its max age, this tracks the soonest-expiring C1
// record so an operator dashboard can see what is about to lapse.
//
// This queue does not itself expire anything — ledger.Store's lazy
// sweep on GetDepositRequest/GetWithdrawalRequest/GetEscrow is the only
// place state actually transitions to Expired. A tracked item surviving
// past its ExpiresAt here just means nobody has read it from the store
// yet to trigger that sweep.
package expiry

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/afritokeni/platform/internal/logger"
)

// Kind identifies which C1 record an Item tracks.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindEscrow     Kind = "escrow"
)

// Item is one tracked pending record.
type Item struct {
	Kind      Kind
	Code      string
	ExpiresAt int64 // unix seconds
	index     int   // heap bookkeeping
}

// Config holds queue configuration.
type Config struct {
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{CleanupInterval: 5 * time.Minute}
}

// Queue tracks pending records ordered by soonest expiry.
type Queue struct {
	config Config
	log    *logger.Logger

	mu    sync.Mutex
	items map[string]*Item // Code -> Item, for O(1) existence checks
	heap  expiryHeap

	stopChan chan struct{}
}

// NewQueue creates a new expiry observability queue.
func NewQueue(cfg Config, log *logger.Logger) *Queue {
	q := &Queue{
		config:   cfg,
		log:      log,
		items:    make(map[string]*Item),
		heap:     make(expiryHeap, 0),
		stopChan: make(chan struct{}),
	}
	heap.Init(&q.heap)
	return q
}

// Start starts the background cleanup goroutine.
func (q *Queue) Start(ctx context.Context) error {
	q.log.WithField("cleanup_interval", q.config.CleanupInterval).Info("starting expiry queue")
	go q.cleanupLoop()
	return nil
}

// Stop stops the cleanup goroutine.
func (q *Queue) Stop() {
	close(q.stopChan)
}

// Track adds or updates a pending record's expiry.
func (q *Queue) Track(kind Kind, code string, expiresAt int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.items[code]; ok {
		existing.ExpiresAt = expiresAt
		heap.Fix(&q.heap, existing.index)
		return
	}

	item := &Item{Kind: kind, Code: code, ExpiresAt: expiresAt}
	q.items[code] = item
	heap.Push(&q.heap, item)
}

// Untrack removes a record once it settles (confirmed, claimed,
// cancelled) so it stops showing up as "about to expire".
func (q *Queue) Untrack(code string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[code]
	if !ok {
		return
	}
	delete(q.items, code)
	heap.Remove(&q.heap, item.index)
}

// Soonest returns the record nearest to expiring, if any.
func (q *Queue) Soonest() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return Item{}, false
	}
	return *q.heap[0], true
}

// Overdue returns every tracked record whose ExpiresAt is at or before
// now, without removing them — the caller decides whether to read the
// underlying store (triggering its lazy sweep) or just surface a
// warning.
func (q *Queue) Overdue(now int64) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var overdue []Item
	for _, item := range q.heap {
		if item.ExpiresAt <= now {
			overdue = append(overdue, *item)
		}
	}
	return overdue
}

// Size returns the number of tracked records.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) cleanupLoop() {
	ticker := time.NewTicker(q.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			overdue := q.Overdue(time.Now().Unix())
			if len(overdue) > 0 {
				q.log.WithField("overdue", len(overdue)).Warn("expiry queue has overdue records pending a store read")
			}
		case <-q.stopChan:
			return
		}
	}
}

// expiryHeap implements heap.Interface, ordered soonest-expiry-first.
type expiryHeap []*Item

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	return h[i].ExpiresAt < h[j].ExpiresAt
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x interface{}) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

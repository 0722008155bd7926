package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// MemoryLedger keeps rows in process memory. Used for local runs and tests.
type MemoryLedger struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
	err   error
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{items: make(map[string]Item), now: time.Now}
}

// FailWith makes every later write fail with err; nil restores writes.
func (l *MemoryLedger) FailWith(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *MemoryLedger) PutStatus(ctx context.Context, objectName, jobID string, state domain.State, extra map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return storageError(objectName, jobID, l.err)
	}
	item := BuildItem(objectName, jobID, state, extra, l.now())
	l.items[item[AttrPK].(string)] = item
	return nil
}

// Get returns a copy of the row stored under pk.
func (l *MemoryLedger) Get(pk string) (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[pk]
	if !ok {
		return nil, false
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out, true
}

// Len returns the number of rows.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

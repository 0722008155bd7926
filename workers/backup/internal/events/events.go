// Package events publishes terminal job events so downstream consumers
// learn about finished backups without polling the ledger.
package events

import (
	"context"
	"sync"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// Event types.
const (
	TypeCompleted = "backup.completed"
	TypeFailed    = "backup.failed"
)

// Event is one terminal state change.
type Event struct {
	Type           string                `json:"type"`
	ObjectName     string                `json:"objectName"`
	JobID          string                `json:"jobId"`
	State          domain.State          `json:"state"`
	S3Keys         []string              `json:"s3Keys,omitempty"`
	Error          string                `json:"error,omitempty"`
	OccurredAt     string                `json:"occurredAt"`
	RequestDetails domain.RequestDetails `json:"requestDetails,omitempty"`
}

// Publisher sends events. Delivery is at least once.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event Event) error { return nil }

// MemoryPublisher keeps events in memory. Used for local runs and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// FailWith makes later publishes fail with err.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of what was published.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Package publisher emits audit events to a store.
//
// The publisher runs in one of two modes. Synchronous mode is fail-closed:
// Emit blocks until the store write succeeds and compliance-grade callers
// must fail their operation when it errors. Async mode buffers operational
// events in a ring buffer and drains them in the background, dropping the
// oldest under pressure rather than blocking the caller.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	audit "onboard/pkg/platform/audit"
)

// Publisher emits audit events to the configured store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer *RingBuffer
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with a ring buffer of the
// given capacity. Without it every Emit is a synchronous store write.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher over the store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drainLoop()
	}
	return p
}

// Emit records an audit event. The category is derived from the action and
// a zero timestamp is filled in. In synchronous mode a store failure is
// returned to the caller; in async mode Emit never blocks on the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.buffer == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "audit append failed",
				"action", event.Action,
				"process_id", event.ProcessID,
				"error", err,
			)
			return fmt.Errorf("audit persistence failed: %w", err)
		}
		return nil
	}

	p.buffer.Enqueue(event)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// List returns events recorded for the process.
func (p *Publisher) List(ctx context.Context, processID string) ([]audit.Event, error) {
	return p.store.ListByProcess(ctx, processID)
}

func (p *Publisher) drainLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			p.flush()
			return
		case <-p.wake:
			p.flush()
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	for {
		batch := p.buffer.DequeueBatch(100)
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, event := range batch {
			if err := p.store.Append(ctx, event); err != nil {
				p.logger.Error("audit append failed, event lost",
					"action", event.Action,
					"process_id", event.ProcessID,
					"error", err,
				)
			}
		}
		cancel()
	}
}

// Close drains any buffered events and stops the background worker.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return nil
}

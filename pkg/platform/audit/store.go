package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent
// use; the postgres store writes through a transactional outbox so events
// survive the originating transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProcess(ctx context.Context, processID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

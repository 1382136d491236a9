package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "onboard/pkg/platform/audit"
	txcontext "onboard/pkg/platform/tx"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the audit table and the outbox in the caller's
// transaction; the outbox relay publishes them to Kafka afterwards.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes through the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for deserialization by downstream consumers.
type outboxPayload struct {
	ID                     string `json:"ID"`
	Category               string `json:"Category"`
	Timestamp              string `json:"Timestamp"`
	UserID                 string `json:"UserID,omitempty"`
	ProcessID              string `json:"ProcessID,omitempty"`
	IdentityVerificationID string `json:"IdentityVerificationID,omitempty"`
	Subject                string `json:"Subject,omitempty"`
	Action                 string `json:"Action"`
	Detail                 string `json:"Detail,omitempty"`
	RequestID              string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the audit table and the outbox in one
// round. When the context carries a transaction both writes join it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()
	if event.Category != "" {
		category = event.Category
	}

	payload := outboxPayload{
		ID:                     eventID.String(),
		Category:               string(category),
		Timestamp:              event.Timestamp.Format(time.RFC3339Nano),
		UserID:                 event.UserID,
		ProcessID:              event.ProcessID,
		IdentityVerificationID: event.IdentityVerificationID,
		Subject:                event.Subject,
		Action:                 event.Action,
		Detail:                 event.Detail,
		RequestID:              event.RequestID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.ProcessID != "" {
		aggregateType = "process"
		aggregateID = event.ProcessID
	}

	ex := s.execer(ctx)

	_, err = ex.ExecContext(ctx, `
		INSERT INTO audit_event (
			id, category, timestamp, user_id, process_id,
			identity_verification_id, subject, action, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		eventID,
		string(category),
		event.Timestamp,
		event.UserID,
		event.ProcessID,
		event.IdentityVerificationID,
		event.Subject,
		event.Action,
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByProcess returns events for a specific process.
func (s *Store) ListByProcess(ctx context.Context, processID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, timestamp, user_id, process_id,
		       identity_verification_id, subject, action, detail, request_id
		FROM audit_event
		WHERE process_id = $1
		ORDER BY timestamp DESC`, processID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, timestamp, user_id, process_id,
		       identity_verification_id, subject, action, detail, request_id
		FROM audit_event
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category string
			event    audit.Event
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.UserID,
			&event.ProcessID,
			&event.IdentityVerificationID,
			&event.Subject,
			&event.Action,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// OutboxEntry is one unpublished outbox row awaiting relay to Kafka.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
}

// NextUnpublished returns up to limit unpublished outbox entries in
// insertion order. Rows are locked with SKIP LOCKED so concurrent relays
// never double-publish.
func (s *Store) NextUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps the outbox entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = now() WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

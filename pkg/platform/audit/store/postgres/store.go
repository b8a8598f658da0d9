package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "trustee/pkg/domain"
	audit "trustee/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the
// relay. Kafka is the source of truth for downstream consumers.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id UUID PRIMARY KEY,
	category TEXT NOT NULL,
	beneficiary TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx
	ON audit_outbox (created_at) WHERE published_at IS NULL;
CREATE INDEX IF NOT EXISTS audit_outbox_beneficiary_idx
	ON audit_outbox (beneficiary);
`

// Migrate creates the outbox table. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit outbox: %w", err)
	}
	return nil
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for deserialization by consumers.
type outboxPayload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	Action      string `json:"Action"`
	Funder      string `json:"Funder,omitempty"`
	Beneficiary string `json:"Beneficiary,omitempty"`
	Actor       string `json:"Actor,omitempty"`
	Amount      string `json:"Amount,omitempty"`
	Code        int    `json:"Code,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Always derive category from action - eventCategories is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Amount:    event.Amount,
		Code:      event.Code,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	if !event.Funder.IsZero() {
		payload.Funder = event.Funder.String()
	}
	if !event.Beneficiary.IsZero() {
		payload.Beneficiary = event.Beneficiary.String()
	}
	if !event.Actor.IsZero() {
		payload.Actor = event.Actor.String()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_outbox (id, category, beneficiary, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		eventID, string(category), event.Beneficiary.String(), raw, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit outbox: %w", err)
	}
	return nil
}

// ListByBeneficiary returns events for a beneficiary in append order.
func (s *Store) ListByBeneficiary(ctx context.Context, beneficiary id.Address) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_outbox WHERE beneficiary = $1 ORDER BY created_at`,
		beneficiary.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event, err := decodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func decodePayload(raw []byte) (audit.Event, error) {
	var p outboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("decode audit payload: %w", err)
	}
	event := audit.Event{
		Category:  audit.EventCategory(p.Category),
		Action:    p.Action,
		Amount:    p.Amount,
		Code:      p.Code,
		Reason:    p.Reason,
		RequestID: p.RequestID,
	}
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}
	if p.Funder != "" {
		if a, err := id.ParseAddress(p.Funder); err == nil {
			event.Funder = a
		}
	}
	if p.Beneficiary != "" {
		if a, err := id.ParseAddress(p.Beneficiary); err == nil {
			event.Beneficiary = a
		}
	}
	if p.Actor != "" {
		if a, err := id.ParseAddress(p.Actor); err == nil {
			event.Actor = a
		}
	}
	return event, nil
}

// OutboxRow is an unpublished event awaiting relay to Kafka.
type OutboxRow struct {
	ID       uuid.UUID
	Category string
	Payload  []byte
}

// NextBatch returns up to limit unpublished rows in creation order.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, payload FROM audit_outbox
		 WHERE published_at IS NULL ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	defer rows.Close()

	var batch []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Category, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// MarkPublished stamps rows as relayed so they are never re-sent.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, eventID := range ids {
		strs[i] = eventID.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1::uuid[])`,
		pq.Array(strs),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

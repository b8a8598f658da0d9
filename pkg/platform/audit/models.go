package audit

import (
	"context"
	"time"

	id "trustee/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Grant issuance and revocation move beneficiary entitlements and
	// require tamper-proof storage with long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Owner-only withdrawals and rejected admissions feed alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	// Unlock traffic is high-volume and can be sampled downstream.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key ledger actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	Action      string
	Funder      id.Address // who supplied the tokens, zero when n/a
	Beneficiary id.Address
	Actor       id.Address // authenticated caller
	Amount      string     // decimal base units, "" when n/a
	Code        int        // soft error code, 0 when n/a
	Reason      string
	RequestID   string
}

// AuditEvent names a ledger action.
type AuditEvent string

const (
	EventGrantCreated     AuditEvent = "grant_created"
	EventGrantRevoked     AuditEvent = "grant_revoked"
	EventTokensUnlocked   AuditEvent = "tokens_unlocked"
	EventUnlockRejected   AuditEvent = "unlock_rejected"
	EventSurplusWithdrawn AuditEvent = "surplus_withdrawn"
	EventAssetRescued     AuditEvent = "asset_rescued"
)

// eventCategories maps each audit event to its category and is the single
// source of truth for routing.
var eventCategories = map[AuditEvent]EventCategory{
	EventGrantCreated: CategoryCompliance,
	EventGrantRevoked: CategoryCompliance,

	EventSurplusWithdrawn: CategorySecurity,
	EventAssetRescued:     CategorySecurity,

	EventTokensUnlocked: CategoryOperations,
	EventUnlockRejected: CategoryOperations,
}

// Category returns the category for the event, defaulting to operations for
// unknown actions so nothing is silently dropped.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be safe for concurrent
// use; the worker and HTTP handlers may append at the same time.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByBeneficiary(ctx context.Context, beneficiary id.Address) ([]Event, error)
}

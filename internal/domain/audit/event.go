// Package audit defines the append-only trail the reconciliation engine
// writes for every decision an operator may need to review.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Type groups audit events by the component that produced them
type Type string

const (
	TypeWebhook       Type = "WEBHOOK"
	TypeVOP           Type = "VOP"
	TypeMatching      Type = "MATCHING"
	TypeLedger        Type = "LEDGER"
	TypePolling       Type = "POLLING"
	TypeBalanceCheck  Type = "BALANCE_CHECK"
	TypeTopUpExpiry   Type = "TOPUP_EXPIRY"
	TypeManualResolve Type = "MANUAL_RESOLUTION"
	TypeScheduler     Type = "SCHEDULER"
)

// Severity of an audit event
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Actions recorded by the engine
const (
	ActionTopUpCredited      = "topup_credited"
	ActionOrderPaid          = "order_payment_received"
	ActionUnmatched          = "unmatched"
	ActionHeldForVOP         = "held_for_vop_review"
	ActionMalformedPayload   = "malformed_payload"
	ActionProcessingFailed   = "processing_failed"
	ActionRecipientUnknown   = "cannot_determine_recipient"
	ActionPollingSummary     = "polling_summary"
	ActionBalanceMismatch    = "balance_mismatch"
	ActionReconciliationFail = "reconciliation_failed"
	ActionTopUpsExpired      = "topups_expired"
	ActionJobFailed          = "job_failed"
)

// Event is one immutable audit record
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Type          Type           `json:"type"`
	Severity      Severity       `json:"severity"`
	Action        string         `json:"action"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Actor         string         `json:"actor"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SystemActor is recorded for automated decisions
const SystemActor = "system"

// NewEvent builds an audit record stamped with a fresh id and the current time
func NewEvent(eventType Type, severity Severity, action, reason string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Severity:  severity,
		Action:    action,
		Actor:     SystemActor,
		Reason:    reason,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

// ForTransaction links the record to a provider transaction id
func (e *Event) ForTransaction(providerTransactionID string) *Event {
	e.TransactionID = providerTransactionID
	return e
}

// By records who took the action
func (e *Event) By(actor string) *Event {
	if actor != "" {
		e.Actor = actor
	}
	return e
}

// With adds a metadata entry
func (e *Event) With(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[key] = value
	return e
}

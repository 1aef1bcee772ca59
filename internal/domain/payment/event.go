// Package payment models provider credit notifications after normalization.
// Every ingestion path (webhook, polling recovery, retry queue) produces an
// Event, and all matching logic depends only on this shape.
package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction of funds relative to the segregated account
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Source identifies which ingestion path produced the event
type Source string

const (
	SourceWebhook Source = "WEBHOOK"
	SourcePolling Source = "POLLING"
)

// VOPStatus is the provider's Verification of Payee outcome
type VOPStatus string

const (
	VOPMatch       VOPStatus = "MATCH"
	VOPCloseMatch  VOPStatus = "CLOSE_MATCH"
	VOPNoMatch     VOPStatus = "NO_MATCH"
	VOPNotPossible VOPStatus = "NOT_POSSIBLE"
)

// Status is the reconciliation state of an event
type Status string

const (
	StatusNew          Status = "NEW"
	StatusHeldVOP      Status = "HELD_VOP"
	StatusMatchedTopUp Status = "MATCHED_TOPUP"
	StatusMatchedOrder Status = "MATCHED_ORDER"
	StatusUnmatched    Status = "UNMATCHED"
)

// transitions lists the allowed moves. HELD_VOP and UNMATCHED only leave
// through manual resolution onto a MATCHED_* state.
var transitions = map[Status][]Status{
	StatusNew:       {StatusHeldVOP, StatusMatchedTopUp, StatusMatchedOrder, StatusUnmatched},
	StatusHeldVOP:   {StatusMatchedTopUp, StatusMatchedOrder},
	StatusUnmatched: {StatusMatchedTopUp, StatusMatchedOrder},
}

// CanTransition reports whether an event may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether automation leaves events in this status alone.
func (s Status) IsTerminal() bool {
	return s != StatusNew
}

// Event is a normalized provider payment notification
type Event struct {
	ID                    uuid.UUID       `json:"id"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	SegregatedAccountID   string          `json:"segregated_account_id"`
	Amount                int64           `json:"amount"` // Stored in minor units
	Currency              string          `json:"currency"`
	Direction             Direction       `json:"direction"`
	BeneficiaryIBAN       string          `json:"beneficiary_iban,omitempty"`
	SenderName            string          `json:"sender_name,omitempty"`
	SenderIBAN            string          `json:"sender_iban,omitempty"`
	Reference             string          `json:"reference,omitempty"`
	VOPStatus             VOPStatus       `json:"vop_status,omitempty"`
	RawPayload            json.RawMessage `json:"raw_payload,omitempty"`
	Source                Source          `json:"source"`
	Status                Status          `json:"status"`
	StatusReason          string          `json:"status_reason,omitempty"`
	MatchedTopUpID        *uuid.UUID      `json:"matched_topup_id,omitempty"`
	MatchedOrderID        *uuid.UUID      `json:"matched_order_id,omitempty"`
	ReceivedAt            time.Time       `json:"received_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TransitionTo moves the event to a new status, recording the reason.
func (e *Event) TransitionTo(to Status, reason string) error {
	if !CanTransition(e.Status, to) {
		return ErrInvalidTransition{EventID: e.ID, From: e.Status, To: to}
	}
	e.Status = to
	e.StatusReason = reason
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsCredit reports whether the event moves funds into the segregated account
func (e *Event) IsCredit() bool {
	return e.Direction == DirectionCredit
}

// ErrInvalidTransition indicates a status change that would break monotonicity
type ErrInvalidTransition struct {
	EventID uuid.UUID
	From    Status
	To      Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transaction event %s cannot move from %s to %s", e.EventID, e.From, e.To)
}

// Is matches any ErrInvalidTransition
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}

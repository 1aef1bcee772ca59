// Package topup models user-initiated intents to fund a virtual IBAN.
package topup

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viban-reconciler/internal/domain/shared"
)

var (
	ErrEmptyReference = errors.New("reference cannot be empty")
	ErrNotPending     = errors.New("top-up request is not pending")
)

// Status of a top-up request
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusMatched   Status = "MATCHED"
	StatusCompleted Status = "COMPLETED"
	StatusExpired   Status = "EXPIRED"
)

// Request is an expected incoming transfer identified by a unique reference code
type Request struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	Reference      string     `json:"reference"`
	ExpectedAmount int64      `json:"expected_amount"` // Stored in minor units
	Currency       string     `json:"currency"`
	Status         Status     `json:"status"`
	MatchedEventID *uuid.UUID `json:"matched_event_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewRequest creates a PENDING request that expires after ttl
func NewRequest(accountID uuid.UUID, reference string, expectedAmount int64, currency string, ttl time.Duration) (*Request, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrEmptyReference
	}
	if expectedAmount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	currency, err := shared.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Request{
		ID:             uuid.New(),
		AccountID:      accountID,
		Reference:      reference,
		ExpectedAmount: expectedAmount,
		Currency:       currency,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}, nil
}

// IsExpired reports whether the request can no longer be matched at t
func (r *Request) IsExpired(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}

// Accepts reports whether a credit with this reference and amount settles the request
func (r *Request) Accepts(reference string, amount int64, currency string, tolerance int64, now time.Time) bool {
	return r.Status == StatusPending &&
		!r.IsExpired(now) &&
		reference != "" &&
		r.Reference == reference &&
		r.Currency == currency &&
		shared.WithinTolerance(r.ExpectedAmount, amount, tolerance)
}

// Complete marks the request as settled by a transaction event
func (r *Request) Complete(eventID uuid.UUID, at time.Time) error {
	if r.Status != StatusPending && r.Status != StatusMatched {
		return ErrNotPending
	}
	r.Status = StatusCompleted
	r.MatchedEventID = &eventID
	r.CompletedAt = &at
	return nil
}

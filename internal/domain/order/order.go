// Package order exposes the slice of the crypto order ledger that payment
// reconciliation depends on.
package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotAwaitingPayment = errors.New("order is not awaiting payment")

// Status of a crypto purchase order
type Status string

const (
	StatusPendingPayment  Status = "PENDING_PAYMENT"
	StatusPaymentReceived Status = "PAYMENT_RECEIVED"
)

// Order is a crypto purchase awaiting a fiat transfer
type Order struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	ExpectedAmount int64      `json:"expected_amount"` // Stored in minor units
	Currency       string     `json:"currency"`
	Status         Status     `json:"status"`
	PaymentEventID *uuid.UUID `json:"payment_event_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

// MarkPaid links the order to the transaction event that funded it
func (o *Order) MarkPaid(eventID uuid.UUID, at time.Time) error {
	if o.Status != StatusPendingPayment {
		return ErrNotAwaitingPayment
	}
	o.Status = StatusPaymentReceived
	o.PaymentEventID = &eventID
	o.PaidAt = &at
	return nil
}

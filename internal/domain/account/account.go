package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
)

var (
	ErrEmptyIBAN          = errors.New("IBAN cannot be empty")
	ErrEmptySegregatedID  = errors.New("segregated account id cannot be empty")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrNonPositiveCredit  = errors.New("credit amount must be positive")
	ErrCurrencyMismatch   = errors.New("currency does not match account currency")
	ErrNegativeBalanceSum = errors.New("balance cannot be negative")
)

// Status of a virtual IBAN account
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Account is a per-user virtual IBAN routed through a segregated account.
// Balance is authoritative and only the ledger mutator changes it.
type Account struct {
	ID                  uuid.UUID `json:"id"`
	IBAN                string    `json:"iban"`
	OwnerID             string    `json:"owner_id"`
	Currency            string    `json:"currency"`
	Balance             int64     `json:"balance"` // Stored in minor units
	Status              Status    `json:"status"`
	SegregatedAccountID string    `json:"segregated_account_id"`
	Version             int       `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewAccount creates an ACTIVE account with a zero balance
func NewAccount(iban, ownerID, currency, segregatedAccountID string) (*Account, error) {
	iban = payment.NormalizeIBAN(iban)
	if iban == "" {
		return nil, ErrEmptyIBAN
	}
	if segregatedAccountID == "" {
		return nil, ErrEmptySegregatedID
	}
	currency, err := shared.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Account{
		ID:                  uuid.New(),
		IBAN:                iban,
		OwnerID:             ownerID,
		Currency:            currency,
		Status:              StatusActive,
		SegregatedAccountID: segregatedAccountID,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// IsActive reports whether the account can receive funds
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// CanReceive checks an incoming credit against the account before mutation
func (a *Account) CanReceive(amount int64, currency string) error {
	if !a.IsActive() {
		return ErrAccountNotActive
	}
	if amount <= 0 {
		return ErrNonPositiveCredit
	}
	if a.Currency != currency {
		return ErrCurrencyMismatch
	}
	return nil
}

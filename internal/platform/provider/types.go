package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusSettled is the only payment status the polling job acts on
const StatusSettled = "Settled"

// PaymentDetail is the primary API's view of one payment. It carries no
// beneficiary IBAN.
type PaymentDetail struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"createdAt"`
}

// IsSettled reports whether the payment reached its terminal success state
func (p *PaymentDetail) IsSettled() bool {
	return p.Status == StatusSettled
}

// TransactionDetails are the remittance fields of a booked transaction
type TransactionDetails struct {
	Reference  string `json:"reference,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	SenderIBAN string `json:"senderIban,omitempty"`
}

// Transaction is one booking from the secondary API, which does carry the IBAN
type Transaction struct {
	ID       string             `json:"id"`
	Amount   decimal.Decimal    `json:"amount"`
	Currency string             `json:"currency"`
	Credit   bool               `json:"credit"`
	IBAN     string             `json:"iban"`
	Details  TransactionDetails `json:"details"`
	BookedAt time.Time          `json:"bookedAt"`
}

// Balance is the provider's authoritative balance of a segregated account
type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type paymentListResponse struct {
	Payments []struct {
		ID string `json:"id"`
	} `json:"payments"`
}

type transactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
}

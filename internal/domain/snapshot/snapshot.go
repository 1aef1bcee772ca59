// Package snapshot holds the balance validator's immutable history.
package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/viban-reconciler/internal/domain/shared"
)

// AccountBalance is one line of the per-account breakdown
type AccountBalance struct {
	AccountID string `json:"account_id" bson:"account_id"`
	IBAN      string `json:"iban" bson:"iban"`
	Balance   int64  `json:"balance" bson:"balance"` // Stored in minor units
}

// Snapshot compares the provider's balance of a segregated account with the
// sum of the virtual IBAN balances grouped under it
type Snapshot struct {
	ID                  string           `json:"id" bson:"_id"`
	SegregatedAccountID string           `json:"segregated_account_id" bson:"segregated_account_id"`
	Currency            string           `json:"currency" bson:"currency"`
	ProviderTotal       int64            `json:"provider_total" bson:"provider_total"`
	LocalTotal          int64            `json:"local_total" bson:"local_total"`
	Difference          int64            `json:"difference" bson:"difference"` // provider minus local
	IsValid             bool             `json:"is_valid" bson:"is_valid"`
	Breakdown           []AccountBalance `json:"breakdown" bson:"breakdown"`
	CreatedAt           time.Time        `json:"created_at" bson:"created_at"`
}

// New computes the local total and verdict from a breakdown
func New(segregatedAccountID, currency string, providerTotal int64, breakdown []AccountBalance, tolerance int64) *Snapshot {
	var local int64
	for _, b := range breakdown {
		local += b.Balance
	}
	if breakdown == nil {
		breakdown = []AccountBalance{}
	}

	return &Snapshot{
		ID:                  uuid.NewString(),
		SegregatedAccountID: segregatedAccountID,
		Currency:            currency,
		ProviderTotal:       providerTotal,
		LocalTotal:          local,
		Difference:          providerTotal - local,
		IsValid:             shared.WithinTolerance(providerTotal, local, tolerance),
		Breakdown:           breakdown,
		CreatedAt:           time.Now().UTC().Truncate(time.Millisecond),
	}
}

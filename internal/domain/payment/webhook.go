package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viban-reconciler/internal/domain/shared"
)

var (
	ErrMissingTransactionID = errors.New("transactionId is required")
	ErrInvalidDirection     = errors.New("direction must be CREDIT or DEBIT")
)

// WebhookPayload is the provider's notification body. Polling recovery
// synthesizes the same shape so both paths share normalization.
type WebhookPayload struct {
	TransactionID string          `json:"transactionId"`
	AccountID     string          `json:"accountId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Direction     string          `json:"direction"`
	IBAN          string          `json:"iban,omitempty"`
	Details       PayloadDetails  `json:"details"`
	VOPStatus     string          `json:"vopStatus,omitempty"`
}

// PayloadDetails carries the optional remittance fields
type PayloadDetails struct {
	IBAN       string `json:"iban,omitempty"`
	Reference  string `json:"reference,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	SenderIBAN string `json:"senderIban,omitempty"`
}

// ErrMalformedPayload wraps any failure to turn a payload into an Event
type ErrMalformedPayload struct {
	Reason error
}

func (e ErrMalformedPayload) Error() string {
	return "malformed webhook payload: " + e.Reason.Error()
}

func (e ErrMalformedPayload) Unwrap() error {
	return e.Reason
}

// Is matches any ErrMalformedPayload
func (e ErrMalformedPayload) Is(target error) bool {
	_, ok := target.(ErrMalformedPayload)
	return ok
}

// ParseWebhook decodes a raw webhook body and normalizes it.
func ParseWebhook(raw []byte, receivedAt time.Time) (*Event, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedPayload{Reason: err}
	}
	return Normalize(&payload, raw, SourceWebhook, receivedAt)
}

// Normalize converts a payload into a NEW Event. raw is kept verbatim for audit;
// when nil the payload itself is marshalled.
func Normalize(payload *WebhookPayload, raw []byte, source Source, receivedAt time.Time) (*Event, error) {
	providerID := strings.TrimSpace(payload.TransactionID)
	if providerID == "" {
		return nil, ErrMalformedPayload{Reason: ErrMissingTransactionID}
	}

	currency, err := shared.NormalizeCurrency(payload.Currency)
	if err != nil {
		return nil, ErrMalformedPayload{Reason: err}
	}

	direction, err := normalizeDirection(payload.Direction, payload.Amount)
	if err != nil {
		return nil, ErrMalformedPayload{Reason: err}
	}

	amount, err := shared.ToMinorUnits(payload.Amount.Abs(), currency)
	if err != nil {
		return nil, ErrMalformedPayload{Reason: err}
	}
	if amount == 0 {
		return nil, ErrMalformedPayload{Reason: shared.ErrInvalidAmount}
	}

	iban := payload.IBAN
	if iban == "" {
		iban = payload.Details.IBAN
	}

	if raw == nil {
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	receivedAt = receivedAt.UTC()
	return &Event{
		ID:                    uuid.New(),
		ProviderTransactionID: providerID,
		SegregatedAccountID:   strings.TrimSpace(payload.AccountID),
		Amount:                amount,
		Currency:              currency,
		Direction:             direction,
		BeneficiaryIBAN:       NormalizeIBAN(iban),
		SenderName:            strings.TrimSpace(payload.Details.SenderName),
		SenderIBAN:            NormalizeIBAN(payload.Details.SenderIBAN),
		Reference:             strings.TrimSpace(payload.Details.Reference),
		VOPStatus:             VOPStatus(strings.ToUpper(strings.TrimSpace(payload.VOPStatus))),
		RawPayload:            json.RawMessage(raw),
		Source:                source,
		Status:                StatusNew,
		ReceivedAt:            receivedAt,
		UpdatedAt:             receivedAt,
	}, nil
}

// NormalizeIBAN strips whitespace and upper-cases an IBAN.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

func normalizeDirection(raw string, amount decimal.Decimal) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CREDIT", "CRDT", "IN", "INCOMING":
		if amount.IsNegative() {
			return "", ErrInvalidDirection
		}
		return DirectionCredit, nil
	case "DEBIT", "DBIT", "OUT", "OUTGOING":
		return DirectionDebit, nil
	case "":
		if amount.IsNegative() {
			return DirectionDebit, nil
		}
		return DirectionCredit, nil
	default:
		return "", ErrInvalidDirection
	}
}

package payment

// MatchType names the ledger an event was reconciled against
type MatchType string

const (
	MatchTypeTopUp MatchType = "topup_request"
	MatchTypeOrder MatchType = "order"
	MatchTypeNone  MatchType = "none"
)

// Outcome is the result of running an event through the ingestion pipeline
type Outcome struct {
	Success        bool
	TransactionID  string
	MatchType      MatchType
	Reconciled     bool
	RequiresReview bool
	Duplicate      bool
	Deferred       bool
	Message        string
}

// OutcomeFor describes the state an event currently sits in.
func OutcomeFor(event *Event) *Outcome {
	outcome := &Outcome{
		Success:       true,
		TransactionID: event.ProviderTransactionID,
		MatchType:     MatchTypeNone,
	}

	switch event.Status {
	case StatusMatchedTopUp:
		outcome.MatchType = MatchTypeTopUp
		outcome.Reconciled = true
		outcome.Message = "credited against top-up request"
	case StatusMatchedOrder:
		outcome.MatchType = MatchTypeOrder
		outcome.Reconciled = true
		outcome.Message = "payment linked to order"
	case StatusHeldVOP:
		outcome.RequiresReview = true
		outcome.Message = "held pending payee verification review"
	case StatusUnmatched:
		outcome.RequiresReview = true
		outcome.Message = "no matching top-up request or order; queued for manual reconciliation"
	default:
		outcome.Message = "received; matching pending"
	}
	if event.StatusReason != "" && !outcome.Reconciled {
		outcome.Message += ": " + event.StatusReason
	}
	return outcome
}

// DuplicateOutcome reports a replay of an event that already reached a final state.
func DuplicateOutcome(event *Event) *Outcome {
	outcome := OutcomeFor(event)
	outcome.Duplicate = true
	outcome.Message = "already processed: " + outcome.Message
	return outcome
}

// IgnoredOutcome acknowledges an event that needs no processing.
func IgnoredOutcome(event *Event, reason string) *Outcome {
	return &Outcome{
		Success:       true,
		TransactionID: event.ProviderTransactionID,
		MatchType:     MatchTypeNone,
		Message:       reason,
	}
}

// DeferredOutcome acknowledges an event whose processing outlived the response budget.
func DeferredOutcome(event *Event) *Outcome {
	return &Outcome{
		Success:       true,
		TransactionID: event.ProviderTransactionID,
		MatchType:     MatchTypeNone,
		Deferred:      true,
		Message:       "accepted; processing continues asynchronously",
	}
}

// FailedOutcome acknowledges an event whose processing failed internally.
func FailedOutcome(transactionID, reason string) *Outcome {
	return &Outcome{
		Success:       false,
		TransactionID: transactionID,
		MatchType:     MatchTypeNone,
		Message:       reason,
	}
}

package handler

// WebhookResponse acknowledges a provider callback. It is always sent with 200.
type WebhookResponse struct {
	Success        bool   `json:"success"`
	TransactionID  string `json:"transactionId"`
	MatchType      string `json:"matchType"`
	Reconciled     bool   `json:"reconciled"`
	RequiresReview bool   `json:"requiresReview"`
	Deferred       bool   `json:"deferred,omitempty"`
	Message        string `json:"message"`
}

// VerificationResponse answers the provider's endpoint check
type VerificationResponse struct {
	Status    string `json:"status"`
	Challenge string `json:"challenge,omitempty"`
}

// EventResponse represents a stored payment event in API responses
type EventResponse struct {
	ID                    string `json:"id"`
	ProviderTransactionID string `json:"provider_transaction_id"`
	SegregatedAccountID   string `json:"segregated_account_id"`
	Amount                int64  `json:"amount"`
	AmountDisplay         string `json:"amount_display"`
	Currency              string `json:"currency"`
	BeneficiaryIBAN       string `json:"beneficiary_iban,omitempty"`
	SenderName            string `json:"sender_name,omitempty"`
	SenderIBAN            string `json:"sender_iban,omitempty"`
	Reference             string `json:"reference,omitempty"`
	VOPStatus             string `json:"vop_status,omitempty"`
	Source                string `json:"source"`
	Status                string `json:"status"`
	StatusReason          string `json:"status_reason,omitempty"`
	MatchedTopUpID        string `json:"matched_topup_id,omitempty"`
	MatchedOrderID        string `json:"matched_order_id,omitempty"`
	ReceivedAt            string `json:"received_at"`
	UpdatedAt             string `json:"updated_at"`
}

// AuditResponse represents an audit record in API responses
type AuditResponse struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Severity      string         `json:"severity"`
	Action        string         `json:"action"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Actor         string         `json:"actor"`
	Reason        string         `json:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// EventDetailResponse is an event together with its audit trail
type EventDetailResponse struct {
	Event EventResponse   `json:"event"`
	Trail []AuditResponse `json:"audit_trail"`
}

// ResolveRequest is an operator's decision on an event awaiting review
type ResolveRequest struct {
	TopUpRequestID string `json:"top_up_request_id" binding:"omitempty,uuid"`
	OrderID        string `json:"order_id" binding:"omitempty,uuid"`
	Operator       string `json:"operator" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
}

// ResolveResponse reports the outcome of a manual resolution
type ResolveResponse struct {
	TransactionID string `json:"transaction_id"`
	MatchType     string `json:"match_type"`
	Reconciled    bool   `json:"reconciled"`
	Message       string `json:"message"`
}

// SnapshotResponse represents a balance snapshot in API responses
type SnapshotResponse struct {
	ID                  string                 `json:"id"`
	SegregatedAccountID string                 `json:"segregated_account_id"`
	Currency            string                 `json:"currency"`
	ProviderTotal       string                 `json:"provider_total"`
	LocalTotal          string                 `json:"local_total"`
	Difference          string                 `json:"difference"`
	IsValid             bool                   `json:"is_valid"`
	Breakdown           []AccountBalanceResult `json:"breakdown"`
	CreatedAt           string                 `json:"created_at"`
}

// AccountBalanceResult is one line of a snapshot breakdown
type AccountBalanceResult struct {
	AccountID string `json:"account_id"`
	IBAN      string `json:"iban"`
	Balance   string `json:"balance"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// EventListParams filters the reconciliation queue
type EventListParams struct {
	PaginationParams
	Status string `form:"status,default=UNMATCHED" binding:"oneof=NEW HELD_VOP MATCHED_TOPUP MATCHED_ORDER UNMATCHED"`
}

// AuditListParams filters recent audit events
type AuditListParams struct {
	Severity string `form:"severity" binding:"omitempty,oneof=INFO WARNING ERROR CRITICAL"`
	Limit    int    `form:"limit,default=50" binding:"min=1,max=500"`
}

// SnapshotListParams bounds the snapshot history query
type SnapshotListParams struct {
	PaginationParams
	From string `form:"from" binding:"omitempty"`
	To   string `form:"to" binding:"omitempty"`
}

// Package alert models critical pages sent to the on-call channel and the
// outbox rows that make their delivery durable.
package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viban-reconciler/internal/domain/shared"
)

// Alert is a page for a human operator
type Alert struct {
	ID       uuid.UUID      `json:"id"`
	Title    string         `json:"title"`
	Source   string         `json:"source"`
	Details  map[string]any `json:"details,omitempty"`
	RaisedAt time.Time      `json:"raised_at"`
}

// New builds an alert raised now
func New(source, title string, details map[string]any) *Alert {
	return &Alert{
		ID:       uuid.New(),
		Title:    title,
		Source:   source,
		Details:  details,
		RaisedAt: time.Now().UTC(),
	}
}

// Pager delivers critical alerts. Implementations must not fail the caller.
type Pager interface {
	PageCritical(ctx context.Context, alert *Alert)
}

// Message stores an alert for reliable publishing
type Message struct {
	ID            int64               `json:"id"`
	AlertID       uuid.UUID           `json:"alert_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(alert *Alert) (*Message, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, err
	}

	return &Message{
		AlertID:   alert.ID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetAlert extracts the alert from the payload
func (m *Message) GetAlert() (*Alert, error) {
	var a Alert
	if err := json.Unmarshal(m.Payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

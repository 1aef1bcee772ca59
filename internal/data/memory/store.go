// Package memory provides in-process implementations of the repositories.
// Transactions are serialized and roll back by restoring a copy of the state
// taken when they began, which is enough to exercise the reconciliation
// pipeline's atomicity and idempotency without a database.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/domain/topup"
)

// ErrInjected is returned by operations configured to fail
var ErrInjected = errors.New("injected failure")

// memTx marks a repository as bound to a transaction
type memTx struct {
	pgx.Tx
}

type state struct {
	events     map[uuid.UUID]*payment.Event
	byProvider map[string]uuid.UUID
	accounts   map[uuid.UUID]*account.Account
	topups     map[uuid.UUID]*topup.Request
	orders     map[uuid.UUID]*order.Order
	audits     []*audit.Event
	alerts     []*alert.Message
}

// Store holds every in-memory table
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	state

	nextAlertID int64
	snapshots   []*snapshot.Snapshot
	failures    map[string]error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		state: state{
			events:     map[uuid.UUID]*payment.Event{},
			byProvider: map[string]uuid.UUID{},
			accounts:   map[uuid.UUID]*account.Account{},
			topups:     map[uuid.UUID]*topup.Request{},
			orders:     map[uuid.UUID]*order.Order{},
		},
		failures: map[string]error{},
	}
}

// Fail makes the named operation return err until cleared with a nil err.
// Operation names are "<table>.<method>", e.g. "audit.Append".
func (s *Store) Fail(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, operation)
		return
	}
	s.failures[operation] = err
}

func (s *Store) failure(operation string) error {
	return s.failures[operation]
}

// ExecuteTx runs fn with exclusive access to transactional writes. The state
// is restored if fn returns an error.
func (s *Store) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	saved := s.state.clone()
	s.mu.Unlock()

	if err := fn(memTx{}); err != nil {
		s.mu.Lock()
		s.state = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st state) clone() state {
	c := state{
		events:     make(map[uuid.UUID]*payment.Event, len(st.events)),
		byProvider: make(map[string]uuid.UUID, len(st.byProvider)),
		accounts:   make(map[uuid.UUID]*account.Account, len(st.accounts)),
		topups:     make(map[uuid.UUID]*topup.Request, len(st.topups)),
		orders:     make(map[uuid.UUID]*order.Order, len(st.orders)),
		audits:     append([]*audit.Event(nil), st.audits...),
		alerts:     append([]*alert.Message(nil), st.alerts...),
	}
	for k, v := range st.events {
		c.events[k] = copyEvent(v)
	}
	for k, v := range st.byProvider {
		c.byProvider[k] = v
	}
	for k, v := range st.accounts {
		acc := *v
		c.accounts[k] = &acc
	}
	for k, v := range st.topups {
		c.topups[k] = copyTopUp(v)
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

func copyEvent(e *payment.Event) *payment.Event {
	c := *e
	if e.MatchedTopUpID != nil {
		id := *e.MatchedTopUpID
		c.MatchedTopUpID = &id
	}
	if e.MatchedOrderID != nil {
		id := *e.MatchedOrderID
		c.MatchedOrderID = &id
	}
	return &c
}

func copyTopUp(r *topup.Request) *topup.Request {
	c := *r
	if r.MatchedEventID != nil {
		id := *r.MatchedEventID
		c.MatchedEventID = &id
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func copyOrder(o *order.Order) *order.Order {
	c := *o
	if o.PaymentEventID != nil {
		id := *o.PaymentEventID
		c.PaymentEventID = &id
	}
	if o.PaidAt != nil {
		at := *o.PaidAt
		c.PaidAt = &at
	}
	return &c
}

// Events returns the event repository
func (s *Store) Events() payment.Repository { return &EventRepository{store: s} }

// Accounts returns the account repository
func (s *Store) Accounts() account.Repository { return &AccountRepository{store: s} }

// TopUps returns the top-up request repository
func (s *Store) TopUps() topup.Repository { return &TopUpRepository{store: s} }

// Orders returns the order ledger
func (s *Store) Orders() order.Ledger { return &OrderLedger{store: s} }

// Audits returns the audit repository
func (s *Store) Audits() audit.Repository { return &AuditRepository{store: s} }

// Alerts returns the alert outbox repository
func (s *Store) Alerts() alert.Repository { return &AlertRepository{store: s} }

// Snapshots returns the balance snapshot repository
func (s *Store) Snapshots() snapshot.Repository { return &SnapshotRepository{store: s} }

// AddOrder stages an order in the external order ledger
func (s *Store) AddOrder(o *order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = copyOrder(o)
}

// AuditTrail returns every audit event recorded so far
func (s *Store) AuditTrail() []*audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*audit.Event(nil), s.audits...)
}

// AlertMessages returns every alert written to the outbox so far
func (s *Store) AlertMessages() []*alert.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*alert.Message(nil), s.alerts...)
}

// SnapshotHistory returns every snapshot written so far
func (s *Store) SnapshotHistory() []*snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*snapshot.Snapshot(nil), s.snapshots...)
}

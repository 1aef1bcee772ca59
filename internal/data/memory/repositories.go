package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/domain/topup"
)

// EventRepository implements payment.Repository
type EventRepository struct {
	store *Store
}

func (r *EventRepository) WithTx(pgx.Tx) payment.Repository { return r }

func (r *EventRepository) Create(_ context.Context, event *payment.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("events.Create"); err != nil {
		return err
	}
	if _, exists := r.store.byProvider[event.ProviderTransactionID]; exists {
		return payment.ErrDuplicateEvent{ProviderTransactionID: event.ProviderTransactionID}
	}
	r.store.events[event.ID] = copyEvent(event)
	r.store.byProvider[event.ProviderTransactionID] = event.ID
	return nil
}

func (r *EventRepository) GetByID(_ context.Context, id uuid.UUID) (*payment.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event, ok := r.store.events[id]
	if !ok {
		return nil, payment.ErrEventNotFound{Key: id.String()}
	}
	return copyEvent(event), nil
}

func (r *EventRepository) GetByProviderID(_ context.Context, providerTransactionID string) (*payment.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.byProvider[providerTransactionID]
	if !ok {
		return nil, payment.ErrEventNotFound{Key: providerTransactionID}
	}
	return copyEvent(r.store.events[id]), nil
}

func (r *EventRepository) LockByID(ctx context.Context, id uuid.UUID) (*payment.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *EventRepository) UpdateStatus(_ context.Context, event *payment.Event, from payment.Status) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("events.UpdateStatus"); err != nil {
		return err
	}
	stored, ok := r.store.events[event.ID]
	if !ok || stored.Status != from {
		return payment.ErrInvalidTransition{EventID: event.ID, From: from, To: event.Status}
	}
	r.store.events[event.ID] = copyEvent(event)
	return nil
}

func (r *EventRepository) ExistingProviderIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := r.store.byProvider[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (r *EventRepository) ListByStatus(_ context.Context, status payment.Status, limit, offset int) ([]*payment.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var events []*payment.Event
	for _, e := range r.store.events {
		if e.Status == status {
			events = append(events, copyEvent(e))
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ReceivedAt.After(events[j].ReceivedAt) })
	return page(events, limit, offset), nil
}

func (r *EventRepository) CountByStatus(_ context.Context, status payment.Status) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, e := range r.store.events {
		if e.Status == status {
			count++
		}
	}
	return count, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// AccountRepository implements account.Repository
type AccountRepository struct {
	store *Store
}

func (r *AccountRepository) WithTx(pgx.Tx) account.Repository { return r }

func (r *AccountRepository) Create(_ context.Context, acc *account.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.accounts {
		if existing.IBAN == acc.IBAN {
			return account.ErrDuplicateIBAN{IBAN: acc.IBAN}
		}
	}
	c := *acc
	r.store.accounts[acc.ID] = &c
	return nil
}

func (r *AccountRepository) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{Key: id.String()}
	}
	c := *acc
	return &c, nil
}

func (r *AccountRepository) GetByIBAN(_ context.Context, iban string) (*account.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, acc := range r.store.accounts {
		if acc.IBAN == iban {
			c := *acc
			return &c, nil
		}
	}
	return nil, account.ErrAccountNotFound{Key: iban}
}

func (r *AccountRepository) Credit(_ context.Context, id uuid.UUID, amount int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("accounts.Credit"); err != nil {
		return 0, err
	}
	acc, ok := r.store.accounts[id]
	if !ok || !acc.IsActive() {
		return 0, account.ErrAccountNotFound{Key: id.String()}
	}
	acc.Balance += amount
	acc.Version++
	acc.UpdatedAt = time.Now().UTC()
	return acc.Balance, nil
}

func (r *AccountRepository) ListActiveBySegregatedAccount(_ context.Context, segregatedAccountID string) ([]*account.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("accounts.ListActiveBySegregatedAccount"); err != nil {
		return nil, err
	}
	var accounts []*account.Account
	for _, acc := range r.store.accounts {
		if acc.SegregatedAccountID == segregatedAccountID && acc.IsActive() {
			c := *acc
			accounts = append(accounts, &c)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].IBAN < accounts[j].IBAN })
	return accounts, nil
}

// TopUpRepository implements topup.Repository. Reference uniqueness is not
// enforced so that competing requests can be staged.
type TopUpRepository struct {
	store *Store
}

func (r *TopUpRepository) WithTx(pgx.Tx) topup.Repository { return r }

func (r *TopUpRepository) Create(_ context.Context, req *topup.Request) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.topups[req.ID] = copyTopUp(req)
	return nil
}

func (r *TopUpRepository) GetByID(_ context.Context, id uuid.UUID) (*topup.Request, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.topups[id]
	if !ok {
		return nil, topup.ErrRequestNotFound{ID: id}
	}
	return copyTopUp(req), nil
}

func (r *TopUpRepository) LockByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	return r.GetByID(ctx, id)
}

func (r *TopUpRepository) FindPendingMatch(_ context.Context, accountID uuid.UUID, reference string, amount, tolerance int64, currency string, now time.Time) (*topup.Request, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var best *topup.Request
	for _, req := range r.store.topups {
		if req.AccountID != accountID || !req.Accepts(reference, amount, currency, tolerance, now) {
			continue
		}
		if best == nil || req.CreatedAt.Before(best.CreatedAt) {
			best = req
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyTopUp(best), nil
}

func (r *TopUpRepository) MarkCompleted(_ context.Context, id uuid.UUID, eventID uuid.UUID, completedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("topups.MarkCompleted"); err != nil {
		return err
	}
	req, ok := r.store.topups[id]
	if !ok {
		return topup.ErrRequestNotFound{ID: id}
	}
	if err := req.Complete(eventID, completedAt); err != nil {
		return topup.ErrRequestNotFound{ID: id}
	}
	return nil
}

func (r *TopUpRepository) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("topups.ExpireStale"); err != nil {
		return 0, err
	}
	var expired int64
	for _, req := range r.store.topups {
		if req.Status == topup.StatusPending && req.IsExpired(now) {
			req.Status = topup.StatusExpired
			expired++
		}
	}
	return expired, nil
}

// OrderLedger implements order.Ledger
type OrderLedger struct {
	store *Store
}

func (r *OrderLedger) WithTx(pgx.Tx) order.Ledger { return r }

func (r *OrderLedger) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound{ID: id}
	}
	return copyOrder(o), nil
}

func (r *OrderLedger) LockByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *OrderLedger) FindEligible(_ context.Context, accountID uuid.UUID, amount, tolerance int64, currency string) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var best *order.Order
	for _, o := range r.store.orders {
		if o.AccountID != accountID || o.Status != order.StatusPendingPayment || o.Currency != currency {
			continue
		}
		if !shared.WithinTolerance(o.ExpectedAmount, amount, tolerance) {
			continue
		}
		if best == nil || o.CreatedAt.Before(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyOrder(best), nil
}

func (r *OrderLedger) MarkPaymentReceived(_ context.Context, o *order.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.orders[o.ID]
	if !ok || stored.Status != order.StatusPendingPayment {
		return order.ErrOrderNotFound{ID: o.ID}
	}
	r.store.orders[o.ID] = copyOrder(o)
	return nil
}

// AuditRepository implements audit.Repository
type AuditRepository struct {
	store *Store
}

func (r *AuditRepository) WithTx(pgx.Tx) audit.Repository { return r }

func (r *AuditRepository) Append(_ context.Context, event *audit.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("audit.Append"); err != nil {
		return err
	}
	c := *event
	r.store.audits = append(r.store.audits, &c)
	return nil
}

func (r *AuditRepository) ListByTransaction(_ context.Context, providerTransactionID string) ([]*audit.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var events []*audit.Event
	for _, e := range r.store.audits {
		if e.TransactionID == providerTransactionID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (r *AuditRepository) ListRecent(_ context.Context, severity audit.Severity, limit int) ([]*audit.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var events []*audit.Event
	for i := len(r.store.audits) - 1; i >= 0 && (limit <= 0 || len(events) < limit); i-- {
		if e := r.store.audits[i]; severity == "" || e.Severity == severity {
			events = append(events, e)
		}
	}
	return events, nil
}

// AlertRepository implements alert.Repository
type AlertRepository struct {
	store *Store
}

func (r *AlertRepository) WithTx(pgx.Tx) alert.Repository { return r }

func (r *AlertRepository) Create(_ context.Context, message *alert.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("alerts.Create"); err != nil {
		return err
	}
	r.store.nextAlertID++
	message.ID = r.store.nextAlertID
	c := *message
	r.store.alerts = append(r.store.alerts, &c)
	return nil
}

func (r *AlertRepository) GetPending(_ context.Context, limit int) ([]*alert.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("alerts.GetPending"); err != nil {
		return nil, err
	}
	var messages []*alert.Message
	for _, m := range r.store.alerts {
		if m.Status == shared.OutboxStatusPending {
			c := *m
			messages = append(messages, &c)
		}
	}
	return page(messages, limit, 0), nil
}

func (r *AlertRepository) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	return r.update(id, func(m *alert.Message) {
		m.Status = status
		now := time.Now()
		m.LastAttemptAt = &now
	})
}

func (r *AlertRepository) IncrementAttempts(_ context.Context, id int64) error {
	return r.update(id, func(m *alert.Message) { m.IncrementAttempts() })
}

func (r *AlertRepository) update(id int64, fn func(*alert.Message)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.alerts {
		if m.ID == id {
			fn(m)
			return nil
		}
	}
	return alert.ErrMessageNotFound{ID: id}
}

// SnapshotRepository implements snapshot.Repository
type SnapshotRepository struct {
	store *Store
}

func (r *SnapshotRepository) Create(_ context.Context, s *snapshot.Snapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("snapshots.Create"); err != nil {
		return err
	}
	c := *s
	r.store.snapshots = append(r.store.snapshots, &c)
	return nil
}

func (r *SnapshotRepository) GetLatest(_ context.Context, segregatedAccountID string) (*snapshot.Snapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := len(r.store.snapshots) - 1; i >= 0; i-- {
		if s := r.store.snapshots[i]; s.SegregatedAccountID == segregatedAccountID {
			c := *s
			return &c, nil
		}
	}
	return nil, snapshot.ErrSnapshotNotFound{SegregatedAccountID: segregatedAccountID}
}

func (r *SnapshotRepository) GetByTimeRange(_ context.Context, segregatedAccountID string, start, end time.Time, limit, offset int) ([]*snapshot.Snapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var snapshots []*snapshot.Snapshot
	for i := len(r.store.snapshots) - 1; i >= 0; i-- {
		s := r.store.snapshots[i]
		if s.SegregatedAccountID == segregatedAccountID && !s.CreatedAt.Before(start) && !s.CreatedAt.After(end) {
			c := *s
			snapshots = append(snapshots, &c)
		}
	}
	return page(snapshots, limit, offset), nil
}

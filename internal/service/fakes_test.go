package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/outbox"
	"github.com/shared-event-wallet/internal/domain/settlement"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/platform/gateway"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxMu serializes fake transactions the way the wallet row lock does in Postgres
var fakeTxMu sync.Mutex

// fakeDB runs transaction bodies one at a time directly against the in-memory store
type fakeDB struct{}

func (fakeDB) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	fakeTxMu.Lock()
	defer fakeTxMu.Unlock()
	return fn(nil)
}

// fakeLocker records the keys it was asked to hold
type fakeLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn(ctx)
}

type fakeDirectory map[uuid.UUID]shared.UserProfile

func (d fakeDirectory) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]shared.UserProfile, error) {
	out := make(map[uuid.UUID]shared.UserProfile, len(ids))
	for _, id := range ids {
		if p, ok := d[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateWallet(ctx context.Context, eventID uuid.UUID) (string, error) {
	args := m.Called(ctx, eventID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateDepositIntent(ctx context.Context, req gateway.DepositRequest) (*gateway.DepositIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.DepositIntent), args.Error(1)
}

func (m *MockGateway) ChargeDeposit(ctx context.Context, req gateway.DepositRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Payout(ctx context.Context, req gateway.PayoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// memStore keeps copies of every row so callers cannot mutate stored state
// without going through a repository method.
type memStore struct {
	mu           sync.Mutex
	events       map[uuid.UUID]event.Event
	participants map[uuid.UUID][]event.Participant
	categories   map[uuid.UUID]event.Category
	memberships  []event.Membership
	wallets      map[uuid.UUID]wallet.Wallet
	transactions []ledger.Transaction
	expenses     []expense.Expense
	settlements  []settlement.Record
	outbox       []outbox.Message
}

func newMemStore() *memStore {
	return &memStore{
		events:       map[uuid.UUID]event.Event{},
		participants: map[uuid.UUID][]event.Participant{},
		categories:   map[uuid.UUID]event.Category{},
		wallets:      map[uuid.UUID]wallet.Wallet{},
	}
}

func (s *memStore) repositories() Repositories {
	return Repositories{
		Events:       memEvents{s},
		Categories:   memCategories{s},
		Wallets:      memWallets{s},
		Transactions: memTransactions{s},
		Expenses:     memExpenses{s},
		Settlements:  memSettlements{s},
		Outbox:       memOutbox{s},
	}
}

func (s *memStore) wallet(eventID uuid.UUID) wallet.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[eventID]
}

func (s *memStore) setBalance(eventID uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[eventID]
	w.Balance = balance
	s.wallets[eventID] = w
}

func (s *memStore) participant(eventID, userID uuid.UUID) event.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[eventID] {
		if p.UserID == userID {
			return p
		}
	}
	return event.Participant{}
}

func (s *memStore) transactionsOf(txType shared.TransactionType) []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range s.transactions {
		if t.Type == txType {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) outboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

func (s *memStore) expenseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}

type memEvents struct{ s *memStore }

func (r memEvents) Create(_ context.Context, evt *event.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events[evt.ID] = *evt
	return nil
}

func (r memEvents) GetByID(_ context.Context, id uuid.UUID) (*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	evt, ok := r.s.events[id]
	if !ok {
		return nil, shared.NotFoundError{Resource: "event", ID: id.String()}
	}
	return &evt, nil
}

func (r memEvents) LockForUpdate(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	return r.GetByID(ctx, id)
}

func (r memEvents) UpdateStatus(_ context.Context, id uuid.UUID, status event.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	evt, ok := r.s.events[id]
	if !ok {
		return shared.NotFoundError{Resource: "event", ID: id.String()}
	}
	evt.Status = status
	r.s.events[id] = evt
	return nil
}

func (r memEvents) UpdateGatewayWalletRef(_ context.Context, id uuid.UUID, ref string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	evt := r.s.events[id]
	evt.GatewayWalletRef = ref
	r.s.events[id] = evt
	return nil
}

func (r memEvents) ListByParticipant(_ context.Context, userID uuid.UUID) ([]*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.Event
	for id, list := range r.s.participants {
		for _, p := range list {
			if p.UserID == userID {
				evt := r.s.events[id]
				out = append(out, &evt)
			}
		}
	}
	return out, nil
}

func (r memEvents) AddParticipant(_ context.Context, p *event.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.participants[p.EventID] {
		if existing.UserID == p.UserID {
			return shared.StateConflictError{Err: shared.ErrAlreadyParticipant}
		}
	}
	r.s.participants[p.EventID] = append(r.s.participants[p.EventID], *p)
	return nil
}

func (r memEvents) GetParticipant(_ context.Context, eventID, userID uuid.UUID) (*event.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants[eventID] {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "participant", ID: userID.String()}
}

func (r memEvents) ListParticipants(_ context.Context, eventID uuid.UUID) ([]*event.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.participants[eventID]
	out := make([]*event.Participant, len(list))
	for i := range list {
		p := list[i]
		out[i] = &p
	}
	return out, nil
}

func (r memEvents) AddDeposit(_ context.Context, eventID, userID uuid.UUID, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, p := range r.s.participants[eventID] {
		if p.UserID == userID {
			r.s.participants[eventID][i].DepositedAmount += amount
			return nil
		}
	}
	return shared.NotFoundError{Resource: "participant", ID: userID.String()}
}

func (r memEvents) WithTx(pgx.Tx) event.Repository { return r }

type memCategories struct{ s *memStore }

func (r memCategories) Create(_ context.Context, c *event.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *c
	stored.Members = nil
	r.s.categories[c.ID] = stored
	return nil
}

// load assembles a category with its active members; the caller holds the lock
func (r memCategories) load(c event.Category) *event.Category {
	c.Members = map[uuid.UUID]event.Membership{}
	for _, m := range r.s.memberships {
		if m.CategoryID == c.ID && m.LeftAt == nil {
			c.Members[m.UserID] = m
		}
	}
	return &c
}

func (r memCategories) GetByID(_ context.Context, eventID, categoryID uuid.UUID) (*event.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[categoryID]
	if !ok || c.EventID != eventID {
		return nil, shared.NotFoundError{Resource: "category", ID: categoryID.String()}
	}
	return r.load(c), nil
}

func (r memCategories) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*event.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.Category
	for _, c := range r.s.categories {
		if c.EventID == eventID {
			out = append(out, r.load(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCategories) UpdateLimits(_ context.Context, c *event.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *c
	stored.Members = nil
	r.s.categories[c.ID] = stored
	return nil
}

func (r memCategories) UpdateStatus(_ context.Context, categoryID uuid.UUID, status event.CategoryStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.categories[categoryID]
	c.Status = status
	r.s.categories[categoryID] = c
	return nil
}

func (r memCategories) AddMember(_ context.Context, m *event.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.memberships = append(r.s.memberships, *m)
	return nil
}

func (r memCategories) EndMembership(_ context.Context, categoryID, userID uuid.UUID, leftAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, m := range r.s.memberships {
		if m.CategoryID == categoryID && m.UserID == userID && m.LeftAt == nil {
			r.s.memberships[i].LeftAt = &leftAt
			return nil
		}
	}
	return shared.NotFoundError{Resource: "category membership", ID: userID.String()}
}

func (r memCategories) WithTx(pgx.Tx) event.CategoryRepository { return r }

type memWallets struct{ s *memStore }

func (r memWallets) Create(_ context.Context, w *wallet.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.wallets[w.EventID] = *w
	return nil
}

func (r memWallets) GetByEventID(_ context.Context, eventID uuid.UUID) (*wallet.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[eventID]
	if !ok {
		return nil, shared.NotFoundError{Resource: "wallet", ID: eventID.String()}
	}
	return &w, nil
}

func (r memWallets) LockByEventID(ctx context.Context, eventID uuid.UUID) (*wallet.Wallet, error) {
	return r.GetByEventID(ctx, eventID)
}

func (r memWallets) UpdateBalance(_ context.Context, w *wallet.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := r.s.wallets[w.EventID]
	stored.Balance = w.Balance
	r.s.wallets[w.EventID] = stored
	return nil
}

func (r memWallets) UpdateStatus(_ context.Context, id uuid.UUID, status wallet.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for eventID, w := range r.s.wallets {
		if w.ID == id {
			w.Status = status
			r.s.wallets[eventID] = w
			return nil
		}
	}
	return shared.NotFoundError{Resource: "wallet", ID: id.String()}
}

func (r memWallets) WithTx(pgx.Tx) wallet.Repository { return r }

type memTransactions struct{ s *memStore }

func (r memTransactions) Create(_ context.Context, tx *ledger.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transactions = append(r.s.transactions, *tx)
	return nil
}

func (r memTransactions) GetByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "transaction", ID: id.String()}
}

func (r memTransactions) GetDepositByIntentRef(_ context.Context, intentRef string) (*ledger.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.Type == shared.TransactionTypeDeposit && t.GatewayIntentRef == intentRef {
			return &t, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "deposit", ID: intentRef}
}

func (r memTransactions) GetOldestPendingDeposit(_ context.Context, eventID uuid.UUID, amount int64) (*ledger.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.Type == shared.TransactionTypeDeposit && t.EventID == eventID && t.Amount == amount && t.IsPending() {
			return &t, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "deposit"}
}

func (r memTransactions) ListByEvent(_ context.Context, eventID uuid.UUID, limit int) ([]*ledger.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*ledger.Transaction
	for i := len(r.s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t := r.s.transactions[i]; t.EventID == eventID {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r memTransactions) UpdateStatus(_ context.Context, tx *ledger.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, t := range r.s.transactions {
		if t.ID == tx.ID {
			r.s.transactions[i].Status = tx.Status
			r.s.transactions[i].GatewayTxRef = tx.GatewayTxRef
			r.s.transactions[i].CompletedAt = tx.CompletedAt
			return nil
		}
	}
	return shared.NotFoundError{Resource: "transaction", ID: tx.ID.String()}
}

func (r memTransactions) completedExpenses(eventID uuid.UUID) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range r.s.transactions {
		if t.EventID == eventID && t.Type == shared.TransactionTypeExpense && t.Status == shared.TransactionStatusCompleted {
			out = append(out, t)
		}
	}
	return out
}

func (r memTransactions) CategorySpend(_ context.Context, eventID, categoryID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, t := range r.completedExpenses(eventID) {
		if t.CategoryID != nil && *t.CategoryID == categoryID {
			total += t.Amount
		}
	}
	return total, nil
}

func (r memTransactions) SpendByCategory(_ context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uuid.UUID]int64{}
	for _, t := range r.completedExpenses(eventID) {
		if t.CategoryID != nil {
			out[*t.CategoryID] += t.Amount
		}
	}
	return out, nil
}

func (r memTransactions) ListUnlinkedExpenses(_ context.Context, eventID uuid.UUID) ([]*ledger.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	linked := map[uuid.UUID]bool{}
	for _, e := range r.s.expenses {
		if e.TransactionID != nil && e.Status == expense.StatusPaid {
			linked[*e.TransactionID] = true
		}
	}
	var out []*ledger.Transaction
	for _, t := range r.completedExpenses(eventID) {
		if !linked[t.ID] {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r memTransactions) Totals(_ context.Context, eventID uuid.UUID) (ledger.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var totals ledger.Totals
	for _, t := range r.s.transactions {
		if t.EventID != eventID || t.Status != shared.TransactionStatusCompleted {
			continue
		}
		switch t.Type {
		case shared.TransactionTypeDeposit:
			totals.Deposited += t.Amount
			totals.DepositCount++
		case shared.TransactionTypeExpense:
			totals.Paid += t.Amount
			totals.PaymentCount++
		case shared.TransactionTypeRefund:
			totals.Refunded += t.Amount
		}
	}
	return totals, nil
}

func (r memTransactions) WithTx(pgx.Tx) ledger.Repository { return r }

type memExpenses struct{ s *memStore }

func (r memExpenses) Create(_ context.Context, e *expense.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.expenses = append(r.s.expenses, *e)
	return nil
}

func (r memExpenses) GetByID(_ context.Context, eventID, id uuid.UUID) (*expense.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.expenses {
		if e.ID == id && e.EventID == eventID {
			return &e, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "expense", ID: id.String()}
}

func (r memExpenses) LockByID(ctx context.Context, eventID, id uuid.UUID) (*expense.Expense, error) {
	return r.GetByID(ctx, eventID, id)
}

func (r memExpenses) Update(_ context.Context, e *expense.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.expenses {
		if r.s.expenses[i].ID == e.ID {
			r.s.expenses[i] = *e
			return nil
		}
	}
	return shared.NotFoundError{Resource: "expense", ID: e.ID.String()}
}

func (r memExpenses) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.expenses {
		if r.s.expenses[i].ID == id {
			r.s.expenses = append(r.s.expenses[:i], r.s.expenses[i+1:]...)
			return nil
		}
	}
	return shared.NotFoundError{Resource: "expense", ID: id.String()}
}

func (r memExpenses) List(_ context.Context, eventID uuid.UUID, filter expense.Filter) ([]*expense.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*expense.Expense
	for _, e := range r.s.expenses {
		if e.EventID != eventID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.CategoryID != nil && (e.CategoryID == nil || *e.CategoryID != *filter.CategoryID) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	return out, nil
}

func (r memExpenses) ListPaid(ctx context.Context, eventID uuid.UUID) ([]*expense.Expense, error) {
	return r.List(ctx, eventID, expense.Filter{Status: expense.StatusPaid})
}

func (r memExpenses) WithTx(pgx.Tx) expense.Repository { return r }

type memSettlements struct{ s *memStore }

func (r memSettlements) Upsert(_ context.Context, rec *settlement.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.settlements {
		if existing.EventID == rec.EventID && existing.UserID == rec.UserID {
			rec.ID = existing.ID
			r.s.settlements[i] = *rec
			return nil
		}
	}
	r.s.settlements = append(r.s.settlements, *rec)
	return nil
}

func (r memSettlements) GetByEventAndUser(_ context.Context, eventID, userID uuid.UUID) (*settlement.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.settlements {
		if rec.EventID == eventID && rec.UserID == userID {
			return &rec, nil
		}
	}
	return nil, shared.NotFoundError{Resource: "settlement", ID: userID.String()}
}

func (r memSettlements) LockByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*settlement.Record, error) {
	return r.GetByEventAndUser(ctx, eventID, userID)
}

func (r memSettlements) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*settlement.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.Record
	for _, rec := range r.s.settlements {
		if rec.EventID == eventID {
			rec := rec
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r memSettlements) Update(_ context.Context, rec *settlement.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.settlements {
		if r.s.settlements[i].ID == rec.ID {
			r.s.settlements[i] = *rec
			return nil
		}
	}
	return shared.NotFoundError{Resource: "settlement", ID: rec.ID.String()}
}

func (r memSettlements) CountOutstanding(_ context.Context, eventID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, rec := range r.s.settlements {
		if rec.EventID == eventID && rec.IsOutstanding() {
			n++
		}
	}
	return n, nil
}

func (r memSettlements) WithTx(pgx.Tx) settlement.Repository { return r }

type memOutbox struct{ s *memStore }

func (r memOutbox) Create(_ context.Context, m *outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = int64(len(r.s.outbox) + 1)
	r.s.outbox = append(r.s.outbox, *m)
	return nil
}

func (r memOutbox) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*outbox.Message
	for _, m := range r.s.outbox {
		if m.Status == shared.OutboxStatusPending && len(out) < limit {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r memOutbox) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			r.s.outbox[i].Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r memOutbox) IncrementAttempts(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			r.s.outbox[i].Attempts++
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r memOutbox) GetLatestByTransactionID(_ context.Context, transactionID uuid.UUID) (*outbox.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.outbox) - 1; i >= 0; i-- {
		if m := r.s.outbox[i]; m.TransactionID == transactionID {
			return &m, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{}
}

func (r memOutbox) WithTx(pgx.Tx) outbox.Repository { return r }

// fixture is an active event with a creator and the given members
type fixture struct {
	store   *memStore
	repos   Repositories
	ledger  *LedgerStore
	event   *event.Event
	creator uuid.UUID
	members []uuid.UUID
}

func newFixture(members int) *fixture {
	store := newMemStore()
	repos := store.repositories()
	ctx := context.Background()

	creator := uuid.New()
	evt, _ := event.NewEvent("Ski trip", "", "EUR", creator, nil)
	_ = repos.Events.Create(ctx, evt)
	_ = repos.Wallets.Create(ctx, wallet.NewWallet(evt.ID, evt.Currency))

	joined := time.Now().UTC()
	add := func(userID uuid.UUID, role event.Role) {
		p := event.NewParticipant(evt.ID, userID, role)
		p.JoinedAt = joined
		joined = joined.Add(time.Second)
		_ = repos.Events.AddParticipant(ctx, p)
	}
	add(creator, event.RoleCreator)

	f := &fixture{
		store:   store,
		repos:   repos,
		ledger:  NewLedgerStore(newTestLogger(), fakeDB{}, repos),
		event:   evt,
		creator: creator,
	}
	for i := 0; i < members; i++ {
		id := uuid.New()
		add(id, event.RoleMember)
		f.members = append(f.members, id)
	}
	return f
}

// category adds an active category with the given members
func (f *fixture) category(name string, members ...uuid.UUID) *event.Category {
	ctx := context.Background()
	c, _ := event.NewCategory(f.event.ID, name, "", f.creator)
	_ = f.repos.Categories.Create(ctx, c)
	joined := time.Now().UTC()
	for _, id := range members {
		_ = f.repos.Categories.AddMember(ctx, &event.Membership{CategoryID: c.ID, UserID: id, JoinedAt: joined})
		joined = joined.Add(time.Second)
	}
	return c
}

func (f *fixture) deposit(userID uuid.UUID, amount int64) {
	if _, err := f.ledger.Credit(context.Background(), f.event.ID, userID, amount, ledger.Meta{}); err != nil {
		panic(err)
	}
}

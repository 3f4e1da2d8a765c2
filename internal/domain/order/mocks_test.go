package order

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/payment"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID   map[string]catalog.Item
	getErr error
}

func newCatalog(items ...catalog.Item) *mockCatalog {
	byID := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return &mockCatalog{byID: byID}
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// memOrderRepo emulates the ledger table: a unique (user, token) index and
// conditional status updates.
type memOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]*Order
	createErr error
	applyErr  error
	attachErr error
	creates   int
}

func newOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: make(map[string]*Order)}
}

func (m *memOrderRepo) FindByRequestToken(_ context.Context, userID, token string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.UserID == userID && o.RequestToken == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrderRepo) CreatePending(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.UserID == o.UserID && existing.RequestToken == o.RequestToken {
			return ErrDuplicateRequest
		}
	}
	cp := *o
	m.byID[o.ID] = &cp
	m.creates++
	return nil
}

func (m *memOrderRepo) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	o, ok := m.byID[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.PaymentIntentID == "" {
		o.PaymentIntentID = intentID
	}
	return nil
}

func (m *memOrderRepo) ApplyStatus(_ context.Context, match Match, to Status) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return Outcome{}, m.applyErr
	}
	var o *Order
	if match.OrderID != "" {
		o = m.byID[match.OrderID]
	} else {
		for _, candidate := range m.byID {
			if candidate.PaymentIntentID == match.PaymentIntentID {
				o = candidate
				break
			}
		}
	}
	if o == nil {
		return Outcome{}, nil
	}
	out := Outcome{Found: true, Status: o.Status, OrderID: o.ID}
	if slices.Contains(Sources(to), o.Status) {
		o.Status = to
		if o.PaymentIntentID == "" {
			o.PaymentIntentID = match.PaymentIntentID
		}
		out.Changed = true
		out.Status = to
	}
	return out, nil
}

func (m *memOrderRepo) Status(_ context.Context, orderID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return "", ErrNotFound
	}
	return o.Status, nil
}

func (m *memOrderRepo) GetForUser(_ context.Context, userID string, match Match) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.UserID != userID {
			continue
		}
		if (match.OrderID != "" && o.ID == match.OrderID) ||
			(match.OrderID == "" && o.PaymentIntentID == match.PaymentIntentID) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListAdmin(_ context.Context, f AdminFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if (f.Status == "" || o.Status == f.Status) && len(out) < f.Limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memOrderRepo) get(id string) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

// mockGateway behaves like the provider: the idempotency key maps to a
// single intent.
type mockGateway struct {
	mu          sync.Mutex
	byKey       map[string]*payment.Intent
	byID        map[string]*payment.Intent
	createCalls int
	createErr   error
	retrieveErr error
}

func newGateway() *mockGateway {
	return &mockGateway{
		byKey: make(map[string]*payment.Intent),
		byID:  make(map[string]*payment.Intent),
	}
}

func (m *mockGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, &payment.GatewayError{Op: "create intent", Err: m.createErr}
	}
	key := payment.IdempotencyKey(req.OrderID)
	if in, ok := m.byKey[key]; ok {
		return in, nil
	}
	in := &payment.Intent{
		ID:           "pi_" + req.OrderID,
		ClientSecret: "pi_" + req.OrderID + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
	}
	m.byKey[key] = in
	m.byID[in.ID] = in
	return in, nil
}

func (m *mockGateway) RetrieveIntent(_ context.Context, id string) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retrieveErr != nil {
		return nil, &payment.GatewayError{Op: "retrieve intent", Err: m.retrieveErr}
	}
	in, ok := m.byID[id]
	if !ok {
		return nil, &payment.GatewayError{Op: "retrieve intent", Err: ErrNotFound}
	}
	return in, nil
}

func (m *mockGateway) intents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type mockVerifier struct {
	event payment.Event
	err   error
}

func (m *mockVerifier) Verify(_ context.Context, _ []byte, _ string) (payment.Event, error) {
	return m.event, m.err
}

type mockPublisher struct {
	mu      sync.Mutex
	changes []StatusChange
	err     error
}

func (m *mockPublisher) PublishStatusChange(_ context.Context, c StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
	return m.err
}

// --- Helpers ---

func menuItem(id, name string, priceCents int64) catalog.Item {
	return catalog.Item{
		ID:         id,
		Name:       name,
		PriceCents: priceCents,
		Currency:   "usd",
		Active:     true,
	}
}

func coffeeMenu() *mockCatalog {
	return newCatalog(
		menuItem("espresso", "Espresso", 350),
		menuItem("croissant", "Croissant", 425),
		menuItem("latte", "Latte", 495),
	)
}

package handler

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/domain/payment"
	"github.com/xenking/coffee-shop/internal/domain/profile"
	"github.com/xenking/coffee-shop/internal/observer"
)

// --- Mock implementations ---

type mockCatalog map[string]catalog.Item

func (m mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockOrders struct {
	mu        sync.Mutex
	byID      map[string]*order.Order
	statusErr error
	listErr   error
}

func (m *mockOrders) FindByRequestToken(_ context.Context, userID, token string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.UserID == userID && o.RequestToken == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) CreatePending(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrders) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentIntentID = intentID
	return nil
}

func (m *mockOrders) ApplyStatus(_ context.Context, match order.Match, to order.Status) (order.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.ID != match.OrderID && (match.OrderID != "" || o.PaymentIntentID != match.PaymentIntentID) {
			continue
		}
		out := order.Outcome{Found: true, Status: o.Status, OrderID: o.ID}
		if slices.Contains(order.Sources(to), o.Status) {
			o.Status = to
			out.Status, out.Changed = to, true
		}
		return out, nil
	}
	return order.Outcome{}, nil
}

func (m *mockOrders) Status(_ context.Context, orderID string) (order.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return "", m.statusErr
	}
	o, ok := m.byID[orderID]
	if !ok {
		return "", order.ErrNotFound
	}
	return o.Status, nil
}

func (m *mockOrders) GetForUser(_ context.Context, userID string, match order.Match) (*order.Order, error) {
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
	return nil, order.ErrNotFound
}

func (m *mockOrders) ListByUser(_ context.Context, userID string, _ int) ([]order.Order, error) {
	return m.list(func(o *order.Order) bool { return o.UserID == userID }, 0)
}

func (m *mockOrders) ListAdmin(_ context.Context, f order.AdminFilter) ([]order.Order, error) {
	return m.list(func(o *order.Order) bool {
		return (f.Status == "" || o.Status == f.Status) &&
			(f.Before.IsZero() || o.CreatedAt.Before(f.Before))
	}, f.Limit)
}

func (m *mockOrders) list(keep func(*order.Order) bool, limit int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []order.Order
	for _, o := range m.byID {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockOrders) set(id string, status order.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = status
}

type mockGateway struct {
	err error
}

func (m *mockGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if m.err != nil {
		return nil, &payment.GatewayError{Op: "create intent", Err: m.err}
	}
	return &payment.Intent{ID: "pi_" + req.OrderID, ClientSecret: "pi_" + req.OrderID + "_secret"}, nil
}

func (m *mockGateway) RetrieveIntent(_ context.Context, id string) (*payment.Intent, error) {
	return &payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

// mockVerifier accepts the signature "valid" and decodes nothing: the event
// to return is configured on the mock.
type mockVerifier struct {
	event payment.Event
}

func (m *mockVerifier) Verify(_ context.Context, _ []byte, signature string) (payment.Event, error) {
	if signature != "valid" {
		return payment.Event{}, payment.ErrSignatureInvalid
	}
	return m.event, nil
}

type mockProfiles struct {
	names map[string]string
	err   error
}

func (m *mockProfiles) UpsertName(_ context.Context, userID, name string) error {
	if m.err != nil {
		return m.err
	}
	m.names[userID] = name
	return nil
}

type mockSessions struct {
	byHash map[string]auth.Session
	err    error
}

func (m *mockSessions) FindByHash(_ context.Context, hash string) (*auth.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return &s, nil
}

func (m *mockSessions) Create(_ context.Context, s auth.Session) error {
	m.byHash[s.KeyHash] = s
	return nil
}

// --- Helpers ---

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
)

type testEnv struct {
	orders   *mockOrders
	gateway  *mockGateway
	verifier *mockVerifier
	profiles *mockProfiles
	sessions *mockSessions
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		orders:   &mockOrders{byID: make(map[string]*order.Order)},
		gateway:  &mockGateway{},
		verifier: &mockVerifier{},
		profiles: &mockProfiles{names: make(map[string]string)},
		sessions: &mockSessions{byHash: make(map[string]auth.Session)},
		mux:      http.NewServeMux(),
	}
	menu := mockCatalog{
		"espresso":  {ID: "espresso", Name: "Espresso", PriceCents: 350, Currency: "usd", Active: true},
		"croissant": {ID: "croissant", Name: "Croissant", PriceCents: 425, Currency: "usd", Active: true},
		"gold-leaf": {ID: "gold-leaf", Name: "Gold Leaf Latte", PriceCents: math.MaxInt64 / 2, Currency: "usd", Active: true},
	}

	sessions := env.sessions
	authn := auth.NewAuthenticator(sessions, []byte("pepper"))
	_ = sessions.Create(context.Background(), auth.Session{UserID: "u1", Role: auth.RoleCustomer, KeyHash: authn.Hash(customerToken)})
	_ = sessions.Create(context.Background(), auth.Session{UserID: "admin", Role: auth.RoleAdmin, KeyHash: authn.Hash(adminToken)})

	h := New(
		Config{Observer: observer.New(5*time.Millisecond, 200)},
		order.NewService(order.NewPricer(menu), env.orders, env.gateway),
		order.NewReconciler(env.verifier, env.orders, nil),
		profile.NewService(env.profiles),
		authn,
	)
	h.Register(env.mux)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(id, userID string, status order.Status, created time.Time) {
	e.orders.mu.Lock()
	defer e.orders.mu.Unlock()
	e.orders.byID[id] = &order.Order{
		ID:              id,
		UserID:          userID,
		Status:          status,
		AmountCents:     1125,
		Currency:        "usd",
		PaymentIntentID: "pi_" + id,
		CreatedAt:       created,
		UpdatedAt:       created,
		Lines: []order.Line{
			{ItemID: "espresso", Name: "Espresso", UnitPriceCents: 350, Quantity: 2, Currency: "usd"},
		},
	}
}

var errStorage = errors.New("connection reset")

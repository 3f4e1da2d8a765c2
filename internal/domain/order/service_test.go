package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coffee-shop/internal/domain/payment"
)

func newTestService(repo *memOrderRepo, gw *mockGateway) *Service {
	return NewService(NewPricer(coffeeMenu()), repo, gw)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc := newTestService(newOrderRepo(), newGateway())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_UnknownItem(t *testing.T) {
	repo := newOrderRepo()
	svc := newTestService(repo, newGateway())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-A",
		Lines:        []LineRequest{{ItemID: "muffin", Quantity: 1}},
	})

	var nf *ItemNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "muffin", nf.ItemID)
	assert.Zero(t, repo.count())
}

func TestCheckout_CreatesPendingOrderWithCatalogPrices(t *testing.T) {
	repo := newOrderRepo()
	gw := newGateway()
	svc := newTestService(repo, gw)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-A",
		Lines: []LineRequest{
			{ItemID: "espresso", Quantity: 2},
			{ItemID: "croissant", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, "pi_"+res.OrderID+"_secret", res.ClientSecret)

	o := repo.get(res.OrderID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(1125), o.AmountCents)
	assert.Equal(t, "usd", o.Currency)
	assert.Equal(t, "tok-A", o.RequestToken)
	assert.Equal(t, "pi_"+res.OrderID, o.PaymentIntentID)
	require.Len(t, o.Lines, 2)

	var sum int64
	for _, l := range o.Lines {
		sum += l.Total()
	}
	assert.Equal(t, o.AmountCents, sum)
}

func TestCheckout_SameTokenTwice(t *testing.T) {
	repo := newOrderRepo()
	gw := newGateway()
	svc := newTestService(repo, gw)
	req := CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-A",
		Lines:        []LineRequest{{ItemID: "latte", Quantity: 1}},
	}

	first, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, gw.intents())
	assert.Equal(t, 1, gw.createCalls)
}

func TestCheckout_SameTokenDifferentUsers(t *testing.T) {
	repo := newOrderRepo()
	svc := newTestService(repo, newGateway())
	lines := []LineRequest{{ItemID: "latte", Quantity: 1}}

	a, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "u1", RequestToken: "tok", Lines: lines})
	require.NoError(t, err)
	b, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "u2", RequestToken: "tok", Lines: lines})
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
	assert.Equal(t, 2, repo.count())
}

func TestCheckout_ConcurrentSameToken(t *testing.T) {
	repo := newOrderRepo()
	gw := newGateway()
	svc := newTestService(repo, gw)
	req := CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-race",
		Lines:        []LineRequest{{ItemID: "espresso", Quantity: 3}},
	}

	const n = 16
	results := make([]*CheckoutResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Checkout(context.Background(), req)
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].OrderID, results[i].OrderID)
		assert.Equal(t, results[0].ClientSecret, results[i].ClientSecret)
	}
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, gw.intents())
}

func TestCheckout_ResumesOrderWithoutIntent(t *testing.T) {
	repo := newOrderRepo()
	gw := newGateway()
	svc := newTestService(repo, gw)
	req := CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-B",
		Lines:        []LineRequest{{ItemID: "espresso", Quantity: 1}},
	}

	gw.createErr = errors.New("provider unavailable")
	_, err := svc.Checkout(context.Background(), req)
	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 1, repo.count())

	gw.createErr = nil
	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, "pi_"+res.OrderID, repo.get(res.OrderID).PaymentIntentID)
}

func TestCheckout_GeneratesTokenWhenMissing(t *testing.T) {
	repo := newOrderRepo()
	svc := newTestService(repo, newGateway())
	req := CheckoutRequest{
		UserID: "u1",
		Lines:  []LineRequest{{ItemID: "espresso", Quantity: 1}},
	}

	a, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
	assert.Contains(t, repo.get(a.OrderID).RequestToken, "cli-")
}

func TestCheckout_StorageError(t *testing.T) {
	repo := newOrderRepo()
	repo.createErr = errors.New("db write failed")
	gw := newGateway()
	svc := newTestService(repo, gw)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID: "u1",
		Lines:  []LineRequest{{ItemID: "espresso", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Zero(t, gw.createCalls)
}

func TestCheckout_RetrieveError(t *testing.T) {
	repo := newOrderRepo()
	gw := newGateway()
	svc := newTestService(repo, gw)
	req := CheckoutRequest{
		UserID:       "u1",
		RequestToken: "tok-C",
		Lines:        []LineRequest{{ItemID: "latte", Quantity: 1}},
	}
	_, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	gw.retrieveErr = errors.New("timeout")
	_, err = svc.Checkout(context.Background(), req)

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "retrieve intent", gwErr.Op)
}

func TestAdminList(t *testing.T) {
	svc := newTestService(newOrderRepo(), newGateway())

	_, err := svc.AdminList(context.Background(), AdminFilter{Status: "shipped"})
	require.ErrorIs(t, err, ErrUnknownStatus)

	_, err = svc.AdminList(context.Background(), AdminFilter{Status: StatusPaid, Limit: 1000})
	require.NoError(t, err)
}

func TestLookup_RequiresKey(t *testing.T) {
	svc := newTestService(newOrderRepo(), newGateway())

	_, err := svc.Lookup(context.Background(), "u1", Match{})
	require.ErrorIs(t, err, ErrNotFound)
}

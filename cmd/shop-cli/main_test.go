package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/coffee-shop/internal/client"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/order"
)

func TestParseLine(t *testing.T) {
	l, err := parseLine("espresso=3")
	require.NoError(t, err)
	assert.Equal(t, lineFlag{id: "espresso", qty: 3}, l)

	l, err = parseLine("croissant")
	require.NoError(t, err)
	assert.Equal(t, 1, l.qty)

	for _, bad := range []string{"", "=2", "latte=0", "latte=x"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildCart(t *testing.T) {
	menu := map[string]catalog.Item{
		"espresso": {ID: "espresso", Name: "Espresso", PriceCents: 350},
	}
	c := buildCart(menu, []lineFlag{{id: "espresso", qty: 2}, {id: "mystery", qty: 1}, {id: "espresso", qty: 1}})

	assert.Equal(t, 4, c.Count())
	assert.Equal(t, int64(1050), c.Subtotal())
	assert.Equal(t, []order.LineRequest{
		{ItemID: "espresso", Quantity: 3},
		{ItemID: "mystery", Quantity: 1},
	}, c.Items())
}

func TestLogCheckout_OmitsClientSecret(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	res := &client.CheckoutResult{OrderID: "o-1", ClientSecret: "pi_123_secret_abc"}

	logCheckout(zap.New(core), res, "req-1")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	for k, v := range fields {
		s, _ := v.(string)
		assert.False(t, strings.Contains(s, "secret"), "field %s leaks the client secret", k)
	}
}

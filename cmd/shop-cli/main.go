// Command shop-cli places an order against a running storefront and follows
// it until the payment settles.
//
//	shop-cli -token $SHOP_TOKEN -item espresso=2 -item croissant
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/client"
	"github.com/xenking/coffee-shop/internal/domain/cart"
	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/menufile"
	"github.com/xenking/coffee-shop/internal/observer"
)

type options struct {
	addr      string
	token     string
	menuFile  string
	requestID string
	watch     bool
	interval  time.Duration
	attempts  int
	items     []lineFlag
}

type lineFlag struct {
	id  string
	qty int
}

func parseLine(s string) (lineFlag, error) {
	id, qty, found := strings.Cut(s, "=")
	l := lineFlag{id: strings.TrimSpace(id), qty: 1}
	if l.id == "" {
		return l, errors.New("empty item id")
	}
	if found {
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			return l, errors.Errorf("invalid quantity %q", qty)
		}
		l.qty = n
	}
	return l, nil
}

func main() {
	var opts options

	flag.StringVar(&opts.addr, "addr", "http://localhost:8080", "storefront base URL")
	flag.StringVar(&opts.token, "token", os.Getenv("SHOP_TOKEN"), "session token (or SHOP_TOKEN env)")
	flag.StringVar(&opts.menuFile, "menu-file", "db/seed/menu.json", "menu JSON used for the local subtotal estimate")
	flag.StringVar(&opts.requestID, "request-id", "", "idempotency token; reuse it to retry the same checkout")
	flag.BoolVar(&opts.watch, "watch", true, "follow the order status after checkout")
	flag.DurationVar(&opts.interval, "interval", observer.DefaultInterval, "status poll interval")
	flag.IntVar(&opts.attempts, "attempts", observer.DefaultMaxAttempts, "status polls before giving up")
	flag.Func("item", "item to order as id[=qty], repeatable", func(s string) error {
		l, err := parseLine(s)
		if err != nil {
			return err
		}
		opts.items = append(opts.items, l)
		return nil
	})
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("shop-cli failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	if opts.token == "" {
		return errors.New("session token is required: set -token or SHOP_TOKEN")
	}

	menu, err := loadMenu(opts.menuFile)
	if err != nil {
		lg.Warn("Menu unavailable, subtotal estimate disabled", zap.Error(err))
	}
	c := buildCart(menu, opts.items)
	if c.Empty() {
		return errors.New("cart is empty: pass at least one -item")
	}
	lg.Info("Cart",
		zap.Int("units", c.Count()),
		zap.String("estimate", order.FormatAmount(c.Subtotal(), "usd")),
	)

	if opts.requestID == "" {
		opts.requestID = uuid.NewString()
	}
	api := client.New(opts.addr, opts.token)
	res, err := api.Checkout(ctx, c.Items(), opts.requestID)
	if err != nil {
		return err
	}
	logCheckout(lg, res, opts.requestID)
	if !opts.watch {
		return nil
	}

	status, err := observer.New(opts.interval, opts.attempts).Watch(ctx, res.OrderID, api, observer.Hooks{
		OnUpdate: func(s order.Status) { lg.Debug("Status", zap.String("status", string(s))) },
	})
	if err != nil {
		return errors.Wrap(err, "watch order")
	}
	if status == order.StatusPending {
		lg.Warn("Order still pending, check back later", zap.String("order_id", res.OrderID))
		return nil
	}
	lg.Info("Order settled", zap.String("order_id", res.OrderID), zap.String("status", string(status)))
	return nil
}

func loadMenu(path string) (map[string]catalog.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open menu")
	}
	defer func() { _ = f.Close() }()

	items, err := menufile.ReadArray(f)
	if err != nil {
		return nil, err
	}
	menu := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		menu[it.ID] = it
	}
	return menu, nil
}

// buildCart adds the requested lines. Items missing from the local menu are
// still ordered, priced at zero in the estimate; the server decides.
func buildCart(menu map[string]catalog.Item, lines []lineFlag) cart.Cart {
	var c cart.Cart
	for _, l := range lines {
		it, ok := menu[l.id]
		if !ok {
			it = catalog.Item{ID: l.id, Name: l.id}
		}
		for range l.qty {
			c = c.Add(it)
		}
	}
	return c
}

// logCheckout reports the created order. The client secret authorizes payment
// confirmation and is never logged.
func logCheckout(lg *zap.Logger, res *client.CheckoutResult, requestID string) {
	lg.Info("Checkout started",
		zap.String("order_id", res.OrderID),
		zap.String("request_id", requestID),
	)
}

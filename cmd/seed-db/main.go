package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/menufile"
	"github.com/xenking/coffee-shop/internal/storage/postgres"
)

type options struct {
	databaseURL   string
	menuFile      string
	pepper        string
	customerID    string
	customerToken string
	adminID       string
	adminToken    string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&opts.pepper, "session-pepper", "", "HMAC pepper for session tokens (or SHOP_SESSION_PEPPER env)")
	flag.StringVar(&opts.customerID, "customer-id", "demo-customer", "user id of the seeded customer session")
	flag.StringVar(&opts.customerToken, "customer-token", "", "session token to seed for the customer (or SHOP_SEED_CUSTOMER_TOKEN env)")
	flag.StringVar(&opts.adminID, "admin-id", "demo-admin", "user id of the seeded admin session")
	flag.StringVar(&opts.adminToken, "admin-token", "", "session token to seed for the admin (or SHOP_SEED_ADMIN_TOKEN env)")
	flag.Parse()

	envFallback(&opts.databaseURL, "DATABASE_URL")
	envFallback(&opts.pepper, "SHOP_SESSION_PEPPER")
	envFallback(&opts.customerToken, "SHOP_SEED_CUSTOMER_TOKEN")
	envFallback(&opts.adminToken, "SHOP_SEED_ADMIN_TOKEN")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.pepper == "" && (opts.customerToken != "" || opts.adminToken != "") {
		slog.Error("session pepper is required to seed sessions: set --session-pepper or SHOP_SESSION_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func envFallback(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}

func run(ctx context.Context, opts options) error {
	slog.Info("running migrations")

	if err := postgres.RunMigrations(opts.databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := seedMenu(ctx, postgres.NewCatalogRepository(pool), opts.menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	sessions := postgres.NewSessionRepository(pool)
	authn := auth.NewAuthenticator(sessions, []byte(opts.pepper))
	for _, s := range []struct {
		userID string
		token  string
		role   auth.Role
	}{
		{userID: opts.customerID, token: opts.customerToken, role: auth.RoleCustomer},
		{userID: opts.adminID, token: opts.adminToken, role: auth.RoleAdmin},
	} {
		if s.token == "" {
			slog.Info("no token given, skipping session", slog.String("user_id", s.userID))
			continue
		}
		if err := sessions.Create(ctx, auth.Session{
			UserID:  s.userID,
			Role:    s.role,
			KeyHash: authn.Hash(s.token),
		}); err != nil {
			return errors.Wrapf(err, "seed %s session", s.role)
		}
		slog.Info("upserted session", slog.String("user_id", s.userID), slog.String("role", string(s.role)))
	}

	return nil
}

func seedMenu(ctx context.Context, repo *postgres.CatalogRepository, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	f, err := os.Open(menuFile)
	if err != nil {
		return errors.Wrap(err, "open menu file")
	}
	defer func() { _ = f.Close() }()

	items, err := menufile.ReadArray(f)
	if err != nil {
		return err
	}

	n, err := repo.Upsert(ctx, items)
	if err != nil {
		return errors.Wrap(err, "upsert menu items")
	}

	slog.Info("upserted menu items", slog.Int64("count", n))
	return nil
}

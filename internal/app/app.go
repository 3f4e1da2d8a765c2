package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/domain/payment"
	"github.com/xenking/coffee-shop/internal/domain/profile"
	"github.com/xenking/coffee-shop/internal/events"
	"github.com/xenking/coffee-shop/internal/handler"
	"github.com/xenking/coffee-shop/internal/observer"
	"github.com/xenking/coffee-shop/internal/payment/stripe"
	"github.com/xenking/coffee-shop/internal/storage/postgres"
	"github.com/xenking/coffee-shop/pkg/health"
	"github.com/xenking/coffee-shop/pkg/httpmiddleware"
)

const webhookPath = "/api/stripe/webhook"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL migrations + pool.
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool), health.WithThresholds(2, 1))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000), health.WithThresholds(3, 1))

	// Order status events.
	var publisher order.EventPublisher = events.NewNop(lg)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg.Named("events"))
		defer func() {
			if err := kp.Close(); err != nil {
				lg.Error("Close kafka publisher", zap.Error(err))
			}
		}()
		// Broker outages affect fan-out only, not readiness.
		healthSvc.AddLivenessCheck("kafka", 5*time.Second, health.PingCheck(kp), health.WithThresholds(10, 1))
		publisher = kp
	}
	if cfg.Stripe.WebhookSecret == "" {
		lg.Warn("Stripe webhook secret is not set, webhook deliveries will be rejected")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: newHandler(ctx, cfg, pool, healthSvc,
			stripe.NewGateway(cfg.Stripe.SecretKey),
			publisher,
			m,
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// wsOrigins maps the CORS origin list onto the websocket origin check, where
// an empty list means any origin.
func wsOrigins(origins []string) []string {
	var out []string
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return nil
		}
		out = append(out, o)
	}
	return out
}

// newHandler builds repositories, domain services and the HTTP stack on top
// of pool.
func newHandler(
	ctx context.Context,
	cfg *Config,
	pool *pgxpool.Pool,
	healthSvc *health.Health,
	gateway payment.Gateway,
	publisher order.EventPublisher,
	t httpmiddleware.Telemetry,
) http.Handler {
	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)

	// Domain services.
	orderService := order.NewService(
		order.NewPricer(catalogRepo),
		orderRepo,
		gateway,
		order.WithTracerProvider(t.TracerProvider()),
	)
	reconciler := order.NewReconciler(
		stripe.NewVerifier(cfg.Stripe.WebhookSecret),
		orderRepo,
		publisher,
		order.WithMeterProvider(t.MeterProvider()),
	)
	profileService := profile.NewService(profileRepo)
	authn := auth.NewAuthenticator(sessionRepo, []byte(cfg.Session.Pepper))

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			SessionCookie:  cfg.Session.Cookie,
			MaxBodyBytes:   cfg.MaxBodyBytes,
			Observer:       observer.New(cfg.Observer.Interval, cfg.Observer.MaxAttempts),
			AllowedOrigins: wsOrigins(cfg.CORS.Origins),
		},
		orderService,
		reconciler,
		profileService,
		authn,
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			// Provider deliveries are never throttled.
			Skip: func(r *http.Request) bool { return r.URL.Path == webhookPath },
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("shop-api", routeFinder, t),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}

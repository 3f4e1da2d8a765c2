// Package handler exposes the storefront HTTP API on a net/http ServeMux.
package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/domain/profile"
	"github.com/xenking/coffee-shop/internal/observer"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SessionCookie names the cookie carrying the session token when no
	// Authorization header is sent.
	SessionCookie string
	// MaxBodyBytes bounds request bodies, webhooks included.
	MaxBodyBytes int64
	// Observer bounds the push status stream.
	Observer observer.Observer
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// Handler serves the checkout, order, webhook and profile endpoints.
type Handler struct {
	orders     *order.Service
	reconciler *order.Reconciler
	profiles   *profile.Service
	authn      *auth.Authenticator

	cookie   string
	maxBody  int64
	observer observer.Observer
	upgrader websocket.Upgrader
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	orders *order.Service,
	reconciler *order.Reconciler,
	profiles *profile.Service,
	authn *auth.Authenticator,
) *Handler {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "session"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 16
	}
	origins := make([]string, len(cfg.AllowedOrigins))
	for i, o := range cfg.AllowedOrigins {
		origins[i] = strings.ToLower(o)
	}
	return &Handler{
		orders:     orders,
		reconciler: reconciler,
		profiles:   profiles,
		authn:      authn,
		cookie:     cfg.SessionCookie,
		maxBody:    cfg.MaxBodyBytes,
		observer:   cfg.Observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || slices.Contains(origins, strings.ToLower(origin))
			},
		},
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.withSession(h.checkout))
	mux.HandleFunc("GET /api/orders", h.withSession(h.listOrders))
	mux.HandleFunc("GET /api/orders/lookup", h.withSession(h.lookupOrder))
	mux.HandleFunc("GET /api/orders/status", h.orderStatus)
	mux.HandleFunc("GET /api/orders/status/stream", h.statusStream)
	mux.HandleFunc("GET /api/admin/orders", h.withAdmin(h.adminOrders))
	mux.HandleFunc("POST /api/stripe/webhook", h.stripeWebhook)
	mux.HandleFunc("PATCH /api/profile", h.withSession(h.updateProfile))
	mux.HandleFunc("POST /api/profile", h.updateProfileForm)
}

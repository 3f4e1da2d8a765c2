package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/auth"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *auth.Session)

// token returns the bearer token, falling back to the session cookie.
func (h *Handler) token(r *http.Request) string {
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	if c, err := r.Cookie(h.cookie); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the caller and annotates the request logger.
func (h *Handler) authenticate(r *http.Request) (*auth.Session, *http.Request, error) {
	s, err := h.authn.Authenticate(r.Context(), h.token(r))
	if err != nil {
		return nil, r, err
	}
	ctx := auth.WithSession(r.Context(), s)
	ctx = zctx.With(ctx, zap.String("user_id", s.UserID))
	return s, r.WithContext(ctx), nil
}

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, r, err := h.authenticate(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		next(w, r, s)
	}
}

func (h *Handler) withAdmin(next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, s *auth.Session) {
		if !s.Admin() {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r, s)
	})
}

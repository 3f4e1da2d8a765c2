package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	orders, err := h.orders.History(r.Context(), s.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) { encodeOrders(e, orders) })
		})
	})
}

// lookupOrder serves the confirmation page, which knows either the order id
// or the payment intent from the provider redirect.
func (h *Handler) lookupOrder(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	q := r.URL.Query()
	m := order.Match{OrderID: q.Get("order"), PaymentIntentID: q.Get("payment_intent")}
	if m.OrderID == "" && m.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "Missing order or payment_intent")
		return
	}

	o, err := h.orders.Lookup(r.Context(), s.UserID, m)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

func (h *Handler) adminOrders(w http.ResponseWriter, r *http.Request, _ *auth.Session) {
	q := r.URL.Query()
	f := order.AdminFilter{Status: order.Status(q.Get("status"))}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}
	if v := q.Get("cursor"); v != "" {
		t, id, err := parseCursor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
		f.Before, f.BeforeID = t, id
	}

	orders, err := h.orders.AdminList(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) { encodeOrders(e, orders) })
			e.Field("nextCursor", func(e *jx.Encoder) {
				if len(orders) == 0 || len(orders) < order.AdminPageSize(f.Limit) {
					e.Null()
					return
				}
				e.Str(formatCursor(orders[len(orders)-1]))
			})
		})
	})
}

// formatCursor renders the admin page cursor as "<created_at>|<id>".
func formatCursor(o order.Order) string {
	return o.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + o.ID
}

// parseCursor accepts "<created_at>|<id>" and a bare timestamp.
func parseCursor(v string) (time.Time, string, error) {
	ts, id, _ := strings.Cut(v, "|")
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", errors.Wrap(err, "parse cursor")
	}
	return t, id, nil
}

package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/domain/payment"
)

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	var e jx.Encoder
	body(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// fail maps domain errors to HTTP responses. order.ErrNotFound is left to
// callers since its meaning depends on the route. Unexpected errors are logged and
// reported without detail.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound *order.ItemNotFoundError
		badQty   *order.InvalidQuantityError
		gateway  *payment.GatewayError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, order.ErrAmountTooLarge):
		writeError(w, http.StatusBadRequest, "Order amount is too large")
	case errors.As(err, &notFound), errors.As(err, &badQty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.As(err, &gateway):
		zctx.From(r.Context()).Error("Payment provider error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Payment provider error")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("amountCents", func(e *jx.Encoder) { e.Int64(o.AmountCents) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
		e.Field("amount", func(e *jx.Encoder) { e.Str(order.FormatAmount(o.AmountCents, o.Currency)) })
		if o.PaymentIntentID != "" {
			e.Field("paymentIntentId", func(e *jx.Encoder) { e.Str(o.PaymentIntentID) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
		if o.Lines != nil {
			e.Field("lines", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range o.Lines {
						encodeLine(e, l)
					}
				})
			})
		}
	})
}

func encodeLine(e *jx.Encoder, l order.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("itemId", func(e *jx.Encoder) { e.Str(l.ItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("unitPriceCents", func(e *jx.Encoder) { e.Int64(l.UnitPriceCents) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(l.Currency) })
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for _, o := range orders {
			encodeOrder(e, o)
		}
	})
}

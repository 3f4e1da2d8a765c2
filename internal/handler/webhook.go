package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

// stripeWebhook acknowledges every authenticated delivery. Only a failed
// verification is reported to the provider.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		zctx.From(r.Context()).Error("Webhook payload too large", zap.Int64("limit", tooLarge.Limit))
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Unreadable payload")
		return
	}

	if err := h.reconciler.Handle(r.Context(), payload, r.Header.Get(HeaderStripeSignature)); err != nil {
		zctx.From(r.Context()).Warn("Webhook rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("received", func(e *jx.Encoder) { e.Bool(true) })
		})
	})
}

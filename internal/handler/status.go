package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/order"
	"github.com/xenking/coffee-shop/internal/observer"
)

const streamWriteTimeout = 5 * time.Second

// orderStatus reports the current status, or null for an unknown order.
func (h *Handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing order id")
		return
	}

	status, err := h.orders.Status(r.Context(), id)
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) {
				if status == "" {
					e.Null()
					return
				}
				e.Str(string(status))
			})
		})
	})
}

// statusStream upgrades to a websocket and pushes every status read until
// the order settles, the poll budget runs out or the client goes away.
func (h *Handler) statusStream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing order id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		zctx.From(r.Context()).Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	lg := zctx.From(ctx).With(zap.String("order_id", id))

	// Reads are only needed to notice the client closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(status order.Status, settled bool) {
		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str(string(status)) })
			e.Field("settled", func(e *jx.Encoder) { e.Bool(settled) })
		})
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, e.Bytes()); err != nil {
			lg.Debug("Status push failed", zap.Error(err))
			cancel()
		}
	}

	status, err := h.observer.Watch(ctx, id, h.orders, observer.Hooks{
		OnUpdate: func(s order.Status) {
			if s == order.StatusPending {
				send(s, false)
			}
		},
		OnSettled: func(s order.Status) { send(s, true) },
	})
	if err != nil {
		return
	}

	reason := "timeout"
	if status != "" && status != order.StatusPending {
		reason = "settled"
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(streamWriteTimeout),
	)
}

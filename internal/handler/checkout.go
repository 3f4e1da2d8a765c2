package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/order"
)

type checkoutRequest struct {
	Lines           []order.LineRequest
	ClientRequestID string
}

// decodeCheckout reads {"items":[{"id":"…","qty":1}],"clientRequestId":"…"}.
// "quantity" is accepted as an alias of "qty".
func decodeCheckout(d *jx.Decoder) (checkoutRequest, error) {
	var req checkoutRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var line order.LineRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						line.ItemID, err = d.Str()
					case "qty", "quantity":
						line.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
				return nil
			})
		case "clientRequestId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			req.ClientRequestID = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req, err := decodeCheckout(jx.DecodeBytes(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:       s.UserID,
		Lines:        req.Lines,
		RequestToken: req.ClientRequestID,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("clientSecret", func(e *jx.Encoder) { e.Str(res.ClientSecret) })
			e.Field("orderId", func(e *jx.Encoder) { e.Str(res.OrderID) })
		})
	})
}

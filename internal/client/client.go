// Package client calls the storefront API on behalf of the operator CLI.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coffee-shop/internal/domain/order"
)

const maxResponseBytes = 1 << 20

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// Client is a storefront API client authenticated by a session token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckoutResult is the payment handle returned by checkout.
type CheckoutResult struct {
	OrderID      string
	ClientSecret string
}

// Checkout starts checkout for lines under the idempotency token requestID.
func (c *Client) Checkout(ctx context.Context, lines []order.LineRequest, requestID string) (*CheckoutResult, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(l.ItemID) })
						e.Field("qty", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
		if requestID != "" {
			e.Field("clientRequestId", func(e *jx.Encoder) { e.Str(requestID) })
		}
	})

	body, err := c.do(ctx, http.MethodPost, "/api/checkout", e.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	var res CheckoutResult
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			res.OrderID, err = d.Str()
		case "clientSecret":
			res.ClientSecret, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode checkout response")
	}
	if res.OrderID == "" {
		return nil, errors.New("checkout response has no order id")
	}
	return &res, nil
}

// Status returns the order status, or order.ErrNotFound when the server
// reports none. It makes Client an observer.Source.
func (c *Client) Status(ctx context.Context, orderID string) (order.Status, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/orders/status?id="+url.QueryEscape(orderID), nil)
	if err != nil {
		return "", errors.Wrap(err, "order status")
	}

	var status order.Status
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		s, err := d.Str()
		status = order.Status(s)
		return err
	}); err != nil {
		return "", errors.Wrap(err, "decode status response")
	}
	if status == "" {
		return "", order.ErrNotFound
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw body.
func errorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		v, err := d.Str()
		msg = v
		return err
	})
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return msg
}

// Package coinflow is a thin client for the payment processor's checkout
// REST API. Response bodies are decoded into untyped JSON values because
// their shape varies across environments and versions; canonicalization
// happens in internal/normalize.
package coinflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
)

type Client struct {
	base string
	auth Auth
	http *http.Client
}

func New(base string, auth Auth, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), auth: auth, http: hc}
}

func (c *Client) Auth() Auth { return c.auth }

// CardDetails carries the billing fields plus the opaque card token for a
// new-card checkout. Raw card data never appears here.
type CardDetails struct {
	ExpYear   string `json:"expYear"`
	ExpMonth  string `json:"expMonth"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	State     string `json:"state"`
	Country   string `json:"country"`
	CardToken string `json:"cardToken"`
}

type CardCheckoutRequest struct {
	Subtotal models.CurrencyAmount `json:"subtotal"`
	Card     CardDetails           `json:"card"`
}

type TokenCheckoutRequest struct {
	Subtotal models.CurrencyAmount `json:"subtotal"`
	Token    string                `json:"token"`
}

type totalsRequest struct {
	Subtotal models.CurrencyAmount `json:"subtotal"`
}

// Customer fetches the customer record including any saved payment
// methods. A non-object body parses to an empty record rather than an
// error.
func (c *Client) Customer(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/api/customer/v2", nil)
}

// Totals asks the processor to compute the total for a subtotal.
func (c *Client) Totals(ctx context.Context, merchantID string, subtotal models.CurrencyAmount) (any, error) {
	return c.do(ctx, http.MethodPost, "/api/checkout/totals/"+merchantID, totalsRequest{Subtotal: subtotal})
}

// CardCheckout executes a checkout with a freshly tokenized card.
func (c *Client) CardCheckout(ctx context.Context, merchantID string, req CardCheckoutRequest) (any, error) {
	return c.do(ctx, http.MethodPost, "/api/checkout/card/"+merchantID, req)
}

// TokenCheckout executes a checkout with a saved token plus a fresh CVV
// token.
func (c *Client) TokenCheckout(ctx context.Context, merchantID string, req TokenCheckoutRequest) (any, error) {
	return c.do(ctx, http.MethodPost, "/api/checkout/token/"+merchantID, req)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if err := c.auth.Apply(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, parseError(resp)
	}

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// The success payload is opaque; an empty or non-JSON body is
		// treated as an empty record.
		return map[string]any{}, nil
	}
	return decoded, nil
}

// parseError surfaces the server's message/error field verbatim when the
// body is JSON, otherwise a generic message naming the HTTP status.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if msg, ok := decoded["message"].(string); ok && msg != "" {
			return fmt.Errorf("%s", msg)
		}
		if msg, ok := decoded["error"].(string); ok && msg != "" {
			return fmt.Errorf("%s", msg)
		}
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

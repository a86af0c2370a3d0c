// Package paystack drives the payment gateway: transaction initialization,
// verification, and webhook signature validation.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/stylemart/stylemart-backend-go/errs"
)

const DefaultBaseURL = "https://api.paystack.co"

// MinorUnitScale converts between major currency units and the minor units
// (kobo) the gateway speaks.
const MinorUnitScale = 100

type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func New(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"` // minor units
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Channels    []string       `json:"channels,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the gateway's verdict on one payment attempt, normalized to
// the three states the reconciliation engine understands.
type VerifyResult struct {
	Status string // "success", "failed" or "pending"
	Amount int64  // minor units
	Raw    map[string]any
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var result InitializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errs.Unavailable("payment gateway returned malformed response", err)
	}
	return &result, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errs.Unavailable("payment gateway returned malformed response", err)
	}

	var raw map[string]any
	_ = json.Unmarshal(data, &raw)

	return &VerifyResult{
		Status: normalizeStatus(payload.Status),
		Amount: payload.Amount,
		Raw:    raw,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Unavailable("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, errs.Unavailable("payment gateway returned malformed response", err)
	}
	if resp.StatusCode >= 400 || !envelope.Status {
		return nil, errs.Unavailable(fmt.Sprintf("payment gateway error: %s", envelope.Message), nil)
	}
	return envelope.Data, nil
}

// Paystack reports charge states beyond the three we reconcile on; anything
// terminal-but-unsuccessful collapses to failed, anything in flight to pending.
func normalizeStatus(s string) string {
	switch s {
	case "success":
		return StatusSuccess
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// ToMinor converts a major-unit amount to the gateway's minor units.
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * MinorUnitScale))
}

package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
)

// Event is the webhook payload shape. Only charge events carry the fields the
// reconciliation engine needs.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"` // minor units
	} `json:"data"`
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// VerifyResult converts the event into the shape the engine reconciles on.
func (e *Event) VerifyResult() VerifyResult {
	var raw map[string]any
	_ = json.Unmarshal(e.marshal(), &raw)
	return VerifyResult{
		Status: normalizeStatus(e.Data.Status),
		Amount: e.Data.Amount,
		Raw:    raw,
	}
}

func (e *Event) marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// ValidateWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed by the account secret. Pure function so
// it can be tested without any transport.
func ValidateWebhookSignature(rawBody []byte, signatureHeader, secretKey string) bool {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

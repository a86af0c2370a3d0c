package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/orders"
	"github.com/stylemart/stylemart-backend-go/paystack"
)

const webhookSecret = "sk_test_webhook"

// fakeReconciler records what the webhook handed to the engine.
type fakeReconciler struct {
	calls      []paystack.VerifyResult
	references []string
	verifiers  []string
	outcome    *orders.Outcome
	err        error
	poll       *orders.PollStatus
}

func (f *fakeReconciler) Reconcile(_ context.Context, reference string, vr paystack.VerifyResult, verifiedBy string) (*orders.Outcome, error) {
	f.calls = append(f.calls, vr)
	f.references = append(f.references, reference)
	f.verifiers = append(f.verifiers, verifiedBy)
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeReconciler) Poll(_ context.Context, reference string) (*orders.PollStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.poll, nil
}

func signBody(body string) string {
	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(t *testing.T, h *Handler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Webhook(e.NewContext(req, rec)))
	return rec
}

func newWebhookHandler(engine Reconciler) *Handler {
	return &Handler{
		Engine:        engine,
		WebhookSecret: webhookSecret,
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestWebhookChargeSuccess(t *testing.T) {
	engine := &fakeReconciler{outcome: &orders.Outcome{Status: models.TransactionCompleted}}
	h := newWebhookHandler(engine)

	body := `{"event":"charge.success","data":{"reference":"ref_9","status":"success","amount":12500}}`
	rec := webhookRequest(t, h, body, signBody(body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "completed", resp["status"])

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "ref_9", engine.references[0])
	assert.Equal(t, "webhook", engine.verifiers[0])
	assert.Equal(t, paystack.StatusSuccess, engine.calls[0].Status)
	assert.Equal(t, int64(12500), engine.calls[0].Amount)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	engine := &fakeReconciler{}
	h := newWebhookHandler(engine)

	body := `{"event":"charge.success","data":{"reference":"ref_9","status":"success","amount":12500}}`

	rec := webhookRequest(t, h, body, "not-a-signature")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = webhookRequest(t, h, body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the engine never sees an unauthenticated event
	assert.Empty(t, engine.calls)
}

func TestWebhookIgnoresUnhandledEvents(t *testing.T) {
	engine := &fakeReconciler{}
	h := newWebhookHandler(engine)

	body := `{"event":"transfer.success","data":{"reference":"ref_9"}}`
	rec := webhookRequest(t, h, body, signBody(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, engine.calls)
}

func TestWebhookInternalErrorStillReturns200(t *testing.T) {
	engine := &fakeReconciler{err: errs.NotFound("transaction not found")}
	h := newWebhookHandler(engine)

	body := `{"event":"charge.success","data":{"reference":"ref_unknown","status":"success","amount":100}}`
	rec := webhookRequest(t, h, body, signBody(body))

	// 200 so the gateway stops retrying; the failure is in the body
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestWebhookMalformedBody(t *testing.T) {
	engine := &fakeReconciler{}
	h := newWebhookHandler(engine)

	body := "not json at all"
	rec := webhookRequest(t, h, body, signBody(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, engine.calls)
}

func TestWebhookChargeFailedReconciles(t *testing.T) {
	engine := &fakeReconciler{outcome: &orders.Outcome{Status: models.TransactionFailed}}
	h := newWebhookHandler(engine)

	body := `{"event":"charge.failed","data":{"reference":"ref_9","status":"failed","amount":12500}}`
	rec := webhookRequest(t, h, body, signBody(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, paystack.StatusFailed, engine.calls[0].Status)
}

func TestPaymentStatusPolling(t *testing.T) {
	engine := &fakeReconciler{poll: &orders.PollStatus{Status: models.TransactionPending, ShouldVerify: true}}
	h := newWebhookHandler(engine)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("reference")
	c.SetParamValues("ref_9")

	require.NoError(t, h.PaymentStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp orders.PollStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.TransactionPending, resp.Status)
	assert.True(t, resp.ShouldVerify)
}

func TestPaymentStatusUnknownReference(t *testing.T) {
	engine := &fakeReconciler{err: errs.NotFound("transaction not found")}
	h := newWebhookHandler(engine)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("reference")
	c.SetParamValues("ref_missing")

	require.NoError(t, h.PaymentStatus(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

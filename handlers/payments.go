package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/metrics"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/paystack"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

const maxWebhookBody = 1 << 16

// Webhook receives gateway push notifications. Signature validation is a
// precondition; after that the gateway always gets a 200 so it stops
// retrying, with the real processing outcome in the success field.
func (h *Handler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false})
	}

	signature := c.Request().Header.Get("x-paystack-signature")
	if !paystack.ValidateWebhookSignature(body, signature, h.WebhookSecret) {
		h.Log.Warn("webhook signature validation failed")
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false})
	}

	event, err := paystack.ParseEvent(body)
	if err != nil {
		h.Log.Error("webhook body malformed", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]any{"success": false})
	}
	metrics.WebhookEvents.WithLabelValues(event.Event).Inc()

	switch event.Event {
	case "charge.success", "charge.failed":
	default:
		return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Event type not handled"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := h.Engine.Reconcile(ctx, event.Data.Reference, event.VerifyResult(), "webhook")
	if err != nil {
		// Internal failures never bounce back to the gateway as errors;
		// the reference stays reconcilable through verify or polling.
		h.Log.Error("webhook reconciliation failed",
			slog.String("reference", event.Data.Reference), slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]any{"success": false})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"status":  outcome.Status,
	})
}

// VerifyPayment is the user-initiated verification path: ask the gateway for
// its verdict, then reconcile it.
func (h *Handler) VerifyPayment(c echo.Context) error {
	reference := c.Param("reference")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vr, err := h.Gateway.Verify(ctx, reference)
	if err != nil {
		return fail(c, err)
	}

	outcome, err := h.Engine.Reconcile(ctx, reference, *vr, "manual")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// PaymentStatus is the polling route: the ledger's view plus a hint whether
// the client should call verify.
func (h *Handler) PaymentStatus(c echo.Context) error {
	reference := c.Param("reference")

	status, err := h.Engine.Poll(c.Request().Context(), reference)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// FundWallet initializes a gateway charge that, once reconciled, credits the
// user's wallet.
func (h *Handler) FundWallet(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Amount must be positive"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := h.Store.UserByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}

	reference := wallet.NewReference()
	init, err := h.Gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      paystack.ToMinor(req.Amount),
		Reference:   reference,
		CallbackURL: h.CallbackURL,
		Metadata:    map[string]any{"purpose": string(models.PurposeWalletFunding)},
	})
	if err != nil {
		return fail(c, err)
	}

	now := time.Now()
	pending := &models.Transaction{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Amount:    req.Amount,
		Type:      models.TransactionCredit,
		Purpose:   models.PurposeWalletFunding,
		Reference: reference,
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Store.InsertTransaction(ctx, pending); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to record transaction"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"authorizationUrl": init.AuthorizationURL,
		"reference":        reference,
	})
}

// GetWallet returns the balance.
func (h *Handler) GetWallet(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	user, err := h.Store.UserByID(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"walletBalance": user.WalletBalance})
}

// GetTransactions returns the user's ledger history.
func (h *Handler) GetTransactions(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := cache.TransactionsKey(userID.Hex(), 0)
	if cached, ok := h.Cache.Get(ctx, key); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	txs, err := h.Wallet.Transactions(ctx, userID)
	if err != nil {
		return fail(c, err)
	}

	if body, err := json.Marshal(txs); err == nil {
		h.Cache.Set(ctx, key, body, time.Minute)
	}
	return c.JSON(http.StatusOK, txs)
}

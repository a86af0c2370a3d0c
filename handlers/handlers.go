package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/database"
	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/orders"
	"github.com/stylemart/stylemart-backend-go/paystack"
	"github.com/stylemart/stylemart-backend-go/realtime"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

// Reconciler is what the payment endpoints need from the reconciliation
// engine. *orders.Engine satisfies it; tests substitute a fake.
type Reconciler interface {
	Reconcile(ctx context.Context, reference string, vr paystack.VerifyResult, verifiedBy string) (*orders.Outcome, error)
	Poll(ctx context.Context, reference string) (*orders.PollStatus, error)
}

// Handler carries the injected collaborators. Handlers stay thin: bind,
// delegate, map errors.
type Handler struct {
	Store         *database.Store
	Cache         cache.Cache
	Orders        *orders.Service
	Engine        Reconciler
	Wallet        *wallet.Service
	Gateway       orders.Gateway
	Hub           *realtime.Hub
	WebhookSecret string
	CallbackURL   string
	Log           *slog.Logger
}

// fail maps the error taxonomy onto HTTP status codes.
func fail(c echo.Context, err error) error {
	switch errs.KindOf(err) {
	case errs.KindBadRequest:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errs.KindNotFound:
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errs.KindUnavailable:
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Something went wrong"})
	}
}

package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/metrics"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/notify"
	"github.com/stylemart/stylemart-backend-go/paystack"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

// Engine applies a gateway verdict to internal state exactly once. Webhook
// delivery, manual verification, and polling-triggered verification all call
// Reconcile; whichever lands first performs the mutations, the rest observe
// the idempotence guard.
type Engine struct {
	store      Store
	wallet     *wallet.Service
	cache      cache.Cache
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

func NewEngine(store Store, w *wallet.Service, c cache.Cache, d *notify.Dispatcher, log *slog.Logger) *Engine {
	return &Engine{store: store, wallet: w, cache: c, dispatcher: d, log: log}
}

// Outcome reports what a reconciliation attempt did.
type Outcome struct {
	Status           models.TransactionStatus `json:"status"`
	AlreadyProcessed bool                     `json:"alreadyProcessed"`
	Transaction      *models.Transaction      `json:"transaction,omitempty"`
	Order            *models.Order            `json:"order,omitempty"`
}

// Reconcile runs the payment confirmation state machine for one reference.
// Steps 1-5 execute in a single unit of work; two concurrent calls for the
// same reference serialize on the pending->completed compare-and-swap, so
// only one performs the mutating path.
func (e *Engine) Reconcile(ctx context.Context, reference string, vr paystack.VerifyResult, verifiedBy string) (*Outcome, error) {
	var out Outcome
	var customerEmail string

	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		tx, err := e.store.TransactionByReference(ctx, reference)
		if err != nil {
			return err
		}

		// Idempotence guard: a completed reference is terminal. Double
		// webhook delivery and webhook-vs-manual races land here.
		if tx.Status == models.TransactionCompleted {
			out = Outcome{Status: tx.Status, AlreadyProcessed: true, Transaction: tx}
			return nil
		}
		if tx.Status != models.TransactionPending {
			out = Outcome{Status: tx.Status, AlreadyProcessed: true, Transaction: tx}
			return nil
		}

		if vr.Status != paystack.StatusSuccess {
			if vr.Status == paystack.StatusPending {
				out = Outcome{Status: models.TransactionPending, Transaction: tx}
				return nil
			}
			failed, err := e.store.FailTransaction(ctx, reference, gatewayReason(vr))
			if err != nil {
				return err
			}
			if !failed {
				out = Outcome{Status: tx.Status, AlreadyProcessed: true, Transaction: tx}
				return nil
			}
			tx.Status = models.TransactionFailed
			out = Outcome{Status: models.TransactionFailed, Transaction: tx}
			return nil
		}

		expected := paystack.ToMinor(tx.Amount)
		if diff := vr.Amount - expected; diff > AmountToleranceMinor || diff < -AmountToleranceMinor {
			e.log.Error("gateway amount mismatch",
				slog.String("reference", reference),
				slog.Int64("expected", expected),
				slog.Int64("reported", vr.Amount))
			return errs.BadRequest("payment amount does not match expected amount")
		}

		switch tx.Purpose {
		case models.PurposeWalletFunding:
			settled, err := e.wallet.Credit(ctx, wallet.Entry{
				UserID:     tx.UserID,
				Amount:     tx.Amount,
				Reference:  reference,
				Purpose:    models.PurposeWalletFunding,
				VerifiedBy: verifiedBy,
			})
			if err != nil {
				return err
			}
			out = Outcome{Status: models.TransactionCompleted, Transaction: settled}
			return nil

		case models.PurposeOrderPayment:
			return e.settleOrderPayment(ctx, tx, verifiedBy, &out, &customerEmail)

		default:
			return errs.BadRequest("transaction purpose cannot be reconciled")
		}
	})
	if err != nil {
		metrics.Reconciliations.WithLabelValues("error", verifiedBy).Inc()
		return nil, err
	}

	e.afterCommit(ctx, &out, verifiedBy, customerEmail)
	return &out, nil
}

func (e *Engine) settleOrderPayment(ctx context.Context, tx *models.Transaction, verifiedBy string, out *Outcome, customerEmail *string) error {
	user, err := e.store.UserByID(ctx, tx.UserID)
	if err != nil {
		return err
	}

	// Direct-to-gateway payments never touch the wallet, so the balance
	// bracket records no change.
	settled, err := e.store.SettleTransaction(ctx, tx.Reference, verifiedBy,
		user.WalletBalance, user.WalletBalance)
	if err != nil {
		return err
	}
	if !settled {
		*out = Outcome{Status: models.TransactionCompleted, AlreadyProcessed: true, Transaction: tx}
		return nil
	}

	order, err := e.store.OrderByID(ctx, tx.OrderID)
	if err != nil {
		return err
	}

	now := time.Now()
	info := order.PaymentInfo
	info.AmountPaid = round2(info.AmountPaid + tx.Amount)
	info.BalanceDue = round2(order.TotalPrice - info.AmountPaid)
	if info.BalanceDue < 0.01 {
		info.BalanceDue = 0
		info.PaymentStatus = models.PaymentCompleted
	} else {
		info.PaymentStatus = models.PaymentPartiallyPaid
	}
	info.TransactionID = tx.Reference
	info.PaymentDate = &now

	stockReduced := order.StockReduced
	if order.OrderType == models.OrderTypeStandard &&
		info.PaymentStatus == models.PaymentCompleted && !stockReduced {
		for _, item := range order.OrderItems {
			if err := e.store.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		stockReduced = true
	}

	if err := e.store.ApplyOrderPayment(ctx, order.ID, info, models.OrderStatusProcessing, stockReduced); err != nil {
		return err
	}

	order.PaymentInfo = info
	order.OrderStatus = models.OrderStatusProcessing
	order.StockReduced = stockReduced

	tx.Status = models.TransactionCompleted
	tx.VerifiedBy = verifiedBy
	*customerEmail = user.Email
	*out = Outcome{Status: models.TransactionCompleted, Transaction: tx, Order: order}
	return nil
}

// afterCommit handles everything that must not roll back the transactional
// core: cache invalidation and notification fan-out. Failures are logged.
func (e *Engine) afterCommit(ctx context.Context, out *Outcome, verifiedBy, customerEmail string) {
	metrics.Reconciliations.WithLabelValues(reconcileLabel(out), verifiedBy).Inc()

	if out.AlreadyProcessed || out.Status != models.TransactionCompleted {
		return
	}

	tx := out.Transaction
	if tx.Purpose == models.PurposeWalletFunding {
		e.dispatcher.WalletFunded(ctx, tx.UserID.Hex(), tx.Amount)
		return
	}

	if out.Order != nil {
		customer := out.Order.Customer.Hex()
		e.cache.Clear(ctx, cache.OrderKey(out.Order.ID.Hex()))
		e.cache.Clear(ctx, cache.UserOrdersKey(customer))
		for _, stylist := range out.Order.Stylists() {
			e.cache.Clear(ctx, cache.StylistOrdersKey(stylist.Hex()))
		}
		if out.Order.StockReduced {
			for _, item := range out.Order.OrderItems {
				e.cache.Clear(ctx, cache.ProductKey(item.ProductID.Hex()))
			}
			e.cache.Clear(ctx, cache.ProductsKey())
		}
		e.dispatcher.OrderPaid(ctx, out.Order, customerEmail)
	}
}

func reconcileLabel(out *Outcome) string {
	if out.AlreadyProcessed {
		return "already_processed"
	}
	return string(out.Status)
}

func gatewayReason(vr paystack.VerifyResult) string {
	if reason, ok := vr.Raw["gateway_response"].(string); ok && reason != "" {
		return reason
	}
	return "gateway reported " + vr.Status
}

// PollStatus answers the polling endpoint: the ledger's view of a reference
// plus whether the client should trigger an explicit verify.
type PollStatus struct {
	Status       models.TransactionStatus `json:"status"`
	ShouldVerify bool                     `json:"shouldVerify,omitempty"`
}

func (e *Engine) Poll(ctx context.Context, reference string) (*PollStatus, error) {
	tx, err := e.store.TransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	status := &PollStatus{Status: tx.Status}
	if tx.Status == models.TransactionPending {
		status.ShouldVerify = true
	}
	return status, nil
}

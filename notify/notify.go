// Package notify fans out side-channel notifications after the transactional
// core commits. Nothing here may fail a request: errors are logged and
// swallowed.
package notify

import (
	"context"
	"log/slog"

	"github.com/stylemart/stylemart-backend-go/models"
)

// Notifier pushes an event to a realtime room.
type Notifier interface {
	Notify(room, event string, payload any) error
}

// EmailSender delivers transactional email.
type EmailSender interface {
	SendOrderEmail(ctx context.Context, to string, order *models.Order) error
}

type Dispatcher struct {
	notifier Notifier
	email    EmailSender
	log      *slog.Logger
}

func NewDispatcher(n Notifier, e EmailSender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, email: e, log: log}
}

// OrderPaid notifies the admin room, every stylist with items on the order,
// and emails the customer.
func (d *Dispatcher) OrderPaid(ctx context.Context, order *models.Order, customerEmail string) {
	payload := map[string]any{
		"orderId":       order.ID.Hex(),
		"totalPrice":    order.TotalPrice,
		"paymentStatus": order.PaymentInfo.PaymentStatus,
	}

	if err := d.notifier.Notify("admin", "order:paid", payload); err != nil {
		d.log.Error("admin notification failed", slog.Any("error", err))
	}
	for _, stylist := range order.Stylists() {
		if err := d.notifier.Notify("stylist:"+stylist.Hex(), "order:paid", payload); err != nil {
			d.log.Error("stylist notification failed",
				slog.String("stylist", stylist.Hex()), slog.Any("error", err))
		}
	}

	if customerEmail != "" {
		if err := d.email.SendOrderEmail(ctx, customerEmail, order); err != nil {
			d.log.Error("order email failed",
				slog.String("to", customerEmail), slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) WalletFunded(ctx context.Context, userID string, amount float64) {
	err := d.notifier.Notify("user:"+userID, "wallet:funded", map[string]any{
		"amount": amount,
	})
	if err != nil {
		d.log.Error("wallet notification failed",
			slog.String("user", userID), slog.Any("error", err))
	}
}

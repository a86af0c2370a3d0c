package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/stylemart/stylemart-backend-go/models"
)

// SMTPSender sends order confirmation email over plain SMTP.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *SMTPSender) SendOrderEmail(_ context.Context, to string, order *models.Order) error {
	subject := "Order Confirmation"
	body := fmt.Sprintf(
		"Thank you for your order! Your order ID is %s and we received a payment of %.2f. We are processing it now.",
		order.ID.Hex(), order.PaymentInfo.AmountPaid)

	message := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{to}, message)
}

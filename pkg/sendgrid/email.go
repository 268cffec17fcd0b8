package sendgrid

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailService sends the order confirmation mail after checkout. Delivery is
// best effort; checkout never fails on a mail error.
type EmailService interface {
	SendOrderConfirmation(to, customerName, orderID string, totalAmount float64) error
}

type emailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey string, fromEmail string, fromName string) EmailService {
	return &emailService{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail, fromName: fromName}
}

// SendOrderConfirmation implements EmailService.
func (e *emailService) SendOrderConfirmation(to, customerName, orderID string, totalAmount float64) error {

	from := mail.NewEmail(e.fromName, e.fromEmail)
	recipient := mail.NewEmail(customerName, to)

	subject := fmt.Sprintf("Order %s confirmed", orderID)
	content := fmt.Sprintf("Hi %s,\n\nyour order %s for %.2f has been confirmed and is being prepared.\n", customerName, orderID, totalAmount)

	message := mail.NewSingleEmail(from, subject, recipient, content, "")

	response, err := e.client.Send(message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	return nil
}

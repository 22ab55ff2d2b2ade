package notifier

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"vehicle-booking-engine/internal/domain"
)

// Mailer sends one rendered email.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error
}

// EmailChannel renders notifications and hands them to a Mailer.
type EmailChannel struct {
	mailer Mailer
}

func NewEmailChannel(mailer Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Deliver(ctx context.Context, user *domain.User, n domain.Notification) error {
	if user.Email == "" {
		return errors.Newf("user %d has no email address", user.ID)
	}
	return c.mailer.Send(ctx, user.Email, user.Name, subject(n), plainBody(user, n), htmlBody(user, n))
}

type sendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) Mailer {
	return &sendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridMailer) Send(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)
	return checkSendGridResponse(s.client.SendWithContext(ctx, message))
}

func checkSendGridResponse(resp *rest.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "failed to send email")
	}
	if resp.StatusCode >= 400 {
		return errors.Newf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpMailer struct {
	dialer smtpDialer
	from   string
}

// NewSMTPMailer sends through a plain SMTP relay.
func NewSMTPMailer(host string, port int, username, password, from string) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *smtpMailer) Send(ctx context.Context, toEmail, toName, subject, plainText, htmlContent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", toEmail, toName)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainText)
	m.AddAlternative("text/html", htmlContent)

	if err := s.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "failed to send email via smtp")
	}
	return nil
}

package notification

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"github.com/mmdatafocus/shop_inventory/config"
)

type EmailSink struct {
	dialer *gomail.Dialer
	sender string
}

func NewEmailSink(settings config.MailSettings) (*EmailSink, error) {
	if !settings.Configured() {
		return nil, errors.New("SMTP_HOST and SMTP_SENDER are required")
	}
	return &EmailSink{
		dialer: gomail.NewDialer(settings.Host, settings.Port, settings.Username, settings.Password),
		sender: settings.Sender,
	}, nil
}

func (s *EmailSink) Name() string {
	return config.NotifyDriverSMTP
}

func (s *EmailSink) Send(ctx context.Context, alert Alert) error {
	body, err := RenderHTML(alert)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.sender)
	m.SetHeader("To", alert.Recipient)
	m.SetHeader("Subject", Subject(alert))
	m.SetBody("text/html", body)

	// gomail has no context support; stop waiting when ctx is done
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package services

import (
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/PR1MKO/iktato-backend/internal/logger"
)

// Mailer is the external collaborator for deadline warnings. The SMTP
// implementation is swapped for a recorder in tests.
type Mailer interface {
	Send(to []string, subject, body string) error
}

type smtpMailer struct {
	log    *logger.Logger
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(log *logger.Logger, host string, port int, username, password, from string) Mailer {
	mailerLog := log.With("service", "Mailer")
	return &smtpMailer{
		log:    mailerLog,
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *smtpMailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", strings.Join(to, ","), err)
	}
	m.log.Info("mail sent", "to", strings.Join(to, ","), "subject", subject)
	return nil
}

package mail

import (
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Mailer sends a single plain-text message. Implementations must be safe
// for concurrent use.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay with AUTH PLAIN.
type SMTPMailer struct {
	host     string
	port     string
	account  string
	password string
	sender   string
}

// NewSMTPMailer creates a mailer for the given relay. The account
// authenticates; the sender appears in the From header.
func NewSMTPMailer(host, port, account, password, sender string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		account:  account,
		password: password,
		sender:   sender,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.sender, to, subject, body)

	auth := smtp.PlainAuth("", m.account, m.password, m.host)
	addr := m.host + ":" + m.port

	if err := smtp.SendMail(addr, auth, m.sender, []string{to}, []byte(msg)); err != nil {
		return errors.Wrap(err, "SMTPMailer.Send")
	}
	return nil
}

// SendAsync fires the mailer off the request path and logs a failure instead
// of surfacing it. Whether a mailbox exists must never leak through response
// timing or status.
func SendAsync(m Mailer, to, subject, body string) {
	go func() {
		if err := m.Send(to, subject, body); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("failed to send mail")
		}
	}()
}

// NoOpMailer drops every message. Used in development when no relay is
// configured.
type NoOpMailer struct{}

func (NoOpMailer) Send(to, subject, body string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("mail suppressed (no-op mailer)")
	return nil
}

package mailrelay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/notify"
)

//go:generate mockgen -destination=mocks/mailer.go -package=mocks bankledger/internal/mailrelay Mailer

type Mailer interface {
	Send(ctx context.Context, msg notify.Message) error
}

// SMTPMailer delivers plain-text mail through an authenticated SMTP server.
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg *config.MailRelayConfig) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("mailrelay: smtp_host is required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	if from == "" {
		return nil, errors.New("mailrelay: from address is required")
	}

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host: cfg.SMTPHost,
		auth: auth,
		from: from,
		send: smtp.SendMail,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(msg); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, buildMessage(m.from, msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

var errInvalidMessage = errors.New("message needs a single recipient and a subject")

func validate(msg notify.Message) error {
	if msg.To == "" || msg.Subject == "" || strings.ContainsAny(msg.To, ",;\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errInvalidMessage
	}
	return nil
}

func buildMessage(from string, msg notify.Message, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	return []byte(b.String())
}

// Package mail sends the storefront's transactional email. Dispatch is a
// single attempt per call with a bounded timeout; retries are the caller's
// decision.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

const dispatchTimeout = 10 * time.Second

// Message is one outbound email with plain-text and HTML alternatives.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Dispatcher delivers a message to its recipient.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig carries the SMTP endpoint and credentials. Injected at
// construction; never read from package state.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPDispatcher sends mail over an authenticated SMTP connection.
type SMTPDispatcher struct {
	client *gomail.Client
	from   string
}

func NewSMTPDispatcher(cfg SMTPConfig) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: sender address is required")
	}

	opts := []gomail.Option{
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(dispatchTimeout),
	}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: create smtp client: %w", err)
	}

	return &SMTPDispatcher{client: client, from: cfg.From}, nil
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(d.from); err != nil {
		return fmt.Errorf("mail: set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mail: set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	sendCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	if err := d.client.DialAndSendWithContext(sendCtx, m); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

// LogDispatcher writes messages to the log instead of the wire. Used in
// development when SMTP is not configured, so the OTP stays reachable.
type LogDispatcher struct {
	logger *logrus.Logger
}

func NewLogDispatcher(logger *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	d.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Infof("mail (dev dispatch): %s", msg.Text)
	return nil
}

package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/fasticket/backend/config"
)

// PermanentError marks a failure that retrying will not fix (bad address, rejected credentials).
type PermanentError struct{ msg string }

func (e PermanentError) Error() string { return e.msg }

// PermanentErrorf formats a PermanentError.
func PermanentErrorf(format string, args ...interface{}) error {
	return PermanentError{msg: fmt.Sprintf(format, args...)}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	Insecure    bool // opportunistic TLS instead of mandatory
	Timeout     time.Duration
}

// FromConfig maps the application email settings onto a sender config.
func FromConfig(c config.EmailConfig) Config {
	return Config{
		Host:        c.SMTPHost,
		Port:        c.SMTPPort,
		Username:    c.SMTPUser,
		Password:    c.SMTPPass,
		FromAddress: c.FromAddress,
		FromName:    c.FromName,
		Insecure:    c.Insecure,
	}
}

// SMTPSender delivers rendered messages over SMTP.
type SMTPSender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg Config, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, logger: logger.With(zap.String("component", "smtp_sender"))}
}

// Send delivers msg to a single recipient.
func (s *SMTPSender) Send(ctx context.Context, to string, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
		return PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := m.To(to); err != nil {
		return PermanentError{msg: "invalid to address: " + err.Error()}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.cfg.Username), mail.WithPassword(s.cfg.Password))
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Warn("smtp send failed", zap.String("to", to), zap.String("subject", msg.Subject), zap.Error(err))
		if isAuthFailure(err.Error()) {
			return PermanentError{msg: "smtp auth failed: " + err.Error()}
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Info("smtp send ok", zap.String("to", to), zap.String("subject", msg.Subject))
	return nil
}

func isAuthFailure(msg string) bool {
	for _, marker := range []string{"535", "5.7.8", "authentication"} {
		if strings.Contains(strings.ToLower(msg), marker) {
			return true
		}
	}
	return false
}

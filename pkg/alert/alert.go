package alert

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/azurellm/pkg/config"
	"go.uber.org/zap"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg      config.AlertConfig
	sendMail SendMailFunc
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", a.cfg.From, strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	err := a.sendMail(addr, auth, a.cfg.From, to, msg)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// LogAlerter writes alerts to a zap logger at error level.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter creates an alerter that only logs.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger}
}

func (l *LogAlerter) Alert(subject, message string) error {
	l.logger.Error(subject, zap.String("alert", message))
	return nil
}

// Multi fans an alert out to every alerter and joins their errors.
type Multi []Alerter

func (m Multi) Alert(subject, message string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(subject, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the alerter for cfg: log-only when email is disabled, log and
// email otherwise.
func New(cfg config.AlertConfig, logger *zap.Logger) Alerter {
	logAlerter := NewLogAlerter(logger)
	if !cfg.Enabled {
		return logAlerter
	}
	return Multi{logAlerter, NewEmailAlerter(cfg)}
}

// NoOpAlerter discards alerts. Breakers built without an alerter use it.
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}

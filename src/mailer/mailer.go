// Package mailer sends reports over SMTP.
package mailer

import (
	"errors"
	"fmt"
	"io"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"tradejournal/src/export"
	"tradejournal/src/security"
)

var ErrNoRecipient = errors.New("no mail recipient configured")

// Mailer builds messages and sends them through an SMTP dialer.
type Mailer struct {
	from string
	to   string
	send func(...*gomail.Message) error
}

// New resolves the SMTP password, decrypting SMTP_PASSWORD_ENC when set.
func New(cfg Config) (*Mailer, error) {
	password := cfg.Password
	if cfg.PasswordEnc != "" {
		plain, err := security.DecryptString(cfg.PasswordEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt SMTP_PASSWORD_ENC: %w", err)
		}
		password = plain
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, password)
	return &Mailer{from: cfg.From, to: cfg.To, send: dialer.DialAndSend}, nil
}

// Message composes a mail with the given files attached.
func (m *Mailer) Message(subject, body string, files []export.File) (*gomail.Message, error) {
	if m.to == "" {
		return nil, ErrNoRecipient
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	for _, f := range files {
		content := f.Content
		msg.Attach(f.Name,
			gomail.SetHeader(map[string][]string{"Content-Type": {"text/csv; charset=UTF-8"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		)
	}
	return msg, nil
}

func (m *Mailer) Send(subject, body string, files []export.File) error {
	msg, err := m.Message(subject, body, files)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"service":     "Mailer",
		"to":          m.to,
		"attachments": len(files),
	}
	if err := m.send(msg); err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to send mail")
		return fmt.Errorf("send mail: %w", err)
	}
	logger.WithFields(fields).Info("Mail sent")
	return nil
}

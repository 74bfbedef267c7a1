package mail

import (
	"fmt"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// Sender delivers portal mail. The only portal mail today is the password
// reset code.
type Sender interface {
	SendOTP(to, code string) error
}

// SMTPSender sends mail through a configured SMTP relay using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (s *SMTPSender) SendOTP(to, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your password reset code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your one-time password reset code is %s.\n\nIt expires in 15 minutes. If you did not request a reset, ignore this message.", code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send otp mail to %s: %w", to, err)
	}
	return nil
}

// LogSender logs instead of sending. Used in development when no SMTP relay
// is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s *LogSender) SendOTP(to, code string) error {
	s.Logger.Info().Str("to", to).Str("code", code).Msg("otp mail (log-only sender)")
	return nil
}

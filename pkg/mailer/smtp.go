package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends plain HTML mail over SMTP with PLAIN auth.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
}

// New constructs a Mailer. An empty from address disables sending.
func New(host string, port int, from, password string) *Mailer {
	return &Mailer{host: host, port: port, from: from, password: password}
}

// Enabled reports whether the mailer has a usable sender identity.
func (m *Mailer) Enabled() bool {
	return m != nil && m.from != "" && m.host != ""
}

// Send delivers a single HTML message to the recipient.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer not configured")
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
	}, "\r\n")

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/dineboard/dineboard/internal/pkg/env"
)

// Mailer sends operational billing notices via SMTP.
type Mailer struct{}

// NewMailer returns the SMTP-backed mailer.
func NewMailer() *Mailer {
	return &Mailer{}
}

// TrialWillEnd tells a tenant their trial window is closing. Delivery is
// best-effort; billing state never depends on it.
func (m *Mailer) TrialWillEnd(email, tenantName string, endsAt *time.Time) error {
	when := "soon"
	if endsAt != nil {
		when = "on " + endsAt.Format("January 2, 2006")
	}
	subject := "Your dineboard trial is ending"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your dineboard trial ends %s. Pick a plan to keep your restaurant online.</p>",
		tenantName, when,
	)
	return sendMail(email, subject, body)
}

func sendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

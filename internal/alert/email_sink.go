package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

// EmailSink delivers alerts over SMTP, using STARTTLS on port 587 and
// direct TLS otherwise — the same dial sequence the teacher's email
// service uses for dossier delivery, repurposed for a short plain-text
// alert body instead of an HTML digest.
type EmailSink struct {
	Host     string
	Port     string
	Username string
	Password string
	To       string
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, payload models.AlertPayload) error {
	if s.Username == "" || s.Password == "" || s.To == "" {
		return fmt.Errorf("email sink: credentials not configured")
	}

	subject := fmt.Sprintf("[trendwatch] %s alert: %s", payload.Kind, payload.Entity)
	body := fmt.Sprintf(
		"%s\n\nEntity: %s\nSource: %s\nTrend score: %.2f\nCurrent count: %d\nGrowth rate: %.2f\nFired at: %s\n",
		payload.Message, payload.Entity, payload.SourceKind, payload.TrendScore,
		payload.CurrentCount, payload.GrowthRate, payload.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	)
	msg := buildMessage(s.Username, s.To, subject, body)

	addr := s.Host + ":" + s.Port
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)

	if s.Port == "587" {
		return s.sendWithSTARTTLS(addr, auth, []string{s.To}, msg)
	}
	return s.sendWithDirectTLS(addr, auth, []string{s.To}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body))
}

// sendWithSTARTTLS upgrades a plain connection with STARTTLS before
// authenticating, the modern path for port 587.
func (s *EmailSink) sendWithSTARTTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Quit()

	tlsConfig := &tls.Config{InsecureSkipVerify: false, ServerName: s.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return sendMessage(client, s.Username, to, msg)
}

// sendWithDirectTLS connects over TLS from the start, the traditional path
// for port 465.
func (s *EmailSink) sendWithDirectTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	tlsConfig := &tls.Config{InsecureSkipVerify: false, ServerName: s.Host}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server with TLS: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return sendMessage(client, s.Username, to, msg)
}

func sendMessage(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("RCPT TO failed: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message failed: %w", err)
	}
	return w.Close()
}

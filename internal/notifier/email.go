package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"SwingScanner/internal/model"
)

// EmailNotifier mails plain-text alerts through an SMTP relay. SendMail
// upgrades to STARTTLS when the server offers it.
type EmailNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(host string, port int, username, password, from string, to []string) *EmailNotifier {
	return &EmailNotifier{
		Host: host, Port: port, Username: username, Password: password,
		From: from, To: to,
		send: smtp.SendMail,
	}
}

func (e *EmailNotifier) Name() string { return "email" }

// Deliver sends one message per alert to every recipient.
func (e *EmailNotifier) Deliver(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.To) == 0 {
		return fmt.Errorf("email: no recipients")
	}
	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	if err := e.send(addr, auth, e.From, e.To, e.message(a)); err != nil {
		return fmt.Errorf("email %s: %w", addr, err)
	}
	return nil
}

func (e *EmailNotifier) message(a Alert) []byte {
	c := a.Candidate
	var b strings.Builder
	b.WriteString("From: " + e.From + "\r\n")
	b.WriteString("To: " + strings.Join(e.To, ", ") + "\r\n")
	b.WriteString(fmt.Sprintf("Subject: Trade Setup Alert: %s (%.0f%%)\r\n", c.Setup.Symbol, c.Confidence()))
	if !a.At.IsZero() {
		b.WriteString("Date: " + a.At.Format(time.RFC1123Z) + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(FormatEmail(c, a.RunID), "\n", "\r\n"))
	return []byte(b.String())
}

// FormatEmail formats one candidate as a plain-text mail body.
func FormatEmail(c model.TradeCandidate, runID string) string {
	s, v, p := c.Setup, c.Verdict, c.Plan
	var b strings.Builder
	b.WriteString("TRADE SETUP ALERT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("SYMBOL: %s\n", s.Symbol))
	b.WriteString(fmt.Sprintf("Setup Type: %s\n", s.Type))
	b.WriteString(fmt.Sprintf("Quality: %s\n", v.Quality))
	b.WriteString(fmt.Sprintf("Confidence: %.0f%%\n\n", v.Confidence))

	b.WriteString("TRADE PARAMETERS:\n-----------------\n")
	b.WriteString(fmt.Sprintf("Entry Range: ₹%.2f - ₹%.2f\n", p.EntryLow, p.EntryHigh))
	b.WriteString(fmt.Sprintf("Stop Loss: ₹%.2f\n", p.StopLoss))
	b.WriteString(fmt.Sprintf("Target 1: ₹%.2f\n", p.Target1))
	b.WriteString(fmt.Sprintf("Target 2: ₹%.2f\n", p.Target2))
	b.WriteString(fmt.Sprintf("Risk:Reward Ratio: 1:%.2f\n\n", p.RewardRisk))

	b.WriteString("POSITION SIZING:\n----------------\n")
	b.WriteString(fmt.Sprintf("Shares: %d\n", p.Shares))
	b.WriteString(fmt.Sprintf("Position Value: ₹%s\n\n", rupees(p.PositionValue)))

	b.WriteString("ANALYSIS:\n---------\n")
	b.WriteString(v.Rationale + "\n")
	if runID != "" {
		b.WriteString(fmt.Sprintf("\nScan: %s\n", runID))
	}
	return b.String()
}

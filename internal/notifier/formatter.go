package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"SwingScanner/internal/model"
)

func rupees(v float64) string { return humanize.Comma(int64(math.Round(v))) }

// FormatTelegram formats one candidate as an HTML Telegram message.
func FormatTelegram(c model.TradeCandidate, at time.Time) string {
	s, v, p := c.Setup, c.Verdict, c.Plan
	var b strings.Builder

	b.WriteString("🎯 <b>TRADE SETUP ALERT</b>\n\n")
	b.WriteString(fmt.Sprintf("📊 <b>%s</b>\n", html.EscapeString(s.Symbol)))
	b.WriteString(fmt.Sprintf("Setup Type: %s\n", s.Type))
	b.WriteString(fmt.Sprintf("Quality: %s\n", v.Quality))
	b.WriteString(fmt.Sprintf("Confidence: <b>%.0f%%</b>\n\n", v.Confidence))

	b.WriteString("💰 <b>Trade Parameters:</b>\n")
	b.WriteString(fmt.Sprintf("Entry Range: ₹%.2f - ₹%.2f\n", p.EntryLow, p.EntryHigh))
	b.WriteString(fmt.Sprintf("Stop Loss: ₹%.2f\n", p.StopLoss))
	b.WriteString(fmt.Sprintf("Target 1: ₹%.2f\n", p.Target1))
	b.WriteString(fmt.Sprintf("Target 2: ₹%.2f\n", p.Target2))
	b.WriteString(fmt.Sprintf("Risk:Reward: <b>1:%.2f</b>\n\n", p.RewardRisk))

	b.WriteString("📦 <b>Position Sizing:</b>\n")
	b.WriteString(fmt.Sprintf("Shares: %s\n", humanize.Comma(p.Shares)))
	b.WriteString(fmt.Sprintf("Value: ₹%s\n\n", rupees(p.PositionValue)))

	b.WriteString("📝 <b>Analysis:</b>\n")
	b.WriteString(html.EscapeString(v.Rationale))
	b.WriteString(fmt.Sprintf("\n\n⏰ %s", at.Format("2006-01-02 15:04:05")))
	return b.String()
}

// FormatText is the single-line alert used by webhooks and logs.
func FormatText(c model.TradeCandidate) string {
	s, v, p := c.Setup, c.Verdict, c.Plan
	return fmt.Sprintf("🎯 TRADE ALERT: %s | %s | %s Quality | %.0f%% Confidence | Entry: ₹%.2f-₹%.2f | SL: ₹%.2f | T1: ₹%.2f | R:R: 1:%.2f",
		s.Symbol, s.Type, v.Quality, v.Confidence, p.EntryLow, p.EntryHigh, p.StopLoss, p.Target1, p.RewardRisk)
}

// FormatRunSummary formats the headline numbers of a finished scan.
func FormatRunSummary(run *model.RunRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Scan %s</b> | %s\n\n", run.ID, run.StartedAt.Format("2006-01-02 15:04")))
	if run.Mode == model.ModeBacktest {
		b.WriteString(fmt.Sprintf("Backtest as of: %s\n", run.AsOf.Format(model.DateLayout)))
	}
	b.WriteString(fmt.Sprintf("Universe: %d\n", len(run.Universe)))
	b.WriteString(fmt.Sprintf("Fetched: %d\n", len(run.Fetched)))
	b.WriteString(fmt.Sprintf("Setups: %d\n", len(run.Setups)))
	b.WriteString(fmt.Sprintf("Evaluated: %d\n", len(run.Evaluated)))
	b.WriteString(fmt.Sprintf("Candidates: %d\n", len(run.Candidates)))
	b.WriteString(fmt.Sprintf("Alerts: %d\n", len(run.Alerts)))
	if len(run.Errors) > 0 {
		b.WriteString(fmt.Sprintf("Errors: %d\n", len(run.Errors)))
	}
	b.WriteString(fmt.Sprintf("Status: %s (%s)", run.Status(), run.Duration.Round(time.Second)))
	return b.String()
}

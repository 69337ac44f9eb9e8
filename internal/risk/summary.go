package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"SwingScanner/internal/model"
)

// Summary renders a plan as plain text.
func Summary(symbol string, p model.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk summary for %s\n\n", symbol)
	fmt.Fprintf(&b, "Entry range: ₹%.2f - ₹%.2f\n", p.EntryLow, p.EntryHigh)
	fmt.Fprintf(&b, "Stop loss: ₹%.2f (%.2f%% risk)\n\n", p.StopLoss, p.RiskPercent)
	b.WriteString("Targets:\n")
	fmt.Fprintf(&b, "  T1: ₹%.2f (gain ₹%s)\n", p.Target1, thousands(p.PotentialGain1))
	fmt.Fprintf(&b, "  T2: ₹%.2f (gain ₹%s)\n\n", p.Target2, thousands(p.PotentialGain2))
	fmt.Fprintf(&b, "Reward:risk: 1:%.2f\n\n", p.RewardRisk)
	b.WriteString("Position:\n")
	fmt.Fprintf(&b, "  Shares: %s\n", thousands(float64(p.Shares)))
	fmt.Fprintf(&b, "  Value: ₹%s\n", thousands(p.PositionValue))
	fmt.Fprintf(&b, "  Max loss: ₹%s (%.2f%% of account)", thousands(p.MaxLoss), p.MaxLossPercent)
	return b.String()
}

// thousands formats v rounded to an integer with comma separators.
func thousands(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

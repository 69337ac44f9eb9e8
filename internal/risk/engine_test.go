package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

func withATR(atr float64) model.Snapshot {
	return model.Snapshot{ATR: atr, Defined: map[string]bool{model.FieldATR: true}}
}

func account(size float64) model.Account {
	return model.Account{Name: "default", Size: size}
}

func TestTargetsAndRewardRisk(t *testing.T) {
	targets := Targets(100, 95, []float64{2, 3})
	assert.Equal(t, []float64{110, 115}, targets)
	assert.Equal(t, 2.0, RewardRisk(100, 95, targets[0]))
	assert.Zero(t, RewardRisk(100, 100, 110))
	assert.Zero(t, RewardRisk(100, 101, 110))
}

func TestRawSharesAndCap(t *testing.T) {
	assert.Equal(t, int64(4000), RawShares(1_000_000, 2, 5))

	shares, value := SizePosition(1_000_000, 2, 20, 100, 95)
	assert.Equal(t, int64(2000), shares)
	assert.Equal(t, 200_000.0, value)

	shares, value = SizePosition(1_000_000, 2, 50, 100, 95)
	assert.Equal(t, int64(4000), shares, "cap not binding")
	assert.Equal(t, 400_000.0, value)

	assert.Zero(t, RawShares(1_000_000, 2, 0))
	assert.Zero(t, RawShares(1_000_000, 2, -1))
}

func TestRawShares_Floors(t *testing.T) {
	assert.Equal(t, int64(6666), RawShares(1_000_000, 2, 3))
}

func TestStopLoss(t *testing.T) {
	e := NewEngine(DefaultParams())
	tests := []struct {
		name string
		snap model.Snapshot
		want float64
	}{
		{"atr within range", withATR(2.5), 95},
		{"clamped to minimum distance", withATR(0.5), 98},
		{"clamped to maximum distance", withATR(10), 92},
		{"atr undefined uses minimum", model.Snapshot{ATR: 0}, 98},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.StopLoss(100, tt.snap), 1e-9)
		})
	}
}

func TestEntryRange(t *testing.T) {
	e := NewEngine(DefaultParams())
	low, high := e.EntryRange(100)
	assert.InDelta(t, 99, low, 1e-9)
	assert.InDelta(t, 101, high, 1e-9)
}

func TestPlan(t *testing.T) {
	p := DefaultParams()
	p.EntryRangePercent = 0
	e := NewEngine(p)

	plan, err := e.Plan(model.Setup{Symbol: "TCS.NS", CurrentPrice: 100}, withATR(2.5), account(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, 100.0, plan.EntryMid)
	assert.Equal(t, 95.0, plan.StopLoss)
	assert.Equal(t, 110.0, plan.Target1)
	assert.Equal(t, 115.0, plan.Target2)
	assert.Equal(t, 2.0, plan.RewardRisk)
	assert.Equal(t, 5.0, plan.RiskPercent)
	assert.Equal(t, int64(2000), plan.Shares)
	assert.Equal(t, 200_000.0, plan.PositionValue)
	assert.Equal(t, 10_000.0, plan.MaxLoss)
	assert.Equal(t, 1.0, plan.MaxLossPercent)
	assert.Equal(t, 20_000.0, plan.PotentialGain1)
	assert.Equal(t, 30_000.0, plan.PotentialGain2)
}

func TestPlan_AccountOverridesPercentages(t *testing.T) {
	p := DefaultParams()
	p.EntryRangePercent = 0
	e := NewEngine(p)

	acct := model.Account{Name: "small", Size: 100_000, RiskPerTradePercent: 1, MaxPositionPercent: 100}
	plan, err := e.Plan(model.Setup{Symbol: "TCS.NS", CurrentPrice: 100}, withATR(2.5), acct)
	require.NoError(t, err)
	assert.Equal(t, int64(200), plan.Shares)
}

func TestPlan_Degenerate(t *testing.T) {
	e := NewEngine(DefaultParams())

	_, err := e.Plan(model.Setup{Symbol: "X.NS", CurrentPrice: 100}, withATR(2.5), account(100))
	assert.True(t, errors.Is(err, ErrDegenerateRisk), "account too small for one share")

	_, err = e.Plan(model.Setup{Symbol: "Y.NS", CurrentPrice: 0}, withATR(2.5), account(1_000_000))
	assert.True(t, errors.Is(err, ErrDegenerateRisk), "zero price")
}

func TestRewardRiskValidation(t *testing.T) {
	e := NewEngine(DefaultParams())
	assert.Equal(t, 2.0, e.MinRewardRisk())
	assert.True(t, e.AcceptableRewardRisk(2))
	assert.False(t, e.AcceptableRewardRisk(1.5))
}

func TestSummary(t *testing.T) {
	plan := model.Plan{
		EntryLow: 99, EntryHigh: 101, StopLoss: 95, RiskPercent: 5,
		Target1: 110, Target2: 115, PotentialGain1: 20000, PotentialGain2: 30000,
		RewardRisk: 2, Shares: 2000, PositionValue: 200000, MaxLoss: 10000, MaxLossPercent: 1,
	}
	out := Summary("TCS.NS", plan)
	assert.Contains(t, out, "Risk summary for TCS.NS")
	assert.Contains(t, out, "T1: ₹110.00 (gain ₹20,000)")
	assert.Contains(t, out, "Shares: 2,000")
	assert.Contains(t, out, "Reward:risk: 1:2.00")
	assert.Contains(t, out, "Max loss: ₹10,000 (1.00% of account)")
}

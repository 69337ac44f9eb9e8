// Package evaluator asks an LLM for a qualitative verdict on detected setups.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"SwingScanner/internal/model"
)

// ErrMalformedResponse means the evaluator answered with something that is
// not a valid verdict. The setup is dropped and not retried.
var ErrMalformedResponse = errors.New("malformed evaluator response")

// RecentBars is how many bars travel with each request.
const RecentBars = 20

// Request is everything the evaluator sees about one setup.
type Request struct {
	Symbol   string
	Setup    model.Setup
	Snapshot model.Snapshot
	Recent   []model.Bar
}

// Evaluator returns a verdict for one setup.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (model.Verdict, error)
}

var validate = validator.New()

// wireVerdict is the reply as sent. Confidence is a pointer so that a missing
// confidence_score is rejected instead of reading as 0.
type wireVerdict struct {
	Quality           string   `json:"setup_quality" validate:"required,oneof=HIGH MEDIUM LOW"`
	BreakoutConfirmed string   `json:"breakout_confirmation" validate:"required,oneof=YES NO"`
	TrendStrength     string   `json:"trend_strength" validate:"required,oneof=STRONG MODERATE WEAK"`
	Confidence        *float64 `json:"confidence_score" validate:"required,gte=0,lte=100"`
	Rationale         string   `json:"reasoning" validate:"required,max=500"`
}

// Parse decodes and validates a raw verdict.
func Parse(raw string) (model.Verdict, error) {
	var w wireVerdict
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&w); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := validate.Struct(w); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return model.Verdict{
		Quality:           w.Quality,
		BreakoutConfirmed: w.BreakoutConfirmed,
		TrendStrength:     w.TrendStrength,
		Confidence:        *w.Confidence,
		Rationale:         w.Rationale,
	}, nil
}

// schema is the JSON schema handed to the model as its output format.
var schema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"setup_quality":         map[string]interface{}{"type": "string", "enum": []string{"HIGH", "MEDIUM", "LOW"}},
		"breakout_confirmation": map[string]interface{}{"type": "string", "enum": []string{"YES", "NO"}},
		"trend_strength":        map[string]interface{}{"type": "string", "enum": []string{"STRONG", "MODERATE", "WEAK"}},
		"confidence_score":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		"reasoning":             map[string]interface{}{"type": "string", "maxLength": 500},
	},
	"required": []string{"setup_quality", "breakout_confirmation", "trend_strength", "confidence_score", "reasoning"},
}

// ScoreEvaluator derives a verdict from the detector's preliminary score
// without calling a model. Used when no LLM is configured.
type ScoreEvaluator struct{}

func (ScoreEvaluator) Evaluate(_ context.Context, req Request) (model.Verdict, error) {
	s := req.Setup
	v := model.Verdict{
		Confidence: s.Score,
		Model:      "score",
	}
	switch {
	case s.Score >= 80:
		v.Quality = "HIGH"
	case s.Score >= 65:
		v.Quality = "MEDIUM"
	default:
		v.Quality = "LOW"
	}
	v.BreakoutConfirmed = "NO"
	if s.Type == model.SetupBreakout || s.Type == model.SetupConsolidation {
		if req.Snapshot.Has(model.FieldVolumeRatio) && req.Snapshot.VolumeRatio >= 1.5 {
			v.BreakoutConfirmed = "YES"
		}
	}
	snap := req.Snapshot
	switch {
	case snap.Has(model.FieldEMALong) && snap.EMAShort > snap.EMAMedium && snap.EMAMedium > snap.EMALong:
		v.TrendStrength = "STRONG"
	case snap.Has(model.FieldEMAMedium) && snap.EMAShort > snap.EMAMedium:
		v.TrendStrength = "MODERATE"
	default:
		v.TrendStrength = "WEAK"
	}
	v.Rationale = fmt.Sprintf("%s setup scored %.0f by the rule engine.", s.Type, s.Score)
	return v, validate.Struct(v)
}

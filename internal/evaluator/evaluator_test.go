package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

const goodVerdict = `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":85,"reasoning":"Clean breakout on volume."}`

func sampleRequest() Request {
	bars := make([]model.Bar, 20)
	for i := range bars {
		bars[i] = model.Bar{
			Date:   time.Date(2024, 6, 1+i, 0, 0, 0, 0, time.UTC),
			Open:   100, High: 102, Low: 99, Close: 101,
			Volume: 1234567,
		}
	}
	return Request{
		Symbol: "INFY.NS",
		Setup: model.Setup{
			Symbol: "INFY.NS", Type: model.SetupBreakout, Timeframe: model.Daily,
			CurrentPrice: 101, TriggerPrice: 100, Score: 85,
		},
		Snapshot: model.Snapshot{
			Close: 101, EMAShort: 99, EMAMedium: 95, EMALong: 90, VolumeRatio: 2,
			Defined: map[string]bool{model.FieldEMALong: true, model.FieldEMAMedium: true, model.FieldVolumeRatio: true},
		},
		Recent: bars,
	}
}

func TestParse(t *testing.T) {
	v, err := Parse(goodVerdict)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", v.Quality)
	assert.Equal(t, "YES", v.BreakoutConfirmed)
	assert.Equal(t, "STRONG", v.TrendStrength)
	assert.Equal(t, 85.0, v.Confidence)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":           `definitely not json`,
		"bad quality":        `{"setup_quality":"GREAT","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":85,"reasoning":"x"}`,
		"bad breakout":       `{"setup_quality":"HIGH","breakout_confirmation":"MAYBE","trend_strength":"STRONG","confidence_score":85,"reasoning":"x"}`,
		"bad trend":          `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"MEH","confidence_score":85,"reasoning":"x"}`,
		"confidence high":    `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":101,"reasoning":"x"}`,
		"confidence low":     `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":-1,"reasoning":"x"}`,
		"missing reason":     `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":50}`,
		"long reason":        `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":50,"reasoning":"` + strings.Repeat("a", 501) + `"}`,
		"missing confidence": `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","reasoning":"ok"}`,
		"null confidence":    `{"setup_quality":"HIGH","breakout_confirmation":"YES","trend_strength":"STRONG","confidence_score":null,"reasoning":"ok"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestParse_ZeroConfidenceIsValid(t *testing.T) {
	v, err := Parse(`{"setup_quality":"LOW","breakout_confirmation":"NO","trend_strength":"WEAK","confidence_score":0,"reasoning":"no edge"}`)
	require.NoError(t, err)
	assert.Zero(t, v.Confidence)
	assert.Equal(t, "no edge", v.Rationale)
}

func TestParse_ReasoningCountsCharacters(t *testing.T) {
	raw := `{"setup_quality":"LOW","breakout_confirmation":"NO","trend_strength":"WEAK","confidence_score":10,"reasoning":"` + strings.Repeat("₹", 500) + `"}`
	_, err := Parse(raw)
	assert.NoError(t, err)
}

func TestOllama_Evaluate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   "llama3.1:8b",
			"message": map[string]string{"role": "assistant", "content": goodVerdict},
			"done":    true,
		})
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	v, err := NewOllama(opts).Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 85.0, v.Confidence)
	assert.Equal(t, "llama3.1:8b", v.Model)
	assert.Equal(t, goodVerdict, v.Raw)

	assert.Equal(t, "llama3.1:8b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.0, got.Options["temperature"])
	assert.Equal(t, 4096.0, got.Options["num_ctx"])
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "INFY.NS")
	assert.NotNil(t, got.Format)
}

func TestOllama_MalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": `{"setup_quality":"AMAZING"}`},
		})
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	_, err := NewOllama(opts).Evaluate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestOllama_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":""}}`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	_, err := NewOllama(opts).Evaluate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestOllama_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	_, err := NewOllama(opts).Evaluate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedResponse))
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllama_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3.1:8b","model":"llama3.1:8b"}]}`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	assert.NoError(t, NewOllama(opts).Ping(context.Background()))

	opts.Model = "mistral:7b"
	err := NewOllama(opts).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull mistral:7b")
}

func TestPrompt(t *testing.T) {
	p := Prompt(sampleRequest())
	assert.Contains(t, p, "SETUP TYPE: BREAKOUT")
	assert.Contains(t, p, "CURRENT PRICE: ₹101.00")
	assert.Contains(t, p, "V:1,234,567")
	assert.Contains(t, p, "2024-06-20:")
	assert.NotContains(t, p, "2024-06-10:", "only the last 10 bars are listed")
	assert.Contains(t, p, "Respond ONLY with the JSON object")
}

func TestScoreEvaluator(t *testing.T) {
	v, err := ScoreEvaluator{}.Evaluate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "HIGH", v.Quality)
	assert.Equal(t, "YES", v.BreakoutConfirmed)
	assert.Equal(t, "STRONG", v.TrendStrength)
	assert.Equal(t, 85.0, v.Confidence)

	req := sampleRequest()
	req.Setup.Score = 60
	req.Setup.Type = model.SetupPullback
	req.Snapshot.Defined = map[string]bool{}
	v, err = ScoreEvaluator{}.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "LOW", v.Quality)
	assert.Equal(t, "NO", v.BreakoutConfirmed)
	assert.Equal(t, "WEAK", v.TrendStrength)
}

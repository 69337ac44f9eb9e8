package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"SwingScanner/internal/model"
)

// Options configures the Ollama client.
type Options struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url" validate:"required_if=Enabled true"`
	Model       string        `yaml:"model" validate:"required_if=Enabled true"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	NumCtx      int           `yaml:"num_ctx" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultOptions returns the local Ollama defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:     true,
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.1:8b",
		Temperature: 0,
		NumCtx:      4096,
		Timeout:     60 * time.Second,
	}
}

// Ollama evaluates setups through the Ollama chat API.
type Ollama struct {
	opts   Options
	client *http.Client
}

// NewOllama creates a client for the given options.
func NewOllama(opts Options) *Ollama {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Ollama{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Format   interface{}            `json:"format"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// Evaluate sends the prompt and validates the answer. Transport failures are
// returned as is; an unusable answer wraps ErrMalformedResponse.
func (o *Ollama) Evaluate(ctx context.Context, req Request) (model.Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.opts.Model,
		Messages: []chatMessage{{Role: "user", Content: Prompt(req)}},
		Format:   schema,
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": o.opts.Temperature,
			"num_ctx":     o.opts.NumCtx,
		},
	})
	if err != nil {
		return model.Verdict{}, err
	}

	url := strings.TrimRight(o.opts.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.Verdict{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("ollama read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Verdict{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chat.Error != "" {
		return model.Verdict{}, fmt.Errorf("ollama: %s", chat.Error)
	}
	if strings.TrimSpace(chat.Message.Content) == "" {
		return model.Verdict{}, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	v, err := Parse(chat.Message.Content)
	if err != nil {
		log.Debug().Str("symbol", req.Symbol).Str("raw", truncate(chat.Message.Content, 200)).Msg("unparseable verdict")
		return model.Verdict{}, err
	}
	v.Model = o.opts.Model
	v.Raw = chat.Message.Content
	log.Info().Str("symbol", req.Symbol).Str("setup", string(req.Setup.Type)).
		Str("quality", v.Quality).Float64("confidence", v.Confidence).Msg("setup evaluated")
	return v, nil
}

// Ping checks that the server is up and the configured model is pulled.
func (o *Ollama) Ping(ctx context.Context) error {
	url := strings.TrimRight(o.opts.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}
	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama tags decode: %w", err)
	}
	var names []string
	for _, m := range tags.Models {
		if strings.Contains(m.Name, o.opts.Model) || strings.Contains(m.Model, o.opts.Model) {
			return nil
		}
		names = append(names, m.Name)
	}
	return fmt.Errorf("model %q not found (available: %s); run: ollama pull %s",
		o.opts.Model, strings.Join(names, ", "), o.opts.Model)
}

// Prompt renders the analyst prompt for one setup. Only the last 10 of the
// recent bars are spelled out.
func Prompt(req Request) string {
	s, snap := req.Setup, req.Snapshot
	var b strings.Builder

	fmt.Fprintf(&b, "You are a senior technical analyst evaluating a swing trade setup for %s (Indian stock, NSE).\n\n", req.Symbol)
	fmt.Fprintf(&b, "SETUP TYPE: %s\n", s.Type)
	fmt.Fprintf(&b, "CURRENT PRICE: ₹%.2f\n", s.CurrentPrice)
	fmt.Fprintf(&b, "TIMEFRAME: %s\n\n", s.Timeframe)

	b.WriteString("TECHNICAL INDICATORS (Latest):\n")
	fmt.Fprintf(&b, "- EMA 20: ₹%.2f\n", snap.EMAShort)
	fmt.Fprintf(&b, "- EMA 50: ₹%.2f\n", snap.EMAMedium)
	fmt.Fprintf(&b, "- EMA 200: ₹%.2f\n", snap.EMALong)
	fmt.Fprintf(&b, "- RSI(14): %.2f\n", snap.RSI)
	fmt.Fprintf(&b, "- MACD: %.2f\n", snap.MACD)
	fmt.Fprintf(&b, "- MACD Signal: %.2f\n", snap.MACDSignal)
	fmt.Fprintf(&b, "- MACD Histogram: %.2f\n", snap.MACDHistogram)
	fmt.Fprintf(&b, "- ATR(14): ₹%.2f (%.2f%%)\n", snap.ATR, snap.ATRPercent)
	fmt.Fprintf(&b, "- Volume Ratio: %.2fx average\n\n", snap.VolumeRatio)

	details, _ := json.MarshalIndent(s, "", "  ")
	b.WriteString("SETUP DETAILS:\n")
	b.Write(details)
	b.WriteString("\n\nRECENT PRICE ACTION (Last 10 bars):\n")
	recent := req.Recent
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, bar := range recent {
		fmt.Fprintf(&b, "%s: O:%.2f H:%.2f L:%.2f C:%.2f V:%s\n",
			bar.Date.Format(model.DateLayout), bar.Open, bar.High, bar.Low, bar.Close,
			humanize.Comma(int64(bar.Volume)))
	}

	b.WriteString(`
EVALUATION TASK:
Analyze this swing trade setup and provide your assessment in the following JSON format:

{
  "setup_quality": "HIGH|MEDIUM|LOW",
  "breakout_confirmation": "YES|NO",
  "trend_strength": "STRONG|MODERATE|WEAK",
  "confidence_score": <0-100>,
  "reasoning": "<2-3 sentence explanation>"
}

Consider:
1. Is the breakout/setup genuine with volume confirmation?
2. Are EMAs aligned properly for uptrend continuation?
3. Is RSI in healthy zone (not overbought/oversold)?
4. Is MACD supporting the move?
5. Does recent price action show strength?
6. What is the overall risk-reward potential?

Respond ONLY with the JSON object, no additional text.`)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

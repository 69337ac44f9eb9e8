// Package universe resolves the list of symbols a scan iterates over.
package universe

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Nifty50 is the default universe, NSE-qualified.
var Nifty50 = []string{
	"ADANIPORTS.NS", "ASIANPAINT.NS", "AXISBANK.NS", "BAJAJ-AUTO.NS", "BAJFINANCE.NS",
	"BAJAJFINSV.NS", "BPCL.NS", "BHARTIARTL.NS", "BRITANNIA.NS", "CIPLA.NS",
	"COALINDIA.NS", "DIVISLAB.NS", "DRREDDY.NS", "EICHERMOT.NS", "GRASIM.NS",
	"HCLTECH.NS", "HDFCBANK.NS", "HDFCLIFE.NS", "HEROMOTOCO.NS", "HINDALCO.NS",
	"HINDUNILVR.NS", "ICICIBANK.NS", "ITC.NS", "INDUSINDBK.NS", "INFY.NS",
	"JSWSTEEL.NS", "KOTAKBANK.NS", "LT.NS", "M&M.NS", "MARUTI.NS",
	"NTPC.NS", "NESTLEIND.NS", "ONGC.NS", "POWERGRID.NS", "RELIANCE.NS",
	"SBILIFE.NS", "SHRIRAMFIN.NS", "SBIN.NS", "SUNPHARMA.NS", "TCS.NS",
	"TATACONSUM.NS", "TATAMOTORS.NS", "TATASTEEL.NS", "TECHM.NS", "TITAN.NS",
	"TRENT.NS", "ULTRACEMCO.NS", "WIPRO.NS", "APOLLOHOSP.NS", "ADANIENT.NS",
}

// Options selects the universe. A non-empty Symbols list wins over Name.
type Options struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
}

// Loader returns the symbols for one scan.
type Loader struct {
	opts Options
}

func NewLoader(opts Options) *Loader { return &Loader{opts: opts} }

// Load resolves the configured universe.
func (l *Loader) Load(_ context.Context) ([]string, error) {
	return Resolve(l.opts.Name, l.opts.Symbols), nil
}

// Resolve returns custom symbols normalised to an exchange suffix, or the
// named predefined universe. Unknown names fall back to NIFTY 50.
// Duplicates are dropped, keeping first occurrence.
func Resolve(name string, custom []string) []string {
	if len(custom) > 0 {
		out := make([]string, 0, len(custom))
		seen := make(map[string]bool, len(custom))
		for _, s := range custom {
			sym := Normalize(s)
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
		log.Info().Int("symbols", len(out)).Msg("loaded custom universe")
		return out
	}

	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "NIFTY50":
	default:
		log.Warn().Str("universe", name).Msg("unknown universe, using NIFTY50")
	}
	out := append([]string(nil), Nifty50...)
	log.Info().Int("symbols", len(out)).Msg("loaded NIFTY50 universe")
	return out
}

// Normalize upper-cases a symbol and adds .NS when it has no .NS/.BO suffix.
func Normalize(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ""
	}
	if !Valid(sym) {
		log.Warn().Str("symbol", sym).Msg("symbol missing exchange suffix, adding .NS")
		sym += ".NS"
	}
	return sym
}

// Valid reports whether symbol carries an NSE or BSE suffix.
func Valid(symbol string) bool {
	return strings.HasSuffix(symbol, ".NS") || strings.HasSuffix(symbol, ".BO")
}

// Base strips the exchange suffix.
func Base(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// Display formats a symbol as "RELIANCE (NSE)".
func Display(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, ".NS"):
		return Base(symbol) + " (NSE)"
	case strings.HasSuffix(symbol, ".BO"):
		return Base(symbol) + " (BSE)"
	}
	return symbol
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"SwingScanner/internal/markethours"
	"SwingScanner/internal/model"
	"SwingScanner/internal/notifier"
	"SwingScanner/internal/pipeline"
	"SwingScanner/internal/recorder"
)

// ErrBusy is returned when a scan is requested while another is running.
var ErrBusy = errors.New("scan already running")

// Scanner executes one scan.
type Scanner interface {
	Execute(ctx context.Context, req pipeline.Request) (pipeline.Run, error)
}

// Accounts resolves account profiles by name.
type Accounts interface {
	Get(name string) (model.Account, error)
}

// Sender delivers free-form text, e.g. the Telegram bot.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Scheduler runs recurring scans and answers chat commands. Only one scan
// runs at a time; overlapping requests are skipped.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  Scanner
	Accounts Accounts
	Notifier Sender
	Recorder recorder.Recorder
	Ctx      context.Context
	// MarketOpen gates scheduled scans. Nil means always open.
	MarketOpen func(time.Time) bool

	mu sync.Mutex
}

// NewScheduler creates a Scheduler whose cron runs in IST.
func NewScheduler(ctx context.Context, scanner Scanner, accounts Accounts, sender Sender, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds(), cron.WithLocation(markethours.IST)),
		Scanner:    scanner,
		Accounts:   accounts,
		Notifier:   sender,
		Recorder:   rec,
		Ctx:        ctx,
		MarketOpen: markethours.NSE.Open,
	}
}

// RegisterAll registers the recurring scan.
func (s *Scheduler) RegisterAll(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scheduledScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunScan executes a scan for the named account unless one is already
// running.
func (s *Scheduler) RunScan(ctx context.Context, accountName string, asOf time.Time) (pipeline.Run, error) {
	if !s.mu.TryLock() {
		return pipeline.Run{}, ErrBusy
	}
	defer s.mu.Unlock()

	acct, err := s.Accounts.Get(accountName)
	if err != nil {
		return pipeline.Run{}, err
	}
	return s.Scanner.Execute(ctx, pipeline.Request{AsOf: asOf, Account: acct})
}

func (s *Scheduler) scheduledScan() {
	if s.MarketOpen != nil && !s.MarketOpen(time.Now()) {
		log.Info().Msg("market closed, scheduled scan skipped")
		return
	}
	log.Info().Msg("running scheduled scan")
	run, err := s.RunScan(s.Ctx, "", time.Time{})
	if errors.Is(err, ErrBusy) {
		log.Warn().Msg("previous scan still running, tick skipped")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("scheduled scan")
		s.trySend(fmt.Sprintf("❌ Scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatRunSummary(run.Record()))
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "/scan":
		name := ""
		if len(fields) > 1 {
			name = fields[1]
		}
		run, err := s.RunScan(ctx, name, time.Time{})
		if errors.Is(err, ErrBusy) {
			return "⏳ A scan is already running."
		}
		if err != nil {
			return fmt.Sprintf("❌ Scan failed: %v", err)
		}
		return notifier.FormatRunSummary(run.Record())
	case "/last":
		last, err := s.Recorder.LastRun(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Could not read scan history: %v", err)
		}
		if last == nil {
			return "No scans recorded yet."
		}
		return FormatLastRun(last)
	default:
		return helpText
	}
}

const helpText = "Available commands:\n• /scan [account] - run a scan now\n• /last - last scan summary\n• /help - this message"

// FormatLastRun formats a stored scan headline.
func FormatLastRun(r *recorder.RunSummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Last scan %s</b>\n\n", r.ScanID))
	b.WriteString(fmt.Sprintf("Time: %s (%s)\n", r.ScanTimestamp.In(markethours.IST).Format("2006-01-02 15:04"), r.ScanType))
	if r.ScanDate != "" {
		b.WriteString(fmt.Sprintf("As of: %s\n", r.ScanDate))
	}
	b.WriteString(fmt.Sprintf("Universe: %d | Fetched: %d\n", r.UniverseSize, r.StocksFetched))
	b.WriteString(fmt.Sprintf("Setups: %d | Evaluated: %d\n", r.SetupsDetected, r.SetupsEvaluated))
	b.WriteString(fmt.Sprintf("High confidence: %d\n", r.HighConfidence))
	b.WriteString(fmt.Sprintf("Status: %s (%.1fs)", r.Status, r.DurationSeconds))
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(s.Ctx, text); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

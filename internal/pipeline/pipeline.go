package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"SwingScanner/internal/collector"
	"SwingScanner/internal/evaluator"
	"SwingScanner/internal/indicator"
	"SwingScanner/internal/metrics"
	"SwingScanner/internal/model"
	"SwingScanner/internal/notifier"
	"SwingScanner/internal/recorder"
	"SwingScanner/internal/risk"
)

// DefaultAlertThreshold applies when the account sets none.
const DefaultAlertThreshold = 80

// UniverseLoader returns the symbols to scan.
type UniverseLoader interface {
	Load(ctx context.Context) ([]string, error)
}

// Acquirer fetches series for a batch of symbols, in input order.
type Acquirer interface {
	FetchAll(ctx context.Context, symbols []string, asOf time.Time) []collector.Result
}

// Indicators widens a series into an indicator frame.
type Indicators interface {
	Compute(s model.Series) indicator.Frame
}

// Detector flags setups on a frame.
type Detector interface {
	Detect(symbol string, f indicator.Frame) []model.Setup
}

// Dispatcher delivers alerts and reports each delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, runID string, alerts []model.TradeCandidate) []model.AlertResult
}

// StageFunc is one step of the scan.
type StageFunc func(ctx context.Context, r Run) (Run, error)

type stage struct {
	name string
	fn   StageFunc
	// reset empties the stage's output after a fault.
	reset func(Run) Run
	// flush stages run after cancellation on a detached context.
	flush bool
}

// Request parameterises one scan. A non-zero AsOf makes it a backtest.
type Request struct {
	AsOf    time.Time
	Account model.Account
}

// Pipeline holds the collaborators of a scan. Evaluator, Recorder and
// Notifier may be nil.
type Pipeline struct {
	Universe   UniverseLoader
	Acquirer   Acquirer
	Indicators Indicators
	Detector   Detector
	Evaluator  evaluator.Evaluator
	Risk       *risk.Engine
	Recorder   recorder.Recorder
	Notifier   Dispatcher
	Metrics    *metrics.Registry

	NewID func() (string, error)
	Now   func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// NewRun creates the initial run. This is the only step whose failure aborts
// a scan.
func (p *Pipeline) NewRun(req Request) (Run, error) {
	newID := p.NewID
	if newID == nil {
		newID = NewRunID
	}
	id, err := newID()
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:        id,
		StartedAt: p.now(),
		Mode:      model.ModeLive,
		Account:   req.Account,
		Branch:    NoSetups{},
	}
	if !req.AsOf.IsZero() {
		run.Mode = model.ModeBacktest
		run.AsOf = model.Day(req.AsOf)
	}
	return run, nil
}

// Execute runs a full scan. Stage faults are recorded on the returned run;
// the error is non-nil only when the run could not be created.
func (p *Pipeline) Execute(ctx context.Context, req Request) (Run, error) {
	run, err := p.NewRun(req)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	log.Info().Str("scan_id", run.ID).Str("mode", string(run.Mode)).Msg("scan started")

	for _, st := range []stage{
		{name: "init", fn: p.init, reset: func(r Run) Run { return r }},
		{name: "load-universe", fn: p.loadUniverse, reset: func(r Run) Run { r.Universe = nil; return r }},
		{name: "acquire", fn: p.acquire, reset: func(r Run) Run { r.Fetched = nil; return r }},
		{name: "indicators", fn: p.indicators, reset: func(r Run) Run { r.Frames, r.Snapshots = nil, nil; return r }},
		{name: "detect", fn: p.detect, reset: func(r Run) Run { r.Setups, r.Branch = nil, NoSetups{}; return r }},
	} {
		run = p.step(ctx, run, st)
	}

	clearEvaluated := func(r Run) Run { r.Evaluated = nil; return r }
	clearCandidates := func(r Run) Run { r.Candidates, r.Alerts = nil, nil; return r }
	switch b := run.Branch.(type) {
	case HasSetups:
		log.Info().Int("setups", len(b.Setups)).Msg("proceeding to evaluation")
		run = p.step(ctx, run, stage{name: "evaluate", fn: p.evaluate, reset: clearEvaluated})
		run = p.step(ctx, run, stage{name: "risk", fn: p.plan, reset: clearCandidates})
	default:
		log.Info().Msg("no setups detected, skipping evaluation")
		run = clearCandidates(clearEvaluated(run))
	}

	for _, st := range []stage{
		{name: "persist", fn: p.persist, reset: func(r Run) Run { return r }, flush: true},
		{name: "notify", fn: p.notify, reset: func(r Run) Run { r.Deliveries = nil; return r }, flush: true},
	} {
		run = p.step(ctx, run, st)
	}

	run.Duration = p.now().Sub(run.StartedAt)
	p.Metrics.ScanFinished(run.Status(), p.now())
	log.Info().Str("scan_id", run.ID).Str("status", run.Status()).Dur("duration", run.Duration).Msg("scan finished")
	return run, nil
}

func (p *Pipeline) step(ctx context.Context, run Run, st stage) Run {
	if st.flush {
		ctx = context.WithoutCancel(ctx)
	} else if err := ctx.Err(); err != nil {
		log.Warn().Str("stage", st.name).Msg("scan cancelled, stage skipped")
		return st.reset(run).withError(fmt.Sprintf("%s: skipped: %v", st.name, err))
	}

	var noted []string
	start := time.Now()
	out, err := guard(context.WithValue(ctx, notedKey{}, &noted), run, st.fn)
	elapsed := time.Since(start)
	p.Metrics.ObserveStage(st.name, elapsed, err != nil)
	if err != nil {
		log.Error().Err(err).Str("stage", st.name).Msg("stage failed")
		out = st.reset(run)
		for _, msg := range noted {
			out = out.withError(msg)
		}
		out = out.withError(fmt.Sprintf("%s: %v", st.name, err))
	}
	return out.withTiming(st.name, elapsed)
}

type notedKey struct{}

// noteError records msg on run and in the step's log, so errors a stage
// recorded survive if the stage faults afterwards.
func noteError(ctx context.Context, run Run, msg string) Run {
	if noted, ok := ctx.Value(notedKey{}).(*[]string); ok {
		*noted = append(*noted, msg)
	}
	return run.withError(msg)
}

func guard(ctx context.Context, run Run, fn StageFunc) (out Run, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("stack", string(debug.Stack())).Msg("stage panic")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, run)
}

func (p *Pipeline) init(_ context.Context, run Run) (Run, error) {
	if run.Account.AlertThreshold <= 0 {
		run.Account.AlertThreshold = DefaultAlertThreshold
	}
	if !run.AsOf.IsZero() {
		log.Info().Str("as_of", run.AsOf.Format(model.DateLayout)).Msg("backtest mode")
	}
	log.Info().Str("account", run.Account.Name).Float64("account_size", run.Account.Size).
		Float64("alert_threshold", run.Account.AlertThreshold).Msg("scan initialised")
	return run, nil
}

func (p *Pipeline) loadUniverse(ctx context.Context, run Run) (Run, error) {
	if p.Universe == nil {
		return run, errors.New("no universe configured")
	}
	syms, err := p.Universe.Load(ctx)
	if err != nil {
		return run, err
	}
	run.Universe = syms
	log.Info().Int("symbols", len(syms)).Msg("universe loaded")
	return run, nil
}

func (p *Pipeline) acquire(ctx context.Context, run Run) (Run, error) {
	if p.Acquirer == nil {
		return run, errors.New("no acquirer configured")
	}
	fetched := make(map[string]model.Fetched, len(run.Universe))
	for _, res := range p.Acquirer.FetchAll(ctx, run.Universe, run.AsOf) {
		if res.Err != nil {
			run = noteError(ctx, run, fmt.Sprintf("acquire: %v", res.Err))
			continue
		}
		fetched[res.Symbol] = res.Fetched
	}
	run.Fetched = fetched
	if failed := len(run.Universe) - len(fetched); failed > 0 {
		log.Warn().Int("failed", failed).Msg("some symbols unavailable")
	}
	log.Info().Int("fetched", len(fetched)).Msg("market data acquired")
	return run, nil
}

func (p *Pipeline) indicators(_ context.Context, run Run) (Run, error) {
	frames := make(map[string]indicator.Frame, len(run.Fetched))
	snaps := make(map[string]model.Snapshot, len(run.Fetched))
	for _, sym := range run.Universe {
		f, ok := run.Fetched[sym]
		if !ok {
			continue
		}
		frame := p.Indicators.Compute(f.Series)
		if missing := frame.Undefined(); len(missing) > 0 {
			log.Debug().Str("symbol", sym).Strs("undefined", missing).Msg("indicators without data")
		}
		frames[sym] = frame
		snaps[sym] = frame.Snapshot()
	}
	run.Frames = frames
	run.Snapshots = snaps
	log.Info().Int("symbols", len(frames)).Msg("indicators computed")
	return run, nil
}

func (p *Pipeline) detect(_ context.Context, run Run) (Run, error) {
	var setups []model.Setup
	for _, sym := range run.Universe {
		frame, ok := run.Frames[sym]
		if !ok {
			continue
		}
		for _, s := range p.Detector.Detect(sym, frame) {
			p.Metrics.SetupDetected(string(s.Type))
			setups = append(setups, s)
		}
	}
	run.Setups = setups
	if len(setups) > 0 {
		run.Branch = HasSetups{Setups: setups}
	} else {
		run.Branch = NoSetups{}
	}
	log.Info().Int("setups", len(setups)).Msg("setup detection complete")
	return run, nil
}

func (p *Pipeline) evaluate(ctx context.Context, run Run) (Run, error) {
	b, ok := run.Branch.(HasSetups)
	if !ok {
		run.Evaluated = nil
		return run, nil
	}
	ev := p.Evaluator
	if ev == nil {
		ev = evaluator.ScoreEvaluator{}
	}

	var out []model.EvaluatedSetup
	for _, s := range b.Setups {
		if err := ctx.Err(); err != nil {
			run = noteError(ctx, run, fmt.Sprintf("evaluate: interrupted: %v", err))
			break
		}
		verdict, err := ev.Evaluate(ctx, evaluator.Request{
			Symbol:   s.Symbol,
			Setup:    s,
			Snapshot: run.Snapshots[s.Symbol],
			Recent:   run.Fetched[s.Symbol].Series.Tail(evaluator.RecentBars),
		})
		if err != nil {
			log.Warn().Err(err).Str("symbol", s.Symbol).Str("setup", string(s.Type)).Msg("evaluation dropped")
			run = noteError(ctx, run, fmt.Sprintf("evaluate: %s: %v", s.Key(), err))
			continue
		}
		out = append(out, model.EvaluatedSetup{Setup: s, Verdict: verdict})
	}
	run.Evaluated = out
	log.Info().Int("evaluated", len(out)).Msg("evaluation complete")
	return run, nil
}

func (p *Pipeline) plan(_ context.Context, run Run) (Run, error) {
	engine := p.Risk
	if engine == nil {
		engine = risk.NewEngine(risk.DefaultParams())
	}

	var candidates []model.TradeCandidate
	for _, e := range run.Evaluated {
		plan, err := engine.Plan(e.Setup, run.Snapshots[e.Setup.Symbol], run.Account)
		if errors.Is(err, risk.ErrDegenerateRisk) {
			log.Warn().Err(err).Str("symbol", e.Setup.Symbol).Msg("plan rejected")
			continue
		}
		if err != nil {
			return run, err
		}
		candidates = append(candidates, model.TradeCandidate{Setup: e.Setup, Verdict: e.Verdict, Plan: plan})
	}
	run.Candidates = candidates
	run.Alerts = notifier.FilterAlerts(candidates, run.Account.AlertThreshold)
	log.Info().Int("candidates", len(candidates)).Int("alerts", len(run.Alerts)).Msg("risk plans computed")
	return run, nil
}

func (p *Pipeline) persist(ctx context.Context, run Run) (Run, error) {
	run.Duration = p.now().Sub(run.StartedAt)
	if p.Recorder == nil {
		return run, nil
	}
	if err := p.Recorder.RecordRun(ctx, run.Record()); err != nil {
		return run, err
	}
	log.Info().Str("scan_id", run.ID).Msg("scan persisted")
	return run, nil
}

func (p *Pipeline) notify(ctx context.Context, run Run) (Run, error) {
	defer notifier.LogSummary(run.Record())
	if p.Notifier == nil || len(run.Alerts) == 0 {
		return run, nil
	}
	run.Deliveries = p.Notifier.Dispatch(ctx, run.ID, run.Alerts)
	if p.Recorder != nil {
		if err := p.Recorder.RecordAlerts(ctx, run.ID, run.Deliveries); err != nil {
			log.Error().Err(err).Msg("record alerts")
			run = noteError(ctx, run, fmt.Sprintf("notify: record alerts: %v", err))
		}
	}
	return run, nil
}

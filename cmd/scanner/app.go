package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"SwingScanner/internal/account"
	"SwingScanner/internal/cache"
	"SwingScanner/internal/collector"
	"SwingScanner/internal/config"
	"SwingScanner/internal/detector"
	"SwingScanner/internal/evaluator"
	"SwingScanner/internal/indicator"
	"SwingScanner/internal/metrics"
	"SwingScanner/internal/notifier"
	"SwingScanner/internal/pipeline"
	"SwingScanner/internal/recorder"
	"SwingScanner/internal/risk"
	"SwingScanner/internal/universe"
)

// app is the wired set of components for one process.
type app struct {
	metrics  *metrics.Registry
	store    cache.Store
	recorder recorder.Recorder
	accounts *account.Manager
	telegram *notifier.TelegramNotifier
	kafka    *notifier.KafkaNotifier
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	// checkEvaluator pings the evaluator and fails when it is unreachable.
	checkEvaluator bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{metrics: metrics.New()}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("cache unavailable, using in-memory store")
		store = cache.NewMemoryStore()
	}
	a.store = store

	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			a.recorder = recorder.NewNoopRecorder()
		} else {
			if n, err := sr.Count(ctx, "agent_runs"); err == nil {
				log.Info().Int("previous_scans", n).Msg("database ready")
			}
			a.recorder = sr
		}
	} else {
		a.recorder = recorder.NewNoopRecorder()
	}

	a.accounts, err = account.NewManager(cfg.AccountsFile, cfg.Account)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init accounts: %w", err)
	}

	var sources []collector.Fetcher
	if cfg.Sources.NSE.Enabled {
		sources = append(sources, collector.NewNSEFetcher(cfg.Sources.NSE.BaseURL, cfg.Proxy, cfg.Sources.Timeout))
	}
	if cfg.Sources.Yahoo.Enabled {
		sources = append(sources, collector.NewYahooFetcher(cfg.Sources.Yahoo.BaseURL, cfg.Proxy, cfg.Sources.Timeout))
	}
	col := collector.New(cfg.Data, a.store, sources...).WithMetrics(a.metrics)

	var ev evaluator.Evaluator = evaluator.ScoreEvaluator{}
	if cfg.Evaluator.Enabled {
		ollama := evaluator.NewOllama(cfg.Evaluator)
		if opts.checkEvaluator {
			if err := ollama.Ping(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("evaluator check (is `ollama serve` running and %s pulled?): %w", cfg.Evaluator.Model, err)
			}
			log.Info().Str("model", cfg.Evaluator.Model).Msg("evaluator reachable")
		}
		ev = ollama
	} else {
		log.Info().Msg("llm evaluator disabled, using score evaluator")
	}

	channels := []notifier.Channel{notifier.LogChannel{}}
	if cfg.Alerts.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Alerts.Telegram.BotToken, cfg.Alerts.Telegram.ChatID, cfg.Proxy)
		channels = append(channels, a.telegram)
	}
	if cfg.Alerts.Webhook.URL != "" {
		channels = append(channels, notifier.NewWebhookNotifier(cfg.Alerts.Webhook.URL))
	}
	if em := cfg.Alerts.Email; len(em.To) > 0 {
		channels = append(channels, notifier.NewEmailNotifier(em.Host, em.Port, em.Username, em.Password, em.From, em.To))
	}
	if len(cfg.Alerts.Kafka.Brokers) > 0 {
		a.kafka = notifier.NewKafkaNotifier(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic, cfg.Alerts.Kafka.ClientID)
		channels = append(channels, a.kafka)
	}
	dispatcher := notifier.NewDispatcher(channels...).WithMetrics(a.metrics)
	log.Info().Strs("channels", dispatcher.Channels()).Msg("alert channels")

	a.pipeline = &pipeline.Pipeline{
		Universe:   universe.NewLoader(cfg.Universe),
		Acquirer:   col,
		Indicators: indicator.NewEngine(cfg.Indicators),
		Detector:   detector.New(cfg.Rules, cfg.Indicators.EMAMedium),
		Evaluator:  ev,
		Risk:       risk.NewEngine(cfg.Risk),
		Recorder:   a.recorder,
		Notifier:   dispatcher,
		Metrics:    a.metrics,
	}
	return a, nil
}

func (a *app) Close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			log.Warn().Err(err).Msg("close recorder")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close cache")
		}
	}
}

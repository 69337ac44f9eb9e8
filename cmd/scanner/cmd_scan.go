package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"SwingScanner/internal/markethours"
	"SwingScanner/internal/model"
	"SwingScanner/internal/pipeline"
	"SwingScanner/internal/risk"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan now",
	Long: `Run the scan pipeline once. Live scans only run during NSE market hours
unless --force is given; --as-of runs a backtest holding data to that date.

Examples:
  scanner scan
  scanner scan --force --account small
  scanner scan --as-of 2025-12-15`,
	RunE: runScan,
}

var (
	scanAsOf       string
	scanForce      bool
	scanAccount    string
	scanSkipChecks bool
	scanVerbose    bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanAsOf, "as-of", "", "Backtest date (YYYY-MM-DD)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Run a live scan outside market hours")
	scanCmd.Flags().StringVar(&scanAccount, "account", "", "Account profile (default profile when empty)")
	scanCmd.Flags().BoolVar(&scanSkipChecks, "skip-checks", false, "Skip the evaluator connectivity check")
	scanCmd.Flags().BoolVar(&scanVerbose, "verbose", false, "Print the risk summary of every candidate")
}

func runScan(cmd *cobra.Command, args []string) error {
	var asOf time.Time
	if scanAsOf != "" {
		t, err := time.Parse(model.DateLayout, scanAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q, use YYYY-MM-DD: %w", scanAsOf, err)
		}
		asOf = t
		log.Info().Str("as_of", scanAsOf).Msg("running in backtest mode")
	} else if !scanForce && !markethours.IsOpen() {
		log.Info().Msg("outside market hours, use --force to run anyway")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{checkEvaluator: !scanSkipChecks})
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.accounts.Get(scanAccount)
	if err != nil {
		return err
	}

	run, err := a.pipeline.Execute(ctx, pipeline.Request{AsOf: asOf, Account: acct})
	if err != nil {
		return err
	}

	if scanVerbose {
		for _, c := range run.Candidates {
			fmt.Println(risk.Summary(c.Setup.Symbol, c.Plan))
			fmt.Println()
		}
	}
	if len(run.Errors) > 0 {
		log.Warn().Int("errors", len(run.Errors)).Msg("scan completed with errors")
		for _, e := range run.Errors {
			log.Warn().Msg(e)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"SwingScanner/internal/account"
	"SwingScanner/internal/model"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage account profiles used for position sizing",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List account profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := account.NewManager(cfg.AccountsFile, cfg.Account)
		if err != nil {
			return err
		}
		names, def := m.Names()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tRISK %\tMAX POSITION %\tALERT ≥")
		for _, n := range names {
			a, _ := m.Get(n)
			marker := ""
			if n == def {
				marker = " *"
			}
			fmt.Fprintf(w, "%s%s\t₹%s\t%.2f\t%.2f\t%.0f\n", a.Name, marker,
				humanize.Comma(int64(a.Size)), a.RiskPerTradePercent, a.MaxPositionPercent, a.AlertThreshold)
		}
		return w.Flush()
	},
}

var (
	acctSet        model.Account
	acctSetDefault bool
)

var accountSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Create or update an account profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := account.NewManager(cfg.AccountsFile, cfg.Account)
		if err != nil {
			return err
		}
		acctSet.Name = args[0]
		if err := m.Put(acctSet, acctSetDefault); err != nil {
			return err
		}
		fmt.Printf("Saved account %q\n", acctSet.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd, accountSetCmd)

	f := accountSetCmd.Flags()
	f.Float64Var(&acctSet.Size, "size", 1_000_000, "Account size in rupees")
	f.Float64Var(&acctSet.RiskPerTradePercent, "risk", 2, "Risk per trade, percent of account")
	f.Float64Var(&acctSet.MaxPositionPercent, "max-position", 20, "Maximum position value, percent of account")
	f.Float64Var(&acctSet.AlertThreshold, "alert-threshold", 80, "Minimum confidence to alert on")
	f.BoolVar(&acctSetDefault, "default", false, "Make this the default profile")
}

package main

import (
	"fmt"
	"time"

	"go-billing-core/internal/billing"
	"go-billing-core/internal/logger"

	"github.com/spf13/cobra"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Mark sent invoices past their due date as OVERDUE, in every company",
	Example: `  # Sweep using the current time
  billingctl sweep-overdue

  # Sweep as of a fixed date
  billingctl sweep-overdue --at 2026-05-01`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "reference date (YYYY-MM-DD), defaults to now")
}

func runSweep(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	if sweepAt != "" {
		t, err := time.Parse("2006-01-02", sweepAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = t
	}

	cfg, db, err := openDB()
	if err != nil {
		return err
	}
	invoices := billing.NewInvoiceService(db, cfg.Numbering.InvoicePattern)
	n, err := invoices.MarkOverdue(cmd.Context(), billing.AllCompanies, now)
	if err != nil {
		return err
	}

	log := logger.WithComponent("sweep")
	log.Info().Int64("updated", n).Time("as_of", now).Msg("Overdue sweep finished")
	fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked OVERDUE\n", n)
	return nil
}

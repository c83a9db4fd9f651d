package main

import (
	"encoding/json"
	"fmt"
	"os"

	"go-billing-core/internal/billing"
	"go-billing-core/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [items-file]",
	Short: "Compute line taxes and totals for a JSON file of items",
	Long: `Reads a JSON document of the form

  {"settings": {...}, "items": [...]}

and prints the per-line results and the totals. Nothing touches the database.
When settings are omitted a 10% standard and 8% reduced rate are used.`,
	Example: `  billingctl preview items.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPreview,
}

type previewFile struct {
	Settings *billing.TaxSettings `json:"settings"`
	Items    []models.LineItem    `json:"items"`
}

type previewOutput struct {
	Lines  []billing.LineResult `json:"lines"`
	Totals billing.Totals       `json:"totals"`
}

func defaultSettings() billing.TaxSettings {
	return billing.TaxSettings{
		StandardRate: decimal.NewFromInt(10),
		ReducedRate:  decimal.NewFromInt(8),
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var in previewFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	settings := defaultSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}

	out := previewOutput{Lines: make([]billing.LineResult, len(in.Items))}
	for i, item := range in.Items {
		out.Lines[i] = billing.ComputeLine(item, settings)
	}
	out.Totals = billing.ComputeTotals(in.Items, settings)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPreviewFile(t *testing.T, content string) (*bytes.Buffer, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	return &out, runPreview(cmd, []string{path})
}

func TestPreviewDefaults(t *testing.T) {
	out, err := runPreviewFile(t, `{"items": [
		{"description": "a", "quantity": "2", "unit_price": "1000", "tax_category": "STANDARD"},
		{"description": "b", "quantity": "1", "unit_price": "500", "tax_category": "REDUCED"}
	]}`)
	require.NoError(t, err)

	var got struct {
		Lines  []map[string]any `json:"lines"`
		Totals struct {
			Subtotal    string `json:"subtotal"`
			TotalTax    string `json:"total_tax"`
			TotalAmount string `json:"total_amount"`
			Buckets     []struct {
				Rate string `json:"rate"`
			} `json:"tax_summary"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got.Lines, 2)
	assert.Equal(t, "2500", got.Totals.Subtotal)
	assert.Equal(t, "240", got.Totals.TotalTax)
	assert.Equal(t, "2740", got.Totals.TotalAmount)
	require.Len(t, got.Totals.Buckets, 2)
	assert.Equal(t, "8", got.Totals.Buckets[0].Rate)
	assert.Equal(t, "10", got.Totals.Buckets[1].Rate)
}

func TestPreviewExplicitSettings(t *testing.T) {
	out, err := runPreviewFile(t, `{
		"settings": {"standard_tax_rate": "10", "reduced_tax_rate": "8", "price_includes_tax": true, "tax_rounding_places": 0},
		"items": [{"description": "a", "quantity": "1", "unit_price": "1100", "tax_category": "STANDARD"}]
	}`)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"total_tax": "100"`)
	assert.Contains(t, out.String(), `"total_amount": "1100"`)
}

func TestPreviewBadInput(t *testing.T) {
	_, err := runPreviewFile(t, `{"items": [`)
	assert.Error(t, err)

	cmd := &cobra.Command{}
	assert.Error(t, runPreview(cmd, []string{filepath.Join(t.TempDir(), "missing.json")}))
}

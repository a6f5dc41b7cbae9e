package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "removes invalid characters",
			input:    `file<>:"/\|?*name`,
			expected: "filename",
		},
		{
			name:     "replaces whitespace runs with underscores",
			input:    "monthly  report\tmarch",
			expected: "monthly_report_march",
		},
		{
			name:     "keeps words apart across tabs and newlines",
			input:    "daily\nreport\t2026",
			expected: "daily_report_2026",
		},
		{
			name:     "drops control characters",
			input:    "inv\x00oice\n",
			expected: "invoice",
		},
		{
			name:     "trims dots",
			input:    "..hidden.",
			expected: "hidden",
		},
		{
			name:     "keeps unicode letters",
			input:    "فاتورة 12",
			expected: "فاتورة_12",
		},
		{
			name:     "falls back when empty",
			input:    `<>?`,
			expected: "export",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}

	t.Run("caps the length", func(t *testing.T) {
		assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 200)
	})
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 3, 15, 9, 5, 7, 0, time.UTC)

	assert.Equal(t, "patients_20260315_090507.csv", ExportFilename("patients", at, "csv"))
	assert.Equal(t, "receipt_inv-2026-0001_20260315_090507.md", ExportFilename("Receipt INV-2026-0001", at, ".md"))
	assert.Equal(t, "debts_20260315_090507.csv", ExportFilename("../debts", at, "csv"))
}

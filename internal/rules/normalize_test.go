package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "plain", input: "100000", want: 100000},
		{name: "thousands separators", input: "100,000.00", want: 100000},
		{name: "currency code prefix", input: "USD 100,000.00", want: 100000},
		{name: "currency symbol", input: "$95,000.50", want: 95000.50},
		{name: "euro symbol", input: "€1,250.75", want: 1250.75},
		{name: "trailing code", input: "250000 EUR", want: 250000},
		{name: "words", input: "one hundred thousand", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "iso", input: "2025-01-05", want: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "slash dmy", input: "05/01/2025", want: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "dash dmy", input: "31-12-2024", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "dotted", input: "15.01.2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "swift yymmdd", input: "241231", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "padded", input: "  2024-12-31  ", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "nonsense", input: "next tuesday", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "electronic components", NormalizeText("  Electronic\n\tComponents "))
	assert.Equal(t, "cafe goods", NormalizeText("Café Goods"))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Electronic Components", "electronic components"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Less(t, Similarity("Frozen seafood products", "Electronic components"), 0.5)
	assert.Greater(t, Similarity("Electronic components and accessories", "Electronic component and accessories"), 0.9)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  float64
		ok    bool
	}{
		{"plain float", 450000.0, 450000, true},
		{"int", 450000, 450000, true},
		{"currency string", "£450,000", 450000, true},
		{"gbp prefix", "GBP 625000", 625000, true},
		{"k shorthand", "750k", 750000, true},
		{"m shorthand", "1.2m", 1200000, true},
		{"from wrapper", map[string]any{"from": "£395,000"}, 395000, true},
		{"poa", "POA", 0, false},
		{"tbc", "tbc", 0, false},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"zero", 0.0, 0, false},
		{"negative", -5.0, 0, false},
		{"garbage", "call agent", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, got.OK)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestParsePrice_KeepsOriginal(t *testing.T) {
	got := ParsePrice("£1,250,000")
	assert.Equal(t, "£1,250,000", got.Original)
}

package handlers

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

// Rounded for display only, results are ordered by the exact value
func relevance(v float64) float64 {
	return math.Round(v*10000) / 10000
}

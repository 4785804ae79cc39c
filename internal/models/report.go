package models

import (
	"github.com/shopspring/decimal"
)

type SearchResult struct {
	Name      string
	Relevance float64
}

// UserSpending is the total a user paid over some period
type UserSpending struct {
	UserID           int64
	Name             string
	TotalAmount      decimal.Decimal
	TransactionCount int64
}

type TransactionTotals struct {
	MaskCount int64
	Amount    decimal.Decimal
}

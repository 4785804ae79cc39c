package models

import (
	"github.com/shopspring/decimal"
)

type User struct {
	ID          int64
	Name        string
	CashBalance decimal.Decimal
}

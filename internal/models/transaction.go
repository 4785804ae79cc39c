package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID         int64
	UserID     int64
	PharmacyID int64
	MaskID     int64
	Quantity   int
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

type PurchaseRequest struct {
	PharmacyID int64
	MaskID     int64
	UserID     int64
	Quantity   int
}

type PurchaseReceipt struct {
	TransactionID int64
	UserName      string
	PharmacyName  string
	MaskName      string
	Quantity      int
	TotalCost     decimal.Decimal
	CreatedAt     time.Time
}

type CancelReceipt struct {
	TransactionID int64
	UserName      string
	PharmacyName  string
	MaskName      string
	Amount        decimal.Decimal
}

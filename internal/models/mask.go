package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Mask struct {
	ID       int64
	Model    string
	Color    string
	PackSize int
	Name     string
}

// MaskName builds unique mask display name, e.g. "True Barrier (green) (3 per pack)"
func MaskName(model string, color string, packSize int) string {
	return fmt.Sprintf("%s (%s) (%d per pack)", model, color, packSize)
}

// Listing is a mask sold by a pharmacy at a price
type Listing struct {
	ID         int64
	PharmacyID int64
	MaskID     int64
	MaskName   string
	Price      decimal.Decimal
}

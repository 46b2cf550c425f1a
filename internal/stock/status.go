// Package stock holds the quantity reconciliation rules shared by the
// inventory, procurement and dashboard modules.
package stock

import (
	"github.com/shopspring/decimal"
)

// Status is the derived stock label of a consumable.
type Status string

const (
	// StatusOutOfStock applies when nothing is left on hand.
	StatusOutOfStock Status = "Out of Stock"
	// StatusLowStock applies when quantity is at or below the reorder level.
	StatusLowStock Status = "Low Stock"
	// StatusInStock applies otherwise.
	StatusInStock Status = "In Stock"
)

// ComputeStatus classifies a quantity against its reorder level.
// Zero is checked first so an empty item with reorder level 0 reads Out of Stock.
func ComputeStatus(quantity, reorderLevel int) Status {
	if quantity == 0 {
		return StatusOutOfStock
	}
	if quantity <= reorderLevel {
		return StatusLowStock
	}
	return StatusInStock
}

// InventoryValue returns unitPrice*quantity rounded to cents.
func InventoryValue(unitPrice float64, quantity int) float64 {
	value := decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity)))
	return value.Round(2).InexactFloat64()
}

// LineTotal returns unitPrice*quantity rounded to cents.
func LineTotal(unitPrice float64, quantity int) float64 {
	return InventoryValue(unitPrice, quantity)
}

// Sum adds money amounts without accumulating float drift.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

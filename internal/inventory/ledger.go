package inventory

import "github.com/isc-maritime/stockroom/internal/stock"

// Recompute refreshes the derived fields from quantity, unit price and reorder level.
func (c Consumable) Recompute() Consumable {
	c.InventoryValue = stock.InventoryValue(c.UnitPrice, c.Quantity)
	c.Status = stock.ComputeStatus(c.Quantity, c.ReorderLevel)
	return c
}

// WithQuantity returns c holding quantity units, recomputed.
func (c Consumable) WithQuantity(quantity int) Consumable {
	c.Quantity = quantity
	return c.Recompute()
}

// ApplyDelta adds delta units (negative removes). It has no memory of earlier
// applications: posting the same delta twice moves stock twice.
func ApplyDelta(c Consumable, delta int) Consumable {
	return c.WithQuantity(c.Quantity + delta)
}

// Issue removes q units.
func Issue(c Consumable, q int) Consumable {
	return ApplyDelta(c, -q)
}

// Unissue restores q units.
func Unissue(c Consumable, q int) Consumable {
	return ApplyDelta(c, q)
}

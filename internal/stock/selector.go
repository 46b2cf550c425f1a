package stock

import "sort"

// Item is implemented by anything carrying stock levels.
type Item interface {
	StockQuantity() int
	StockReorderLevel() int
	StockDiscontinued() bool
}

// IsLowStockStrict reports quantity < reorderLevel. Used by the dashboard KPI
// and the purchasing reorder worklist.
func IsLowStockStrict(quantity, reorderLevel int) bool {
	return quantity < reorderLevel
}

// IsLowStockInclusive reports quantity <= reorderLevel. Used by the
// inventory "needs reorder" filter, matching the Low Stock status boundary.
func IsLowStockInclusive(quantity, reorderLevel int) bool {
	return quantity <= reorderLevel
}

// LowStock returns the non-discontinued items strictly below their reorder
// level, preserving input order.
func LowStock[T Item](items []T) []T {
	out := make([]T, 0)
	for _, item := range items {
		if item.StockDiscontinued() {
			continue
		}
		if IsLowStockStrict(item.StockQuantity(), item.StockReorderLevel()) {
			out = append(out, item)
		}
	}
	return out
}

// NeedsReorder returns the non-discontinued items at or below their reorder
// level, preserving input order.
func NeedsReorder[T Item](items []T) []T {
	out := make([]T, 0)
	for _, item := range items {
		if item.StockDiscontinued() {
			continue
		}
		if IsLowStockInclusive(item.StockQuantity(), item.StockReorderLevel()) {
			out = append(out, item)
		}
	}
	return out
}

// Percentage is quantity as a percentage of reorderLevel. A zero reorder
// level reads as fully stocked.
func Percentage(quantity, reorderLevel int) float64 {
	if reorderLevel <= 0 {
		return 100
	}
	return float64(quantity) / float64(reorderLevel) * 100
}

// RankByStockPercentage sorts a copy of items by ascending Percentage.
// Ties keep input order.
func RankByStockPercentage[T Item](items []T) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return Percentage(out[i].StockQuantity(), out[i].StockReorderLevel()) <
			Percentage(out[j].StockQuantity(), out[j].StockReorderLevel())
	})
	return out
}

// Level grades stock against the reorder threshold for display.
type Level string

const (
	LevelCritical Level = "critical"
	LevelLow      Level = "low"
	LevelAdequate Level = "adequate"
	LevelGood     Level = "good"
)

// GradeLevel buckets quantity relative to reorderLevel.
func GradeLevel(quantity, reorderLevel int) Level {
	if reorderLevel <= 0 {
		return LevelGood
	}
	q := float64(quantity)
	r := float64(reorderLevel)
	switch {
	case quantity <= 0, q < 0.5*r:
		return LevelCritical
	case q < r:
		return LevelLow
	case q < 1.5*r:
		return LevelAdequate
	default:
		return LevelGood
	}
}

// ReorderSuggestion is the quantity to order to restore twice the reorder level.
func ReorderSuggestion(quantity, reorderLevel int) int {
	n := 2*reorderLevel - quantity
	if n < 0 {
		return 0
	}
	return n
}

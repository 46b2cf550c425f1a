package suppliers

import (
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

type stockKey struct {
	supplierID string
	item       string
	variant    string
}

// DeriveStock folds received history and crew issues into per-variant stock.
// History is expected newest first; the first row seen for a key supplies
// its purchase date and id. Each issue is subtracted in turn and the running
// total never drops below zero. Issues without matching history are ignored.
func DeriveStock(history []PurchaseHistory, issues []CrewIssue) []SupplierStock {
	index := make(map[stockKey]int)
	rows := make([]SupplierStock, 0)
	for _, h := range history {
		key := stockKey{supplierID: h.SupplierID, item: h.Item, variant: h.Variant}
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, SupplierStock{
				SupplierID:    h.SupplierID,
				ItemName:      h.Item,
				Variant:       h.Variant,
				DatePurchased: h.ReceivedAt.Format(shared.DateLayout),
				PurchaseID:    h.ID,
			})
		}
		rows[i].TotalStock += h.Quantity
		rows[i].TotalValue = stock.Sum(rows[i].TotalValue, h.Total)
	}
	for _, issue := range issues {
		i, ok := index[stockKey{supplierID: issue.SupplierID, item: issue.ItemName, variant: issue.Variant}]
		if !ok {
			continue
		}
		rows[i].TotalStock = max(0, rows[i].TotalStock-issue.Quantity)
	}
	return rows
}

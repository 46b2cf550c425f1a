package dashboard

import (
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// PageSize is the number of rows per stock table page.
const PageSize = 10

// Filters scope the dashboard. Period applies to acquisition and purchase
// dates; PurchaseStatus narrows the recent purchase list only.
type Filters struct {
	Period         shared.MonthYear
	PurchaseStatus string
}

// KPIs are the headline counters.
type KPIs struct {
	TotalFixedAssets int `json:"totalFixedAssets"`
	TotalConsumables int `json:"totalConsumables"`
	LowStockCount    int `json:"lowStockCount"`
	PendingPurchases int `json:"pendingPurchases"`
}

// StockRow grades one consumable against its reorder level.
type StockRow struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Current    int         `json:"current"`
	Threshold  int         `json:"threshold"`
	Percentage float64     `json:"percentage"`
	Level      stock.Level `json:"level"`
}

// StatusSlice is one bar of the asset status breakdown.
type StatusSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TrendPoint sums quantities acquired on one date.
type TrendPoint struct {
	Date        string `json:"date"`
	Assets      int    `json:"assets"`
	Consumables int    `json:"consumables"`
}

// PurchaseRow is a compact purchase listing entry.
type PurchaseRow struct {
	ID       string  `json:"id"`
	Item     string  `json:"item"`
	Supplier string  `json:"supplier"`
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	Cost     float64 `json:"cost"`
}

// Overview is the full dashboard payload.
type Overview struct {
	KPIs        KPIs          `json:"kpis"`
	AssetStatus []StatusSlice `json:"assetStatus"`
	Trend       []TrendPoint  `json:"trend"`
	Purchases   []PurchaseRow `json:"purchases"`
}

// Sort columns of the stock table.
const (
	SortName       = "name"
	SortCurrent    = "current"
	SortThreshold  = "threshold"
	SortPercentage = "percentage"
)

// TableQuery selects a page of the stock table.
type TableQuery struct {
	Search string
	Sort   string
	Desc   bool
	Page   int
}

// StockTable is one page of graded stock rows.
type StockTable struct {
	Rows       []StockRow        `json:"rows"`
	Pagination shared.Pagination `json:"pagination"`
}

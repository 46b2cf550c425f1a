// Package dashboard aggregates inventory and purchasing state into the
// headline view: counters, a graded stock table, asset status and trend.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/procurement"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// ErrInvalidSort is returned for an unknown stock table column.
var ErrInvalidSort = fmt.Errorf("dashboard: unknown sort column: %w", httpx.ErrValidation)

// InventorySource lists stock records.
type InventorySource interface {
	ListConsumables(ctx context.Context) ([]inventory.Consumable, error)
	ListFixedAssets(ctx context.Context) ([]inventory.FixedAsset, error)
}

// PurchaseSource lists purchases.
type PurchaseSource interface {
	ListPurchases(ctx context.Context) ([]procurement.Purchase, error)
}

// Service builds dashboard views, memoised through Cache.
type Service struct {
	inventory InventorySource
	purchases PurchaseSource
	cache     *Cache
	group     singleflight.Group
}

// NewService wires the data sources. cache may be nil.
func NewService(inv InventorySource, purchases PurchaseSource, cache *Cache) *Service {
	return &Service{inventory: inv, purchases: purchases, cache: cache}
}

// summary is the cached unit: everything derived for one period.
type summary struct {
	Overview Overview      `json:"overview"`
	Stock    []StockRow    `json:"stock"`
	Recent   []PurchaseRow `json:"recent"`
}

// Overview returns counters, breakdowns and the purchase list for filters.
func (s *Service) Overview(ctx context.Context, filters Filters) (Overview, error) {
	sum, err := s.load(ctx, filters.Period)
	if err != nil {
		return Overview{}, err
	}
	out := sum.Overview
	out.Purchases = make([]PurchaseRow, 0, len(sum.Recent))
	for _, p := range sum.Recent {
		if filters.PurchaseStatus != "" && p.Status != filters.PurchaseStatus {
			continue
		}
		out.Purchases = append(out.Purchases, p)
	}
	return out, nil
}

// StockTable returns one page of the graded stock table.
func (s *Service) StockTable(ctx context.Context, period shared.MonthYear, query TableQuery) (StockTable, error) {
	sortBy := query.Sort
	if sortBy == "" {
		sortBy = SortPercentage
	}
	less, err := rowOrder(sortBy)
	if err != nil {
		return StockTable{}, err
	}
	sum, err := s.load(ctx, period)
	if err != nil {
		return StockTable{}, err
	}
	rows := make([]StockRow, 0, len(sum.Stock))
	for _, row := range sum.Stock {
		if shared.MatchesSearch(query.Search, row.Name) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if query.Desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
	page, meta := shared.Paginate(rows, query.Page, PageSize)
	return StockTable{Rows: page, Pagination: meta}, nil
}

// Warm populates the cache for the unfiltered view.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.load(ctx, shared.MonthYear{})
	return err
}

func (s *Service) load(ctx context.Context, period shared.MonthYear) (summary, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "summary", strconv.Itoa(period.Month), strconv.Itoa(period.Year))
	if err != nil {
		return summary{}, err
	}
	// Shared by every waiter on key; detached from whichever caller started it.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var sum summary
		err := s.cache.FetchJSON(buildCtx, key, &sum, func(ctx context.Context) (any, error) {
			return s.build(ctx, period)
		})
		return sum, err
	})
	select {
	case <-ctx.Done():
		return summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return summary{}, res.Err
		}
		return res.Val.(summary), nil
	}
}

func (s *Service) build(ctx context.Context, period shared.MonthYear) (summary, error) {
	var (
		consumables []inventory.Consumable
		assets      []inventory.FixedAsset
		purchases   []procurement.Purchase
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		consumables, err = s.inventory.ListConsumables(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		assets, err = s.inventory.ListFixedAssets(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = s.purchases.ListPurchases(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return summary{}, err
	}
	return summarize(consumables, assets, purchases, period), nil
}

func summarize(consumables []inventory.Consumable, assets []inventory.FixedAsset, purchases []procurement.Purchase, period shared.MonthYear) summary {
	var sum summary
	trend := map[string]*TrendPoint{}
	point := func(date string) *TrendPoint {
		t, ok := shared.ParseDate(date)
		if !ok {
			return nil
		}
		key := t.Format(shared.DateLayout)
		if p, ok := trend[key]; ok {
			return p
		}
		p := &TrendPoint{Date: key}
		trend[key] = p
		return p
	}

	statusIdx := map[string]int{}
	sum.Overview.AssetStatus = []StatusSlice{}
	for _, a := range assets {
		if !period.Contains(a.DateAcquired) {
			continue
		}
		units := a.TotalUnits()
		sum.Overview.KPIs.TotalFixedAssets += units
		name := string(a.Status)
		if name == "" {
			name = "Unknown"
		}
		if i, ok := statusIdx[name]; ok {
			sum.Overview.AssetStatus[i].Value += units
		} else {
			statusIdx[name] = len(sum.Overview.AssetStatus)
			sum.Overview.AssetStatus = append(sum.Overview.AssetStatus, StatusSlice{Name: name, Value: units})
		}
		if p := point(a.DateAcquired); p != nil {
			p.Assets += units
		}
	}

	active := make([]inventory.Consumable, 0, len(consumables))
	for _, c := range consumables {
		if !period.Contains(c.DatePurchased) {
			continue
		}
		active = append(active, c)
		sum.Overview.KPIs.TotalConsumables += c.Quantity
		if p := point(c.DatePurchased); p != nil {
			p.Consumables += c.Quantity
		}
	}
	for _, c := range stock.LowStock(active) {
		if c.ReorderLevel > 0 {
			sum.Overview.KPIs.LowStockCount++
		}
	}
	sum.Stock = make([]StockRow, 0, len(active))
	for _, c := range stock.RankByStockPercentage(active) {
		sum.Stock = append(sum.Stock, StockRow{
			ID:         c.ID,
			Name:       c.Name,
			Current:    c.Quantity,
			Threshold:  c.ReorderLevel,
			Percentage: stock.Percentage(c.Quantity, c.ReorderLevel),
			Level:      stock.GradeLevel(c.Quantity, c.ReorderLevel),
		})
	}

	sum.Recent = make([]PurchaseRow, 0, len(purchases))
	for _, p := range purchases {
		if !period.Contains(p.Date) {
			continue
		}
		if p.Status == procurement.StatusPending {
			sum.Overview.KPIs.PendingPurchases++
		}
		sum.Recent = append(sum.Recent, PurchaseRow{
			ID:       p.ID,
			Item:     p.Item,
			Supplier: p.Supplier,
			Date:     p.Date,
			Status:   string(p.Status),
			Cost:     p.Cost,
		})
	}
	sort.SliceStable(sum.Recent, func(i, j int) bool { return sum.Recent[i].Date > sum.Recent[j].Date })

	sum.Overview.Trend = make([]TrendPoint, 0, len(trend))
	for _, p := range trend {
		sum.Overview.Trend = append(sum.Overview.Trend, *p)
	}
	sort.Slice(sum.Overview.Trend, func(i, j int) bool { return sum.Overview.Trend[i].Date < sum.Overview.Trend[j].Date })
	return sum
}

func rowOrder(field string) (func(a, b StockRow) bool, error) {
	switch field {
	case SortName:
		col := collate.New(language.English, collate.IgnoreCase)
		return func(a, b StockRow) bool { return col.CompareString(a.Name, b.Name) < 0 }, nil
	case SortCurrent:
		return func(a, b StockRow) bool { return a.Current < b.Current }, nil
	case SortThreshold:
		return func(a, b StockRow) bool { return a.Threshold < b.Threshold }, nil
	case SortPercentage:
		return func(a, b StockRow) bool { return a.Percentage < b.Percentage }, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidSort, field)
	}
}

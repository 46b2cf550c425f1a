package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/isc-maritime/stockroom/internal/app"
	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/procurement"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/suppliers"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	store, err := app.OpenStore(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	audit := shared.NewAuditLogger(store)
	inv := inventory.NewService(inventory.NewRepository(store), audit, inventory.ServiceConfig{}, nil)
	proc := procurement.NewService(procurement.NewRepository(store), inv, audit, nil, nil, logger)
	sup := suppliers.NewService(suppliers.NewRepository(store), audit)

	existing, err := inv.ListConsumables(ctx, inventory.ConsumableFilter{})
	if err != nil {
		logger.Error("check existing data", slog.Any("error", err))
		os.Exit(1)
	}
	if len(existing) > 0 {
		logger.Info("store already seeded, nothing to do", slog.Int("consumables", len(existing)))
		return
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"consumables", func(ctx context.Context) error { return seedConsumables(ctx, inv) }},
		{"fixed assets", func(ctx context.Context) error { return seedFixedAssets(ctx, inv) }},
		{"purchases", func(ctx context.Context) error { return seedPurchases(ctx, proc) }},
		{"suppliers", func(ctx context.Context) error { return seedSuppliers(ctx, sup) }},
	}
	for _, step := range steps {
		logger.Info("seeding", slog.String("step", step.name))
		if err := step.fn(ctx); err != nil {
			logger.Error("seed failed", slog.String("step", step.name), slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("seed complete", slog.Time("at", time.Now()))
}

func seedConsumables(ctx context.Context, inv *inventory.Service) error {
	items := []inventory.ConsumableInput{
		{Name: "Mooring Rope 24mm", Description: "Polypropylene, 220m coil", UnitPrice: 185.5, Quantity: 6, ReorderLevel: 2, ReorderTime: 14, DatePurchased: "2024-01-15"},
		{Name: "Anti-fouling Paint", Description: "20L drum, red", UnitPrice: 240, Quantity: 3, ReorderLevel: 4, ReorderTime: 21, DatePurchased: "2024-02-02"},
		{Name: "Engine Oil 15W-40", Description: "Drum 208L", UnitPrice: 610, Quantity: 12, ReorderLevel: 5, ReorderTime: 7, DatePurchased: "2024-02-20"},
		{Name: "Fuel Filter Element", Description: "Main engine", UnitPrice: 42.75, Quantity: 1, ReorderLevel: 6, ReorderTime: 10, DatePurchased: "2024-03-04"},
		{Name: "Safety Gloves", Description: "Cut resistant, pair", UnitPrice: 6.2, Quantity: 80, ReorderLevel: 20, ReorderTime: 5, DatePurchased: "2024-03-11"},
		{Name: "Signal Flares", Description: "SOLAS red hand flare", UnitPrice: 38, Quantity: 0, ReorderLevel: 12, ReorderTime: 30, DatePurchased: "2023-11-30"},
	}
	for _, in := range items {
		if _, err := inv.CreateConsumable(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedFixedAssets(ctx context.Context, inv *inventory.Service) error {
	assets := []inventory.FixedAssetInput{
		{Name: "Lifeboat Davit", Serial: "LD-2291", Category: "Safety", Location: "Boat deck", AssetClass: "Deck machinery", Status: inventory.AssetOperational, QtyFunctioning: 2, AcquisitionCost: 48000, DateAcquired: "2019-06-01"},
		{Name: "Fire Pump", Serial: "FP-0817", Category: "Safety", Location: "Engine room", AssetClass: "Pumps", Status: inventory.AssetMaintenance, QtyFunctioning: 1, QtyNotFunctioning: 1, AcquisitionCost: 15500, DateAcquired: "2020-03-12"},
		{Name: "VHF Radio", Serial: "VHF-5520", Category: "Navigation", Location: "Bridge", AssetClass: "Electronics", Status: inventory.AssetOperational, QtyFunctioning: 3, AcquisitionCost: 2100, DateAcquired: "2022-09-20"},
	}
	for _, in := range assets {
		if _, err := inv.CreateFixedAsset(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedPurchases(ctx context.Context, proc *procurement.Service) error {
	purchases := []procurement.PurchaseInput{
		{Item: "Signal Flares", Quantity: "24", UnitPrice: 36.5, Supplier: "Harbour Marine Supply", Date: "2024-04-02", Type: procurement.TypeConsumable},
		{Item: "Bilge Pump", Quantity: "1", UnitPrice: 3200, Supplier: "Seaworthy Pumps", Date: "2024-04-05", Type: procurement.TypeFixedAsset, SerialNumber: "BP-7712", AssetClass: "Pumps", Condition: "New"},
	}
	for _, in := range purchases {
		if _, err := proc.Create(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedSuppliers(ctx context.Context, sup *suppliers.Service) error {
	_, err := sup.Create(ctx, suppliers.SupplierInput{
		Name:          "Harbour Marine Supply",
		ContactPerson: "Dana Reyes",
		Phone:         "+63 2 555 0142",
		Email:         "orders@harbourmarine.example",
		Address:       "Pier 7, North Harbor",
		Items: []suppliers.ItemWithVariants{
			{Name: "Mooring Rope", Variants: []suppliers.Variant{{Label: "24mm x 220m", Price: 185.5}, {Label: "32mm x 220m", Price: 260}}},
			{Name: "Signal Flares", Variants: []suppliers.Variant{{Label: "Hand flare", Price: 36.5}}},
		},
	})
	return err
}

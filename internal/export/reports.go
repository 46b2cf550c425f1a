package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/procurement"
)

// ErrUnknownReport is returned for a report or format that does not exist.
var ErrUnknownReport = fmt.Errorf("export: unknown report: %w", httpx.ErrNotFound)

// Report names.
const (
	ReportConsumables = "consumables"
	ReportFixedAssets = "fixed-assets"
	ReportPurchases   = "purchases"
	ReportIssuedItems = "issued-items"
)

// Table is a rendered report ready for a writer.
type Table struct {
	Title   string
	Sheet   string
	Headers []string
	Rows    [][]any
}

// InventorySource lists inventory records.
type InventorySource interface {
	ListConsumables(ctx context.Context) ([]inventory.Consumable, error)
	ListFixedAssets(ctx context.Context) ([]inventory.FixedAsset, error)
	ListIssuedItems(ctx context.Context) ([]inventory.IssuedItem, error)
}

// PurchaseSource lists purchases.
type PurchaseSource interface {
	ListPurchases(ctx context.Context) ([]procurement.Purchase, error)
}

// Reports builds report tables from live data.
type Reports struct {
	inventory InventorySource
	purchases PurchaseSource
}

// NewReports wires the report sources.
func NewReports(inv InventorySource, purchases PurchaseSource) *Reports {
	return &Reports{inventory: inv, purchases: purchases}
}

// Build assembles the named report.
func (r *Reports) Build(ctx context.Context, name string) (Table, error) {
	switch name {
	case ReportConsumables:
		items, err := r.inventory.ListConsumables(ctx)
		if err != nil {
			return Table{}, err
		}
		t := Table{
			Title:   "Consumables",
			Sheet:   "Consumables",
			Headers: []string{"ID", "Name", "Category", "Unit Price", "Quantity", "Reorder Level", "Inventory Value", "Status", "Discontinued", "Date Purchased"},
		}
		for _, c := range items {
			t.Rows = append(t.Rows, []any{c.ID, c.Name, c.Description, Money(c.UnitPrice), c.Quantity, c.ReorderLevel, Money(c.InventoryValue), string(c.Status), c.Discontinued, c.DatePurchased})
		}
		return t, nil
	case ReportFixedAssets:
		assets, err := r.inventory.ListFixedAssets(ctx)
		if err != nil {
			return Table{}, err
		}
		t := Table{
			Title:   "Fixed Assets",
			Sheet:   "Fixed Assets",
			Headers: []string{"Asset No.", "Name", "Serial", "Class", "Location", "Status", "Functioning", "Not Functioning", "Acquisition Cost", "Date Acquired"},
		}
		for _, a := range assets {
			t.Rows = append(t.Rows, []any{a.AssetNumber, a.Name, a.Serial, a.AssetClass, a.Location, string(a.Status), a.QtyFunctioning, a.QtyNotFunctioning, Money(a.AcquisitionCost), a.DateAcquired})
		}
		return t, nil
	case ReportPurchases:
		purchases, err := r.purchases.ListPurchases(ctx)
		if err != nil {
			return Table{}, err
		}
		t := Table{
			Title:   "Purchases",
			Sheet:   "Purchases",
			Headers: []string{"Date", "Item", "Type", "Quantity", "Unit Price", "Cost", "Supplier", "Status"},
		}
		for _, p := range purchases {
			t.Rows = append(t.Rows, []any{p.Date, p.Item, string(p.Type), string(p.Quantity), Money(p.UnitPrice), Money(p.Cost), p.Supplier, string(p.Status)})
		}
		return t, nil
	case ReportIssuedItems:
		issued, err := r.inventory.ListIssuedItems(ctx)
		if err != nil {
			return Table{}, err
		}
		t := Table{
			Title:   "Issued Items",
			Sheet:   "Issued Items",
			Headers: []string{"ID", "Item", "Quantity", "Issued To", "Department", "Date Issued"},
		}
		for _, i := range issued {
			t.Rows = append(t.Rows, []any{i.ID, i.ConsumableName, i.QuantityIssued, i.IssuedTo, i.Department, i.DateIssued})
		}
		return t, nil
	default:
		return Table{}, fmt.Errorf("%w %q", ErrUnknownReport, name)
	}
}

// Handler serves report downloads.
type Handler struct {
	logger  *slog.Logger
	reports *Reports
	now     func() time.Time
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, reports *Reports) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reports: reports, now: time.Now}
}

// MountRoutes registers /{report}.{format}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{report}.{format}", h.handleDownload)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "report")
	format := chi.URLParam(r, "format")
	var contentType string
	switch format {
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		contentType = "application/pdf"
	default:
		httpx.RespondError(w, fmt.Errorf("%w format %q", ErrUnknownReport, format))
		return
	}

	table, err := h.reports.Build(r.Context(), name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if format == "xlsx" {
		err = WriteXLSX(&buf, table.Sheet, table.Headers, table.Rows)
	} else {
		err = WritePDF(&buf, table.Title, table.Headers, table.Rows)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", name, h.now().Format("20060102"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("report export failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

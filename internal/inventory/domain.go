package inventory

import (
	"fmt"
	"time"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// Document collections owned by the inventory module.
const (
	CollectionConsumables = "consumables"
	CollectionFixedAssets = "fixedAssets"
	CollectionIssuedItems = "consumablesIssuedItems"
)

// Id prefixes for sequence-numbered records.
const (
	PrefixConsumable = "CON"
	PrefixFixedAsset = "FA"
	PrefixIssuance   = "ISSUE"
)

// Consumable is a stock-tracked supply item. InventoryValue and Status are
// derived and refreshed by Recompute on every write.
type Consumable struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	UnitPrice      float64      `json:"unitPrice"`
	Quantity       int          `json:"quantity"`
	ReorderLevel   int          `json:"reorderLevel"`
	ReorderTime    int          `json:"reorderTime"`
	InventoryValue float64      `json:"inventoryValue"`
	Status         stock.Status `json:"status"`
	Discontinued   bool         `json:"discontinued"`
	DatePurchased  string       `json:"datePurchased"`
}

func (c Consumable) StockQuantity() int      { return c.Quantity }
func (c Consumable) StockReorderLevel() int  { return c.ReorderLevel }
func (c Consumable) StockDiscontinued() bool { return c.Discontinued }

// AssetStatus enumerates fixed asset conditions.
type AssetStatus string

const (
	AssetOperational    AssetStatus = "Operational"
	AssetMaintenance    AssetStatus = "Maintenance"
	AssetNonOperational AssetStatus = "Non-operational"
)

// FixedAsset is durable equipment tracked by count of working and failed units.
type FixedAsset struct {
	ID                string      `json:"id"`
	AssetNumber       string      `json:"assetNumber"`
	Name              string      `json:"name"`
	Serial            string      `json:"serial"`
	Category          string      `json:"category"`
	Location          string      `json:"location"`
	AssetClass        string      `json:"assetClass"`
	Status            AssetStatus `json:"status"`
	QtyFunctioning    int         `json:"qtyFunctioning"`
	QtyNotFunctioning int         `json:"qtyNotFunctioning"`
	AcquisitionCost   float64     `json:"acquisitionCost"`
	DateAcquired      string      `json:"dateAcquired"`
}

// TotalUnits counts working and failed units.
func (a FixedAsset) TotalUnits() int {
	return a.QtyFunctioning + a.QtyNotFunctioning
}

// IssuedItem records consumable units handed out to crew or a department.
type IssuedItem struct {
	ID             string    `json:"id"`
	ConsumableID   string    `json:"consumableId"`
	ConsumableName string    `json:"consumableName"`
	QuantityIssued int       `json:"quantityIssued"`
	IssuedTo       string    `json:"issuedTo"`
	Department     string    `json:"department"`
	DateIssued     string    `json:"dateIssued"`
	IsMultiItem    bool      `json:"isMultiItem,omitempty"`
	MultiItemIDs   []string  `json:"multiItemIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConsumableInput carries editable consumable fields.
type ConsumableInput struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	UnitPrice     float64 `json:"unitPrice" validate:"gte=0"`
	Quantity      int     `json:"quantity"`
	ReorderLevel  int     `json:"reorderLevel" validate:"gte=0"`
	ReorderTime   int     `json:"reorderTime" validate:"gte=0"`
	Discontinued  bool    `json:"discontinued"`
	DatePurchased string  `json:"datePurchased" validate:"omitempty,datetime=2006-01-02"`
}

// FixedAssetInput carries editable fixed asset fields.
type FixedAssetInput struct {
	Name              string      `json:"name" validate:"required"`
	Serial            string      `json:"serial"`
	Category          string      `json:"category"`
	Location          string      `json:"location"`
	AssetClass        string      `json:"assetClass"`
	Status            AssetStatus `json:"status" validate:"omitempty,oneof=Operational Maintenance Non-operational"`
	QtyFunctioning    int         `json:"qtyFunctioning" validate:"gte=0"`
	QtyNotFunctioning int         `json:"qtyNotFunctioning" validate:"gte=0"`
	AcquisitionCost   float64     `json:"acquisitionCost" validate:"gte=0"`
	DateAcquired      string      `json:"dateAcquired" validate:"omitempty,datetime=2006-01-02"`
}

// IssueInput requests a single issuance.
type IssueInput struct {
	ConsumableID   string `json:"consumableId" validate:"required"`
	QuantityIssued int    `json:"quantityIssued" validate:"gt=0"`
	IssuedTo       string `json:"issuedTo" validate:"required"`
	Department     string `json:"department"`
	DateIssued     string `json:"dateIssued" validate:"omitempty,datetime=2006-01-02"`
	Actor          string `json:"-"`
}

// IssueLine is one consumable of a multi-item issuance.
type IssueLine struct {
	ConsumableID string `json:"consumableId" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gt=0"`
}

// IssueMultipleInput issues several consumables to one recipient.
type IssueMultipleInput struct {
	IssuedTo   string      `json:"issuedTo" validate:"required"`
	Department string      `json:"department"`
	DateIssued string      `json:"dateIssued" validate:"omitempty,datetime=2006-01-02"`
	Lines      []IssueLine `json:"items" validate:"required,min=1,dive"`
	Actor      string      `json:"-"`
}

// UpdateIssuanceInput edits issuance metadata. Quantity is immutable; delete
// and reissue to change it.
type UpdateIssuanceInput struct {
	IssuedTo   string `json:"issuedTo" validate:"required"`
	Department string `json:"department"`
	DateIssued string `json:"dateIssued" validate:"omitempty,datetime=2006-01-02"`
}

// ConsumableFilter narrows consumable listings.
type ConsumableFilter struct {
	Category    string
	Range       shared.DateRange
	Search      string
	ReorderOnly bool
}

// FixedAssetFilter narrows fixed asset listings.
type FixedAssetFilter struct {
	AssetClass string
	Status     AssetStatus
	Range      shared.DateRange
	Search     string
	Descending bool
}

// ReceiptKind tells the receipt poster which inventory record to touch.
type ReceiptKind string

const (
	ReceiptConsumable ReceiptKind = "consumable"
	ReceiptFixedAsset ReceiptKind = "fixed-asset"
)

// Receipt is a received purchase line ready to be posted into inventory.
type Receipt struct {
	Kind         ReceiptKind
	Reference    string
	ConsumableID string
	Item         string
	Category     string
	UnitPrice    float64
	Quantity     int
	Cost         float64
	Date         string
	SerialNumber string
	AssetClass   string
}

// ReceiptResult reports what the receipt created or changed.
type ReceiptResult struct {
	Consumable *Consumable
	FixedAsset *FixedAsset
	// Created is true when a new inventory record was written.
	Created bool
}

var (
	// ErrConsumableNotFound indicates a missing consumable.
	ErrConsumableNotFound = fmt.Errorf("inventory: consumable not found: %w", httpx.ErrNotFound)
	// ErrFixedAssetNotFound indicates a missing fixed asset.
	ErrFixedAssetNotFound = fmt.Errorf("inventory: fixed asset not found: %w", httpx.ErrNotFound)
	// ErrIssuanceNotFound indicates a missing issuance record.
	ErrIssuanceNotFound = fmt.Errorf("inventory: issued item not found: %w", httpx.ErrNotFound)
	// ErrNegativeStock triggered when an issuance would take quantity below zero.
	ErrNegativeStock = fmt.Errorf("inventory: insufficient quantity: %w", httpx.ErrUnprocessable)
	// ErrDiscontinued rejects issuing discontinued consumables.
	ErrDiscontinued = fmt.Errorf("inventory: item has been discontinued: %w", httpx.ErrUnprocessable)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be greater than zero: %w", httpx.ErrValidation)
	// ErrInvalidUnitCost indicates invalid price value.
	ErrInvalidUnitCost = fmt.Errorf("inventory: unit price must be >= 0: %w", httpx.ErrValidation)
	// ErrNameRequired rejects unnamed records.
	ErrNameRequired = fmt.Errorf("inventory: name required: %w", httpx.ErrValidation)
)

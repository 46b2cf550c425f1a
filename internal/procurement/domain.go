package procurement

import (
	"fmt"
	"time"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// CollectionPurchases stores purchase documents.
const CollectionPurchases = "purchases"

// PurchaseType selects which inventory record a receipt posts into.
type PurchaseType string

const (
	TypeConsumable PurchaseType = "consumable"
	TypeFixedAsset PurchaseType = "fixed-asset"
)

// PurchaseStatus tracks purchase lifecycle. Pending is the only state that
// can transition.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "Pending"
	StatusReceived  PurchaseStatus = "Received"
	StatusCancelled PurchaseStatus = "Cancelled"
)

// Purchase is an order for a consumable or a fixed asset.
type Purchase struct {
	ID           string         `json:"id"`
	Item         string         `json:"item"`
	Quantity     stock.Quantity `json:"quantity"`
	UnitPrice    float64        `json:"unitPrice"`
	Cost         float64        `json:"cost"`
	Supplier     string         `json:"supplier"`
	Date         string         `json:"date"`
	Type         PurchaseType   `json:"type"`
	Status       PurchaseStatus `json:"status"`
	Receipt      *string        `json:"receipt"`
	Category     string         `json:"category,omitempty"`
	ConsumableID string         `json:"consumableId,omitempty"`
	SerialNumber string         `json:"serialNumber,omitempty"`
	AssetClass   string         `json:"assetClass,omitempty"`
	Condition    string         `json:"condition,omitempty"`
	ReceivedAt   *time.Time     `json:"receivedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// PurchaseInput carries editable purchase fields.
type PurchaseInput struct {
	Item         string         `json:"item" validate:"required"`
	Quantity     stock.Quantity `json:"quantity" validate:"required"`
	UnitPrice    float64        `json:"unitPrice" validate:"gte=0"`
	Supplier     string         `json:"supplier"`
	Date         string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Type         PurchaseType   `json:"type" validate:"required,oneof=consumable fixed-asset"`
	Category     string         `json:"category"`
	ConsumableID string         `json:"consumableId"`
	SerialNumber string         `json:"serialNumber"`
	AssetClass   string         `json:"assetClass"`
	Condition    string         `json:"condition"`
}

// BatchLine is one item of a multi-purchase request.
type BatchLine struct {
	Item         string         `json:"item" validate:"required"`
	Quantity     stock.Quantity `json:"quantity" validate:"required"`
	UnitPrice    float64        `json:"unitPrice" validate:"gte=0"`
	Category     string         `json:"category"`
	ConsumableID string         `json:"consumableId"`
	SerialNumber string         `json:"serialNumber"`
	AssetClass   string         `json:"assetClass"`
	Condition    string         `json:"condition"`
}

// BatchInput creates several purchases sharing supplier, date and type.
type BatchInput struct {
	Supplier string       `json:"supplier"`
	Date     string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Type     PurchaseType `json:"type" validate:"required,oneof=consumable fixed-asset"`
	Lines    []BatchLine  `json:"items" validate:"required,min=1"`
}

// BatchFailure reports a skipped batch line.
type BatchFailure struct {
	Line  int    `json:"line"`
	Item  string `json:"item"`
	Error string `json:"error"`
}

// BatchResult lists what a batch created and what it skipped.
type BatchResult struct {
	Created []Purchase     `json:"created"`
	Failed  []BatchFailure `json:"failed"`
}

// ListFilters narrows purchase listings.
type ListFilters struct {
	Period shared.MonthYear
	Status PurchaseStatus
	Type   PurchaseType
	Search string
}

// ReorderLine is a low-stock consumable with a suggested order quantity.
type ReorderLine struct {
	ConsumableID      string  `json:"consumableId"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Quantity          int     `json:"quantity"`
	ReorderLevel      int     `json:"reorderLevel"`
	UnitPrice         float64 `json:"unitPrice"`
	SuggestedQuantity int     `json:"suggestedQuantity"`
	EstimatedCost     float64 `json:"estimatedCost"`
}

// KPIs summarise the purchasing page.
type KPIs struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Received      int     `json:"received"`
	Cancelled     int     `json:"cancelled"`
	LowStockCount int     `json:"lowStockCount"`
	TotalValue    float64 `json:"totalValue"`
}

var (
	// ErrPurchaseNotFound indicates record missing.
	ErrPurchaseNotFound = fmt.Errorf("procurement: purchase not found: %w", httpx.ErrNotFound)
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("procurement: invalid state transition: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: invalid input: %w", httpx.ErrValidation)
	// ErrReceiveInProgress rejects a concurrent second receive of one purchase.
	ErrReceiveInProgress = fmt.Errorf("procurement: receipt already being posted: %w", httpx.ErrConflict)
)

package suppliers

import (
	"fmt"
	"time"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
)

// Document collections owned by the supplier module.
const (
	CollectionSuppliers        = "suppliers"
	CollectionCurrentPurchases = "current_purchases"
	CollectionPurchaseHistory  = "purchase_history"
	CollectionCrewIssues       = "issuedItems"
)

// Variant is a priced option of a supplier item
type Variant struct {
	ID    string  `json:"id"`
	Label string  `json:"label" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// ItemWithVariants is an item a supplier sells
type ItemWithVariants struct {
	ID       string    `json:"id"`
	Name     string    `json:"name" validate:"required"`
	Variants []Variant `json:"variants" validate:"dive"`
}

// Supplier represents a supplier entity
type Supplier struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	TIN           string             `json:"tin"`
	ContactPerson string             `json:"contactPerson,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	Email         string             `json:"email,omitempty"`
	Address       string             `json:"address,omitempty"`
	Items         []ItemWithVariants `json:"items"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// SupplierInput carries editable supplier fields
type SupplierInput struct {
	Name          string             `json:"name" validate:"required"`
	TIN           string             `json:"tin"`
	ContactPerson string             `json:"contactPerson"`
	Phone         string             `json:"phone"`
	Email         string             `json:"email" validate:"omitempty,email"`
	Address       string             `json:"address"`
	Items         []ItemWithVariants `json:"items" validate:"dive"`
}

// OrderStatus tracks a current purchase
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderOrdered OrderStatus = "ordered"
)

// CurrentPurchase is an open order line with a supplier
type CurrentPurchase struct {
	ID           string      `json:"id"`
	SupplierID   string      `json:"supplierId"`
	SupplierName string      `json:"supplierName"`
	Item         string      `json:"item"`
	Variant      string      `json:"variant"`
	UnitPrice    float64     `json:"unitPrice"`
	Quantity     int         `json:"quantity"`
	Total        float64     `json:"total"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	OrderedAt    *time.Time  `json:"orderedAt,omitempty"`
}

// CurrentPurchaseInput adds a line to current purchases
type CurrentPurchaseInput struct {
	SupplierID string  `json:"supplierId" validate:"required"`
	Item       string  `json:"item" validate:"required"`
	Variant    string  `json:"variant"`
	UnitPrice  float64 `json:"unitPrice" validate:"gte=0"`
	Quantity   int     `json:"quantity" validate:"gte=1"`
}

// PurchaseHistory is a received supplier order line
type PurchaseHistory struct {
	ID           string    `json:"id"`
	SupplierID   string    `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Item         string    `json:"item"`
	Variant      string    `json:"variant"`
	UnitPrice    float64   `json:"unitPrice"`
	Quantity     int       `json:"quantity"`
	Total        float64   `json:"total"`
	OrderedAt    time.Time `json:"orderedAt"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// CrewIssue records supplier stock handed to a crew member
type CrewIssue struct {
	ID         string    `json:"id"`
	SupplierID string    `json:"supplierId"`
	ItemName   string    `json:"itemName"`
	Variant    string    `json:"variant"`
	Quantity   int       `json:"quantity"`
	CrewName   string    `json:"crewName"`
	IssuedDate string    `json:"issuedDate"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CrewIssueLine is one item handed out
type CrewIssueLine struct {
	SupplierID string `json:"supplierId" validate:"required"`
	ItemName   string `json:"itemName" validate:"required"`
	Variant    string `json:"variant" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=1"`
}

// CrewIssueInput issues several lines to one crew member
type CrewIssueInput struct {
	CrewName   string          `json:"crewName" validate:"required"`
	IssuedDate string          `json:"issuedDate" validate:"required,datetime=2006-01-02"`
	Lines      []CrewIssueLine `json:"items" validate:"required,min=1,dive"`
}

// CrewIssueFilter narrows crew issue listings
type CrewIssueFilter struct {
	Search string
	Range  shared.DateRange
}

// SupplierStock is derived per supplier, item and variant. It is never stored.
type SupplierStock struct {
	SupplierID    string  `json:"supplierId"`
	ItemName      string  `json:"itemName"`
	Variant       string  `json:"variant"`
	TotalStock    int     `json:"totalStock"`
	TotalValue    float64 `json:"totalValue"`
	DatePurchased string  `json:"datePurchased"`
	PurchaseID    string  `json:"purchaseId"`
}

// StockFilter narrows the supplier stock view
type StockFilter struct {
	Search     string
	SupplierID string
	Range      shared.DateRange
}

var (
	ErrSupplierNotFound = fmt.Errorf("suppliers: supplier not found: %w", httpx.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("suppliers: item not found: %w", httpx.ErrNotFound)
	ErrPurchaseNotFound = fmt.Errorf("suppliers: current purchase not found: %w", httpx.ErrNotFound)
	ErrIssueNotFound    = fmt.Errorf("suppliers: issued item not found: %w", httpx.ErrNotFound)
	ErrInvalidInput     = fmt.Errorf("suppliers: invalid input: %w", httpx.ErrValidation)
)

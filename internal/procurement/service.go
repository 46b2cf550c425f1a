package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

const (
	idempotencyModule = "procurement.receive"
	releaseTimeout    = 5 * time.Second
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPurchases(ctx context.Context) ([]Purchase, error)
	GetPurchase(ctx context.Context, id string) (Purchase, error)
}

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	PostReceiptTx(ctx context.Context, tx inventory.TxRepository, receipt inventory.Receipt) (inventory.ReceiptResult, error)
	ObserveReceipt(ctx context.Context, result inventory.ReceiptResult, quantity int)
	LowStock(ctx context.Context) ([]inventory.Consumable, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates procurement flows.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	observer    ReceiptObserver
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs procurement service. idem, observer and logger may be nil.
func NewService(repo RepositoryPort, inventory InventoryPort, audit AuditPort, idem *shared.IdempotencyStore, observer ReceiptObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		inventory:   inventory,
		audit:       audit,
		idempotency: idem,
		observer:    observer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a Pending purchase. Cost is fixed here from the numeric
// part of the quantity and is never recomputed.
func (s *Service) Create(ctx context.Context, input PurchaseInput) (Purchase, error) {
	if err := validateInput(input.Item, input.Type, input.UnitPrice); err != nil {
		return Purchase{}, err
	}
	now := s.now()
	p := Purchase{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: now,
	}
	p = applyInput(p, input)
	p.Cost = stock.LineTotal(p.UnitPrice, p.Quantity.Units())
	if p.Date == "" {
		p.Date = now.Format(shared.DateLayout)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PutPurchase(ctx, p)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_CREATE", p.ID, map[string]any{"item": p.Item, "cost": p.Cost})
	return p, nil
}

// CreateBatch creates one purchase per line. Lines are independent: a failing
// line is skipped and reported while the rest are still created.
func (s *Service) CreateBatch(ctx context.Context, input BatchInput) (BatchResult, error) {
	if len(input.Lines) == 0 {
		return BatchResult{}, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	result := BatchResult{Created: make([]Purchase, 0, len(input.Lines)), Failed: []BatchFailure{}}
	for i, line := range input.Lines {
		p, err := s.Create(ctx, PurchaseInput{
			Item:         line.Item,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			Supplier:     input.Supplier,
			Date:         input.Date,
			Type:         input.Type,
			Category:     line.Category,
			ConsumableID: line.ConsumableID,
			SerialNumber: line.SerialNumber,
			AssetClass:   line.AssetClass,
			Condition:    line.Condition,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed = append(result.Failed, BatchFailure{Line: i + 1, Item: line.Item, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, p)
	}
	return result, nil
}

// Get loads one purchase.
func (s *Service) Get(ctx context.Context, id string) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// Update edits purchase details. Status, cost and receipt are left untouched.
func (s *Service) Update(ctx context.Context, id string, input PurchaseInput) (Purchase, error) {
	if err := validateInput(input.Item, input.Type, input.UnitPrice); err != nil {
		return Purchase{}, err
	}
	var updated Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		updated = applyInput(current, input)
		if updated.Date == "" {
			updated.Date = current.Date
		}
		if updated.ConsumableID == "" {
			updated.ConsumableID = current.ConsumableID
		}
		return tx.PutPurchase(ctx, updated)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_UPDATE", id, nil)
	return updated, nil
}

// Cancel moves a Pending purchase to Cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (Purchase, error) {
	var cancelled Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return ErrInvalidState
		}
		current.Status = StatusCancelled
		cancelled = current
		return tx.PutPurchase(ctx, current)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_CANCEL", id, nil)
	return cancelled, nil
}

// AttachReceipt stores the name of an uploaded receipt document.
func (s *Service) AttachReceipt(ctx context.Context, id, name string) (Purchase, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Purchase{}, fmt.Errorf("%w: receipt name required", ErrValidation)
	}
	var updated Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		current.Receipt = &name
		updated = current
		return tx.PutPurchase(ctx, current)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_RECEIPT_ATTACH", id, map[string]any{"receipt": name})
	return updated, nil
}

// Delete removes a purchase. A posted receipt is not reversed.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PURCHASE_DELETE", id, nil)
	return nil
}

// Receive posts a Pending purchase into inventory and marks it Received in
// the same transaction. On failure the purchase stays Pending.
func (s *Service) Receive(ctx context.Context, id string) (Purchase, error) {
	if s.inventory == nil {
		return Purchase{}, errors.New("inventory integration not configured")
	}
	key := "purchase:" + id
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Purchase{}, ErrReceiveInProgress
			}
			return Purchase{}, err
		}
		inserted = true
	}
	var (
		received Purchase
		result   inventory.ReceiptResult
		qty      int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return ErrInvalidState
		}
		qty = current.Quantity.Units()
		result, err = s.inventory.PostReceiptTx(ctx, tx.Inventory(), receiptFor(current, qty))
		if err != nil {
			return err
		}
		if result.Created && result.Consumable != nil {
			current.ConsumableID = result.Consumable.ID
		}
		at := s.now()
		current.Status = StatusReceived
		current.ReceivedAt = &at
		received = current
		return tx.PutPurchase(ctx, current)
	})
	if err != nil {
		if inserted {
			s.releaseReceive(ctx, key)
		}
		return Purchase{}, err
	}
	s.inventory.ObserveReceipt(ctx, result, qty)
	evt := PurchaseReceivedEvent{
		PurchaseID: received.ID,
		Type:       received.Type,
		Quantity:   qty,
		Cost:       received.Cost,
		Created:    result.Created,
		ReceivedAt: *received.ReceivedAt,
	}
	switch {
	case result.Consumable != nil:
		evt.InventoryID = result.Consumable.ID
	case result.FixedAsset != nil:
		evt.InventoryID = result.FixedAsset.ID
	}
	if s.observer != nil {
		s.observer.HandlePurchaseReceived(ctx, evt)
	}
	s.recordAudit(ctx, "PURCHASE_RECEIVE", id, map[string]any{"inventory_id": evt.InventoryID, "quantity": qty})
	return received, nil
}

// releaseReceive drops the receive guard after a failed post. It must
// outlive a cancelled request, otherwise the key blocks retries until TTL.
func (s *Service) releaseReceive(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.idempotency.Delete(ctx, key, idempotencyModule); err != nil {
		s.logger.Warn("release receive guard", slog.String("key", key), slog.Any("error", err))
	}
}

// List returns purchases matching filters, most recent date first.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Purchase, error) {
	purchases, err := s.repo.ListPurchases(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Purchase, 0, len(purchases))
	for _, p := range purchases {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.Type != "" && p.Type != filters.Type {
			continue
		}
		if !filters.Period.Contains(p.Date) {
			continue
		}
		if !shared.MatchesSearch(filters.Search, p.Item, p.Supplier, p.Category, p.AssetClass) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// AvailableYears lists the years that have purchases plus the current year,
// newest first.
func (s *Service) AvailableYears(ctx context.Context) ([]int, error) {
	purchases, err := s.repo.ListPurchases(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]struct{}{s.now().Year(): {}}
	for _, p := range purchases {
		if t, ok := shared.ParseDate(p.Date); ok {
			seen[t.Year()] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// ReorderWorklist lists consumables strictly below their reorder level with
// a suggested order quantity.
func (s *Service) ReorderWorklist(ctx context.Context) ([]ReorderLine, error) {
	if s.inventory == nil {
		return []ReorderLine{}, nil
	}
	low, err := s.inventory.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]ReorderLine, 0, len(low))
	for _, c := range low {
		suggested := stock.ReorderSuggestion(c.Quantity, c.ReorderLevel)
		lines = append(lines, ReorderLine{
			ConsumableID:      c.ID,
			Name:              c.Name,
			Category:          c.Description,
			Quantity:          c.Quantity,
			ReorderLevel:      c.ReorderLevel,
			UnitPrice:         c.UnitPrice,
			SuggestedQuantity: suggested,
			EstimatedCost:     stock.LineTotal(c.UnitPrice, suggested),
		})
	}
	return lines, nil
}

// KPIs summarises purchases and the current reorder backlog.
func (s *Service) KPIs(ctx context.Context, period shared.MonthYear) (KPIs, error) {
	purchases, err := s.List(ctx, ListFilters{Period: period})
	if err != nil {
		return KPIs{}, err
	}
	var kpi KPIs
	costs := make([]float64, 0, len(purchases))
	for _, p := range purchases {
		kpi.Total++
		switch p.Status {
		case StatusPending:
			kpi.Pending++
		case StatusReceived:
			kpi.Received++
		case StatusCancelled:
			kpi.Cancelled++
		}
		costs = append(costs, p.Cost)
	}
	kpi.TotalValue = stock.Sum(costs...)
	if s.inventory != nil {
		low, err := s.inventory.LowStock(ctx)
		if err != nil {
			return KPIs{}, err
		}
		kpi.LowStockCount = len(low)
	}
	return kpi, nil
}

func receiptFor(p Purchase, qty int) inventory.Receipt {
	kind := inventory.ReceiptConsumable
	if p.Type == TypeFixedAsset {
		kind = inventory.ReceiptFixedAsset
	}
	return inventory.Receipt{
		Kind:         kind,
		Reference:    p.ID,
		ConsumableID: p.ConsumableID,
		Item:         p.Item,
		Category:     p.Category,
		UnitPrice:    p.UnitPrice,
		Quantity:     qty,
		Cost:         p.Cost,
		Date:         p.Date,
		SerialNumber: p.SerialNumber,
		AssetClass:   p.AssetClass,
	}
}

func validateInput(item string, typ PurchaseType, unitPrice float64) error {
	if strings.TrimSpace(item) == "" {
		return fmt.Errorf("%w: item required", ErrValidation)
	}
	if typ != TypeConsumable && typ != TypeFixedAsset {
		return fmt.Errorf("%w: unknown purchase type %q", ErrValidation, typ)
	}
	if unitPrice < 0 {
		return fmt.Errorf("%w: unit price must be >= 0", ErrValidation)
	}
	return nil
}

func applyInput(p Purchase, input PurchaseInput) Purchase {
	p.Item = strings.TrimSpace(input.Item)
	p.Quantity = input.Quantity
	p.UnitPrice = input.UnitPrice
	p.Supplier = input.Supplier
	p.Date = input.Date
	p.Type = input.Type
	p.Category = input.Category
	p.ConsumableID = input.ConsumableID
	p.SerialNumber = input.SerialNumber
	p.AssetClass = input.AssetClass
	p.Condition = input.Condition
	return p
}

func (s *Service) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: CollectionPurchases, EntityID: entityID, Meta: meta})
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListConsumables(ctx context.Context) ([]Consumable, error)
	GetConsumable(ctx context.Context, id string) (Consumable, error)
	ListFixedAssets(ctx context.Context) ([]FixedAsset, error)
	GetFixedAsset(ctx context.Context, id string) (FixedAsset, error)
	ListIssuedItems(ctx context.Context) ([]IssuedItem, error)
	GetIssuedItem(ctx context.Context, id string) (IssuedItem, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
	observer MovementObserver
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig, observer MovementObserver) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		allowNeg: cfg.AllowNegativeStock,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListConsumables returns consumables matching filter in insertion order.
func (s *Service) ListConsumables(ctx context.Context, filter ConsumableFilter) ([]Consumable, error) {
	items, err := s.repo.ListConsumables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Consumable, 0, len(items))
	for _, c := range items {
		if filter.Category != "" && c.Description != filter.Category {
			continue
		}
		if !filter.Range.Contains(c.DatePurchased) {
			continue
		}
		if !shared.MatchesSearch(filter.Search, c.ID, c.Name, c.Description) {
			continue
		}
		if filter.ReorderOnly && (c.Discontinued || !stock.IsLowStockInclusive(c.Quantity, c.ReorderLevel)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Categories lists the distinct consumable categories, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	items, err := s.repo.ListConsumables(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, c := range items {
		if c.Description == "" {
			continue
		}
		if _, ok := seen[c.Description]; ok {
			continue
		}
		seen[c.Description] = struct{}{}
		out = append(out, c.Description)
	}
	sort.Strings(out)
	return out, nil
}

// LowStock returns non-discontinued consumables strictly below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Consumable, error) {
	items, err := s.repo.ListConsumables(ctx)
	if err != nil {
		return nil, err
	}
	return stock.LowStock(items), nil
}

// Reconcile rewrites consumables whose stored inventory value or status
// disagree with their quantity, for example rows imported from elsewhere.
// It returns the ids it fixed.
func (s *Service) Reconcile(ctx context.Context) ([]string, error) {
	items, err := s.repo.ListConsumables(ctx)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, c := range items {
		fresh := c.Recompute()
		if fresh.InventoryValue != c.InventoryValue || fresh.Status != c.Status {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range stale {
			c, err := tx.GetConsumable(ctx, id)
			if err != nil {
				return err
			}
			if err := tx.PutConsumable(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "CONSUMABLE_RECONCILE", CollectionConsumables, "", map[string]any{"ids": stale})
	return stale, nil
}

// GetConsumable loads one consumable.
func (s *Service) GetConsumable(ctx context.Context, id string) (Consumable, error) {
	return s.repo.GetConsumable(ctx, id)
}

// CreateConsumable allocates a CON-NNN id and stores the item with derived fields.
func (s *Service) CreateConsumable(ctx context.Context, input ConsumableInput) (Consumable, error) {
	if err := s.validateConsumable(input); err != nil {
		return Consumable{}, err
	}
	var created Consumable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.NextConsumableID(ctx)
		if err != nil {
			return err
		}
		created = applyConsumableInput(Consumable{ID: id}, input).Recompute()
		return tx.PutConsumable(ctx, created)
	})
	if err != nil {
		return Consumable{}, err
	}
	s.recordAudit(ctx, "CONSUMABLE_CREATE", CollectionConsumables, created.ID, map[string]any{"name": created.Name, "quantity": created.Quantity})
	return created, nil
}

// UpdateConsumable replaces the editable fields and recomputes derived ones.
func (s *Service) UpdateConsumable(ctx context.Context, id string, input ConsumableInput) (Consumable, error) {
	if err := s.validateConsumable(input); err != nil {
		return Consumable{}, err
	}
	var updated Consumable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetConsumable(ctx, id)
		if err != nil {
			return err
		}
		updated = applyConsumableInput(current, input).Recompute()
		return tx.PutConsumable(ctx, updated)
	})
	if err != nil {
		return Consumable{}, err
	}
	s.recordAudit(ctx, "CONSUMABLE_UPDATE", CollectionConsumables, id, map[string]any{"quantity": updated.Quantity})
	return updated, nil
}

// DeleteConsumable removes a consumable. Issuance records referencing it are kept.
func (s *Service) DeleteConsumable(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteConsumable(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "CONSUMABLE_DELETE", CollectionConsumables, id, nil)
	return nil
}

// ListFixedAssets returns fixed assets matching filter, ordered by asset number.
func (s *Service) ListFixedAssets(ctx context.Context, filter FixedAssetFilter) ([]FixedAsset, error) {
	assets, err := s.repo.ListFixedAssets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FixedAsset, 0, len(assets))
	for _, a := range assets {
		if filter.AssetClass != "" && a.AssetClass != filter.AssetClass {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if !filter.Range.Contains(a.DateAcquired) {
			continue
		}
		if !shared.MatchesSearch(filter.Search, a.AssetNumber, a.Name, a.Serial, a.AssetClass) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := stock.ParseQuantity(out[i].AssetNumber), stock.ParseQuantity(out[j].AssetNumber)
		if filter.Descending {
			return ni > nj
		}
		return ni < nj
	})
	return out, nil
}

// GetFixedAsset loads one fixed asset.
func (s *Service) GetFixedAsset(ctx context.Context, id string) (FixedAsset, error) {
	return s.repo.GetFixedAsset(ctx, id)
}

// CreateFixedAsset allocates an FA-NNN number and stores the asset.
func (s *Service) CreateFixedAsset(ctx context.Context, input FixedAssetInput) (FixedAsset, error) {
	if strings.TrimSpace(input.Name) == "" {
		return FixedAsset{}, ErrNameRequired
	}
	if input.AcquisitionCost < 0 {
		return FixedAsset{}, ErrInvalidUnitCost
	}
	var created FixedAsset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.NextFixedAssetID(ctx)
		if err != nil {
			return err
		}
		created = applyFixedAssetInput(FixedAsset{ID: id, AssetNumber: id}, input)
		return tx.PutFixedAsset(ctx, created)
	})
	if err != nil {
		return FixedAsset{}, err
	}
	s.recordAudit(ctx, "FIXED_ASSET_CREATE", CollectionFixedAssets, created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateFixedAsset replaces the editable fields of an asset.
func (s *Service) UpdateFixedAsset(ctx context.Context, id string, input FixedAssetInput) (FixedAsset, error) {
	if strings.TrimSpace(input.Name) == "" {
		return FixedAsset{}, ErrNameRequired
	}
	var updated FixedAsset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetFixedAsset(ctx, id)
		if err != nil {
			return err
		}
		updated = applyFixedAssetInput(current, input)
		return tx.PutFixedAsset(ctx, updated)
	})
	if err != nil {
		return FixedAsset{}, err
	}
	s.recordAudit(ctx, "FIXED_ASSET_UPDATE", CollectionFixedAssets, id, nil)
	return updated, nil
}

// DeleteFixedAsset removes a fixed asset.
func (s *Service) DeleteFixedAsset(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteFixedAsset(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "FIXED_ASSET_DELETE", CollectionFixedAssets, id, nil)
	return nil
}

// ListIssuedItems returns issuance records, most recent first.
func (s *Service) ListIssuedItems(ctx context.Context) ([]IssuedItem, error) {
	items, err := s.repo.ListIssuedItems(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DateIssued > items[j].DateIssued
	})
	return items, nil
}

// GetIssuedItem loads one issuance record.
func (s *Service) GetIssuedItem(ctx context.Context, id string) (IssuedItem, error) {
	return s.repo.GetIssuedItem(ctx, id)
}

// IssueItem deducts stock and records the issuance in one transaction.
func (s *Service) IssueItem(ctx context.Context, input IssueInput) (IssuedItem, error) {
	if input.QuantityIssued <= 0 {
		return IssuedItem{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(input.ConsumableID) == "" {
		return IssuedItem{}, ErrConsumableNotFound
	}
	var (
		record  IssuedItem
		after   Consumable
		dateStr = s.dateOrToday(input.DateIssued)
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		after, err = s.issueTx(ctx, tx, input.ConsumableID, input.QuantityIssued)
		if err != nil {
			return err
		}
		id, err := tx.NextIssuedItemID(ctx)
		if err != nil {
			return err
		}
		record = IssuedItem{
			ID:             id,
			ConsumableID:   after.ID,
			ConsumableName: after.Name,
			QuantityIssued: input.QuantityIssued,
			IssuedTo:       input.IssuedTo,
			Department:     input.Department,
			DateIssued:     dateStr,
			CreatedAt:      s.now(),
		}
		return tx.PutIssuedItem(ctx, record)
	})
	if err != nil {
		return IssuedItem{}, err
	}
	s.notify(ctx, MovementIssue, after, -input.QuantityIssued)
	s.recordAudit(ctx, "ISSUE", CollectionIssuedItems, record.ID, map[string]any{"consumable_id": record.ConsumableID, "quantity": record.QuantityIssued, "actor": input.Actor})
	return record, nil
}

// IssueMultiple issues several consumables to one recipient. All lines
// succeed or none are written.
func (s *Service) IssueMultiple(ctx context.Context, input IssueMultipleInput) ([]IssuedItem, error) {
	if len(input.Lines) == 0 {
		return nil, ErrInvalidQuantity
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	dateStr := s.dateOrToday(input.DateIssued)
	var (
		records []IssuedItem
		touched map[string]Consumable
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records = make([]IssuedItem, 0, len(input.Lines))
		touched = make(map[string]Consumable, len(input.Lines))
		ids := make([]string, 0, len(input.Lines))
		for range input.Lines {
			id, err := tx.NextIssuedItemID(ctx)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		createdAt := s.now()
		for i, line := range input.Lines {
			after, err := s.issueTx(ctx, tx, line.ConsumableID, line.Quantity)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			touched[after.ID] = after
			record := IssuedItem{
				ID:             ids[i],
				ConsumableID:   after.ID,
				ConsumableName: after.Name,
				QuantityIssued: line.Quantity,
				IssuedTo:       input.IssuedTo,
				Department:     input.Department,
				DateIssued:     dateStr,
				IsMultiItem:    true,
				MultiItemIDs:   append([]string(nil), ids...),
				CreatedAt:      createdAt,
			}
			if err := tx.PutIssuedItem(ctx, record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		s.notify(ctx, MovementIssue, touched[record.ConsumableID], -record.QuantityIssued)
		s.recordAudit(ctx, "ISSUE", CollectionIssuedItems, record.ID, map[string]any{"consumable_id": record.ConsumableID, "quantity": record.QuantityIssued, "actor": input.Actor})
	}
	return records, nil
}

// UpdateIssuance edits recipient metadata of an issuance.
func (s *Service) UpdateIssuance(ctx context.Context, id string, input UpdateIssuanceInput) (IssuedItem, error) {
	var updated IssuedItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetIssuedItem(ctx, id)
		if err != nil {
			return err
		}
		current.IssuedTo = input.IssuedTo
		current.Department = input.Department
		if input.DateIssued != "" {
			current.DateIssued = input.DateIssued
		}
		updated = current
		return tx.PutIssuedItem(ctx, current)
	})
	if err != nil {
		return IssuedItem{}, err
	}
	s.recordAudit(ctx, "ISSUE_UPDATE", CollectionIssuedItems, id, nil)
	return updated, nil
}

// DeleteIssuance restores the issued quantity and deletes the record in one
// transaction. If the consumable no longer exists the record is still removed.
func (s *Service) DeleteIssuance(ctx context.Context, id string) error {
	return s.DeleteIssuanceGroup(ctx, []string{id})
}

// DeleteIssuanceGroup reverses and deletes several issuance records atomically.
func (s *Service) DeleteIssuanceGroup(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrIssuanceNotFound
	}
	type reversal struct {
		record   IssuedItem
		restored *Consumable
	}
	var reversals []reversal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reversals = reversals[:0]
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			record, err := tx.GetIssuedItem(ctx, id)
			if err != nil {
				return err
			}
			rev := reversal{record: record}
			current, err := tx.GetConsumable(ctx, record.ConsumableID)
			switch {
			case errors.Is(err, ErrConsumableNotFound):
			case err != nil:
				return err
			default:
				restored := Unissue(current, record.QuantityIssued)
				if err := tx.PutConsumable(ctx, restored); err != nil {
					return err
				}
				rev.restored = &restored
			}
			if err := tx.DeleteIssuedItem(ctx, id); err != nil {
				return err
			}
			reversals = append(reversals, rev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, rev := range reversals {
		if rev.restored != nil {
			s.notify(ctx, MovementUnissue, *rev.restored, rev.record.QuantityIssued)
		}
		s.recordAudit(ctx, "ISSUE_DELETE", CollectionIssuedItems, rev.record.ID, map[string]any{"consumable_id": rev.record.ConsumableID, "restored": rev.restored != nil})
	}
	return nil
}

// PostReceiptTx posts a received purchase into inventory inside the caller's
// transaction: a restock of a linked consumable, a new consumable, or a new
// fixed asset.
func (s *Service) PostReceiptTx(ctx context.Context, tx TxRepository, receipt Receipt) (ReceiptResult, error) {
	date := s.dateOrToday(receipt.Date)
	switch receipt.Kind {
	case ReceiptConsumable:
		if receipt.ConsumableID != "" {
			current, err := tx.GetConsumable(ctx, receipt.ConsumableID)
			if err != nil {
				return ReceiptResult{}, err
			}
			restocked := ApplyDelta(current, receipt.Quantity)
			if err := tx.PutConsumable(ctx, restocked); err != nil {
				return ReceiptResult{}, err
			}
			return ReceiptResult{Consumable: &restocked}, nil
		}
		id, err := tx.NextConsumableID(ctx)
		if err != nil {
			return ReceiptResult{}, err
		}
		created := Consumable{
			ID:            id,
			Name:          receipt.Item,
			Description:   defaultString(receipt.Category, "General"),
			UnitPrice:     receipt.UnitPrice,
			Quantity:      receipt.Quantity,
			ReorderLevel:  stock.DefaultReorderLevel(receipt.Quantity),
			DatePurchased: date,
		}.Recompute()
		if err := tx.PutConsumable(ctx, created); err != nil {
			return ReceiptResult{}, err
		}
		return ReceiptResult{Consumable: &created, Created: true}, nil
	case ReceiptFixedAsset:
		id, err := tx.NextFixedAssetID(ctx)
		if err != nil {
			return ReceiptResult{}, err
		}
		class := defaultString(receipt.AssetClass, "General")
		asset := FixedAsset{
			ID:                id,
			AssetNumber:       id,
			Name:              receipt.Item,
			Serial:            defaultString(receipt.SerialNumber, fmt.Sprintf("SN-%d", s.now().UnixMilli())),
			Category:          class,
			Location:          "Main Office",
			AssetClass:        class,
			Status:            AssetOperational,
			QtyFunctioning:    receipt.Quantity,
			QtyNotFunctioning: 0,
			AcquisitionCost:   receipt.Cost,
			DateAcquired:      date,
		}
		if err := tx.PutFixedAsset(ctx, asset); err != nil {
			return ReceiptResult{}, err
		}
		return ReceiptResult{FixedAsset: &asset, Created: true}, nil
	default:
		return ReceiptResult{}, fmt.Errorf("inventory: unknown receipt kind %q", receipt.Kind)
	}
}

// ObserveReceipt reports a committed receipt posting.
func (s *Service) ObserveReceipt(ctx context.Context, result ReceiptResult, quantity int) {
	if result.Consumable != nil {
		s.notify(ctx, MovementReceipt, *result.Consumable, quantity)
	}
}

func (s *Service) issueTx(ctx context.Context, tx TxRepository, consumableID string, qty int) (Consumable, error) {
	current, err := tx.GetConsumable(ctx, consumableID)
	if err != nil {
		return Consumable{}, err
	}
	if current.Discontinued {
		return Consumable{}, ErrDiscontinued
	}
	if !s.allowNeg && qty > current.Quantity {
		return Consumable{}, fmt.Errorf("%w: available %d, requested %d", ErrNegativeStock, current.Quantity, qty)
	}
	after := Issue(current, qty)
	if err := tx.PutConsumable(ctx, after); err != nil {
		return Consumable{}, err
	}
	return after, nil
}

func (s *Service) validateConsumable(input ConsumableInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return ErrNameRequired
	}
	if input.UnitPrice < 0 {
		return ErrInvalidUnitCost
	}
	if input.ReorderLevel < 0 || input.ReorderTime < 0 {
		return fmt.Errorf("inventory: reorder values must be >= 0: %w", ErrInvalidQuantity)
	}
	if !s.allowNeg && input.Quantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

func (s *Service) notify(ctx context.Context, kind string, c Consumable, delta int) {
	if s.observer == nil {
		return
	}
	s.observer.HandleStockMovement(ctx, MovementEvent{
		Kind:         kind,
		ConsumableID: c.ID,
		Delta:        delta,
		Quantity:     c.Quantity,
		ReorderLevel: c.ReorderLevel,
		At:           s.now(),
	})
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: entityID, Meta: meta})
}

func (s *Service) dateOrToday(date string) string {
	if date != "" {
		return date
	}
	return s.now().Format(shared.DateLayout)
}

func applyConsumableInput(c Consumable, input ConsumableInput) Consumable {
	c.Name = strings.TrimSpace(input.Name)
	c.Description = input.Description
	c.UnitPrice = input.UnitPrice
	c.Quantity = input.Quantity
	c.ReorderLevel = input.ReorderLevel
	c.ReorderTime = input.ReorderTime
	c.Discontinued = input.Discontinued
	c.DatePurchased = input.DatePurchased
	return c
}

func applyFixedAssetInput(a FixedAsset, input FixedAssetInput) FixedAsset {
	a.Name = strings.TrimSpace(input.Name)
	a.Serial = input.Serial
	a.Category = input.Category
	a.Location = input.Location
	a.AssetClass = input.AssetClass
	a.Status = input.Status
	if a.Status == "" {
		a.Status = AssetOperational
	}
	a.QtyFunctioning = input.QtyFunctioning
	a.QtyNotFunctioning = input.QtyNotFunctioning
	a.AcquisitionCost = input.AcquisitionCost
	a.DateAcquired = input.DateAcquired
	return a
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

package suppliers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// List returns suppliers newest first, optionally filtered by search.
func (s *Service) List(ctx context.Context, search string) ([]Supplier, error) {
	all, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Supplier, 0, len(all))
	for _, sup := range all {
		if shared.MatchesSearch(search, sup.Name, sup.ContactPerson, sup.TIN, sup.Email) {
			out = append(out, sup)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Get returns one supplier with its items.
func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// Create validates and stores a new supplier.
func (s *Service) Create(ctx context.Context, input SupplierInput) (Supplier, error) {
	if err := s.validate(input); err != nil {
		return Supplier{}, err
	}
	sup := applySupplierInput(Supplier{ID: uuid.NewString(), CreatedAt: s.now()}, input)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PutSupplier(ctx, sup)
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_CREATE", CollectionSuppliers, sup.ID, map[string]any{"name": sup.Name})
	return sup, nil
}

// Update replaces supplier details and items.
func (s *Service) Update(ctx context.Context, id string, input SupplierInput) (Supplier, error) {
	if err := s.validate(input); err != nil {
		return Supplier{}, err
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSupplier(ctx, id)
		if err != nil {
			return err
		}
		updated = applySupplierInput(current, input)
		return tx.PutSupplier(ctx, updated)
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_UPDATE", CollectionSuppliers, id, nil)
	return updated, nil
}

// Delete removes a supplier record.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteSupplier(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "SUPPLIER_DELETE", CollectionSuppliers, id, nil)
	return nil
}

// UpdateItemVariants replaces one item of a supplier, variants included.
func (s *Service) UpdateItemVariants(ctx context.Context, supplierID, itemID string, item ItemWithVariants) (Supplier, error) {
	if err := validateItem(item); err != nil {
		return Supplier{}, err
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSupplier(ctx, supplierID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range current.Items {
			if current.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrItemNotFound
		}
		item.ID = itemID
		current.Items[idx] = withIDs(item)
		updated = current
		return tx.PutSupplier(ctx, current)
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_ITEM_UPDATE", CollectionSuppliers, supplierID, map[string]any{"item_id": itemID})
	return updated, nil
}

// AddCurrentPurchase opens a pending order line with a supplier.
func (s *Service) AddCurrentPurchase(ctx context.Context, input CurrentPurchaseInput) (CurrentPurchase, error) {
	if input.Quantity < 1 {
		return CurrentPurchase{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Item) == "" {
		return CurrentPurchase{}, fmt.Errorf("%w: item is required", ErrInvalidInput)
	}
	var created CurrentPurchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.GetSupplier(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		created = CurrentPurchase{
			ID:           uuid.NewString(),
			SupplierID:   sup.ID,
			SupplierName: sup.Name,
			Item:         strings.TrimSpace(input.Item),
			Variant:      input.Variant,
			UnitPrice:    input.UnitPrice,
			Quantity:     input.Quantity,
			Total:        stock.LineTotal(input.UnitPrice, input.Quantity),
			Status:       OrderPending,
			CreatedAt:    s.now(),
		}
		return tx.PutCurrentPurchase(ctx, created)
	})
	if err != nil {
		return CurrentPurchase{}, err
	}
	s.recordAudit(ctx, "CURRENT_PURCHASE_ADD", CollectionCurrentPurchases, created.ID, map[string]any{"supplier_id": created.SupplierID, "total": created.Total})
	return created, nil
}

// ListCurrentPurchases returns open lines, newest first.
func (s *Service) ListCurrentPurchases(ctx context.Context) ([]CurrentPurchase, error) {
	items, err := s.repo.ListCurrentPurchases(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// MarkOrdered flags lines as ordered in one transaction. Lines already
// ordered keep their first order time.
func (s *Service) MarkOrdered(ctx context.Context, ids ...string) ([]CurrentPurchase, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no purchases selected", ErrInvalidInput)
	}
	at := s.now()
	var updated []CurrentPurchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updated = make([]CurrentPurchase, 0, len(ids))
		for _, id := range ids {
			p, err := tx.GetCurrentPurchase(ctx, id)
			if err != nil {
				return err
			}
			if p.Status != OrderOrdered {
				p.Status = OrderOrdered
				p.OrderedAt = &at
				if err := tx.PutCurrentPurchase(ctx, p); err != nil {
					return err
				}
			}
			updated = append(updated, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, p := range updated {
		s.recordAudit(ctx, "CURRENT_PURCHASE_ORDER", CollectionCurrentPurchases, p.ID, nil)
	}
	return updated, nil
}

// Receive moves a current purchase into purchase history atomically.
func (s *Service) Receive(ctx context.Context, id string) (PurchaseHistory, error) {
	var record PurchaseHistory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetCurrentPurchase(ctx, id)
		if err != nil {
			return err
		}
		orderedAt := p.CreatedAt
		if p.OrderedAt != nil {
			orderedAt = *p.OrderedAt
		}
		record = PurchaseHistory{
			ID:           uuid.NewString(),
			SupplierID:   p.SupplierID,
			SupplierName: p.SupplierName,
			Item:         p.Item,
			Variant:      p.Variant,
			UnitPrice:    p.UnitPrice,
			Quantity:     p.Quantity,
			Total:        p.Total,
			OrderedAt:    orderedAt,
			ReceivedAt:   s.now(),
		}
		if err := tx.PutHistory(ctx, record); err != nil {
			return err
		}
		return tx.DeleteCurrentPurchase(ctx, id)
	})
	if err != nil {
		return PurchaseHistory{}, err
	}
	s.recordAudit(ctx, "CURRENT_PURCHASE_RECEIVE", CollectionPurchaseHistory, record.ID, map[string]any{"current_purchase_id": id})
	return record, nil
}

// DeleteCurrentPurchase drops an open order line.
func (s *Service) DeleteCurrentPurchase(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteCurrentPurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "CURRENT_PURCHASE_DELETE", CollectionCurrentPurchases, id, nil)
	return nil
}

// History returns received lines, most recently received first.
func (s *Service) History(ctx context.Context) ([]PurchaseHistory, error) {
	items, err := s.repo.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	sortHistory(items)
	return items, nil
}

// IssueToCrew records every line for one crew member in one transaction.
func (s *Service) IssueToCrew(ctx context.Context, input CrewIssueInput) ([]CrewIssue, error) {
	if err := validateCrewIssue(input); err != nil {
		return nil, err
	}
	created := make([]CrewIssue, 0, len(input.Lines))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created = created[:0]
		now := s.now()
		for _, line := range input.Lines {
			issue := CrewIssue{
				ID:         uuid.NewString(),
				SupplierID: line.SupplierID,
				ItemName:   strings.TrimSpace(line.ItemName),
				Variant:    line.Variant,
				Quantity:   line.Quantity,
				CrewName:   strings.TrimSpace(input.CrewName),
				IssuedDate: input.IssuedDate,
				CreatedAt:  now,
			}
			if err := tx.PutCrewIssue(ctx, issue); err != nil {
				return err
			}
			created = append(created, issue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, issue := range created {
		s.recordAudit(ctx, "CREW_ISSUE", CollectionCrewIssues, issue.ID, map[string]any{"crew": issue.CrewName, "quantity": issue.Quantity})
	}
	return created, nil
}

// CrewIssues lists issues matching filter, in insertion order.
func (s *Service) CrewIssues(ctx context.Context, filter CrewIssueFilter) ([]CrewIssue, error) {
	all, err := s.repo.ListCrewIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CrewIssue, 0, len(all))
	for _, issue := range all {
		if !shared.MatchesSearch(filter.Search, issue.ItemName, issue.CrewName) {
			continue
		}
		if !filter.Range.Contains(issue.IssuedDate) {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

// UpdateCrewIssueQuantity corrects the quantity of one issue.
func (s *Service) UpdateCrewIssueQuantity(ctx context.Context, id string, quantity int) (CrewIssue, error) {
	if quantity <= 0 {
		return CrewIssue{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	var updated CrewIssue
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		issue, err := tx.GetCrewIssue(ctx, id)
		if err != nil {
			return err
		}
		issue.Quantity = quantity
		updated = issue
		return tx.PutCrewIssue(ctx, issue)
	})
	if err != nil {
		return CrewIssue{}, err
	}
	s.recordAudit(ctx, "CREW_ISSUE_UPDATE", CollectionCrewIssues, id, map[string]any{"quantity": quantity})
	return updated, nil
}

// DeleteCrewIssue removes one crew issue record.
func (s *Service) DeleteCrewIssue(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteCrewIssue(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "CREW_ISSUE_DELETE", CollectionCrewIssues, id, nil)
	return nil
}

// Stock derives the supplier stock view from history and crew issues.
func (s *Service) Stock(ctx context.Context, filter StockFilter) ([]SupplierStock, error) {
	history, err := s.repo.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := s.repo.ListCrewIssues(ctx)
	if err != nil {
		return nil, err
	}
	sortHistory(history)
	rows := DeriveStock(history, issues)
	out := make([]SupplierStock, 0, len(rows))
	for _, row := range rows {
		if !shared.MatchesSearch(filter.Search, row.ItemName, row.Variant) {
			continue
		}
		if filter.SupplierID != "" && row.SupplierID != filter.SupplierID {
			continue
		}
		if !filter.Range.Contains(row.DatePurchased) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func applySupplierInput(sup Supplier, input SupplierInput) Supplier {
	sup.Name = strings.TrimSpace(input.Name)
	sup.TIN = input.TIN
	sup.ContactPerson = input.ContactPerson
	sup.Phone = input.Phone
	sup.Email = input.Email
	sup.Address = input.Address
	sup.Items = make([]ItemWithVariants, 0, len(input.Items))
	for _, item := range input.Items {
		sup.Items = append(sup.Items, withIDs(item))
	}
	return sup
}

func withIDs(item ItemWithVariants) ItemWithVariants {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	variants := make([]Variant, 0, len(item.Variants))
	for _, v := range item.Variants {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		variants = append(variants, v)
	}
	item.Variants = variants
	return item
}

func sortHistory(items []PurchaseHistory) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].ReceivedAt.After(items[j].ReceivedAt) })
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: entityID, Meta: meta})
}

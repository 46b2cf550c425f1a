package suppliers

import (
	"context"
	"errors"

	"github.com/isc-maritime/stockroom/internal/docstore"
)

type Repository interface {
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	ListCurrentPurchases(ctx context.Context) ([]CurrentPurchase, error)
	ListHistory(ctx context.Context) ([]PurchaseHistory, error)
	ListCrewIssues(ctx context.Context) ([]CrewIssue, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository groups the writes the service performs in one transaction.
type TxRepository interface {
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	PutSupplier(ctx context.Context, s Supplier) error
	DeleteSupplier(ctx context.Context, id string) error

	GetCurrentPurchase(ctx context.Context, id string) (CurrentPurchase, error)
	PutCurrentPurchase(ctx context.Context, p CurrentPurchase) error
	DeleteCurrentPurchase(ctx context.Context, id string) error
	PutHistory(ctx context.Context, h PurchaseHistory) error

	GetCrewIssue(ctx context.Context, id string) (CrewIssue, error)
	PutCrewIssue(ctx context.Context, issue CrewIssue) error
	DeleteCrewIssue(ctx context.Context, id string) error
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return docstore.ListAs(ctx, r.store, CollectionSuppliers, func(s *Supplier, id string) { s.ID = id })
}

func (r *repository) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return getSupplier(ctx, r.store, id)
}

func (r *repository) ListCurrentPurchases(ctx context.Context) ([]CurrentPurchase, error) {
	return docstore.ListAs(ctx, r.store, CollectionCurrentPurchases, func(p *CurrentPurchase, id string) { p.ID = id })
}

func (r *repository) ListHistory(ctx context.Context) ([]PurchaseHistory, error) {
	return docstore.ListAs(ctx, r.store, CollectionPurchaseHistory, func(h *PurchaseHistory, id string) { h.ID = id })
}

func (r *repository) ListCrewIssues(ctx context.Context) ([]CrewIssue, error) {
	return docstore.ListAs(ctx, r.store, CollectionCrewIssues, func(i *CrewIssue, id string) { i.ID = id })
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx docstore.Tx
}

func (t *txRepository) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return getSupplier(ctx, t.tx, id)
}

func (t *txRepository) PutSupplier(ctx context.Context, s Supplier) error {
	return docstore.PutAs(ctx, t.tx, CollectionSuppliers, s.ID, s)
}

func (t *txRepository) DeleteSupplier(ctx context.Context, id string) error {
	return notFound(t.tx.Delete(ctx, CollectionSuppliers, id), ErrSupplierNotFound)
}

func (t *txRepository) GetCurrentPurchase(ctx context.Context, id string) (CurrentPurchase, error) {
	p, err := docstore.GetAs[CurrentPurchase](ctx, t.tx, CollectionCurrentPurchases, id)
	if err != nil {
		return CurrentPurchase{}, notFound(err, ErrPurchaseNotFound)
	}
	p.ID = id
	return p, nil
}

func (t *txRepository) PutCurrentPurchase(ctx context.Context, p CurrentPurchase) error {
	return docstore.PutAs(ctx, t.tx, CollectionCurrentPurchases, p.ID, p)
}

func (t *txRepository) DeleteCurrentPurchase(ctx context.Context, id string) error {
	return notFound(t.tx.Delete(ctx, CollectionCurrentPurchases, id), ErrPurchaseNotFound)
}

func (t *txRepository) PutHistory(ctx context.Context, h PurchaseHistory) error {
	return docstore.PutAs(ctx, t.tx, CollectionPurchaseHistory, h.ID, h)
}

func (t *txRepository) GetCrewIssue(ctx context.Context, id string) (CrewIssue, error) {
	issue, err := docstore.GetAs[CrewIssue](ctx, t.tx, CollectionCrewIssues, id)
	if err != nil {
		return CrewIssue{}, notFound(err, ErrIssueNotFound)
	}
	issue.ID = id
	return issue, nil
}

func (t *txRepository) PutCrewIssue(ctx context.Context, issue CrewIssue) error {
	return docstore.PutAs(ctx, t.tx, CollectionCrewIssues, issue.ID, issue)
}

func (t *txRepository) DeleteCrewIssue(ctx context.Context, id string) error {
	return notFound(t.tx.Delete(ctx, CollectionCrewIssues, id), ErrIssueNotFound)
}

func getSupplier(ctx context.Context, r docstore.Reader, id string) (Supplier, error) {
	s, err := docstore.GetAs[Supplier](ctx, r, CollectionSuppliers, id)
	if err != nil {
		return Supplier{}, notFound(err, ErrSupplierNotFound)
	}
	s.ID = id
	return s, nil
}

func notFound(err, target error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return target
	}
	return err
}

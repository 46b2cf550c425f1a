package procurement

import (
	"context"
	"errors"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/inventory"
)

// Repository provides document store backed persistence.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs a repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations. Inventory returns the
// inventory view of the same transaction so receipts post atomically.
type TxRepository interface {
	GetPurchase(ctx context.Context, id string) (Purchase, error)
	PutPurchase(ctx context.Context, p Purchase) error
	DeletePurchase(ctx context.Context, id string) error
	Inventory() inventory.TxRepository
}

type txRepo struct {
	tx  docstore.Tx
	inv inventory.TxRepository
}

// WithTx wraps callback in a store transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx, inv: inventory.NewTxRepository(tx)})
	})
}

// ListPurchases returns purchases in insertion order.
func (r *Repository) ListPurchases(ctx context.Context) ([]Purchase, error) {
	return docstore.ListAs(ctx, r.store, CollectionPurchases, func(p *Purchase, id string) { p.ID = id })
}

// GetPurchase loads one purchase.
func (r *Repository) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	p, err := docstore.GetAs[Purchase](ctx, r.store, CollectionPurchases, id)
	if err != nil {
		return Purchase{}, mapNotFound(err)
	}
	p.ID = id
	return p, nil
}

func (r *txRepo) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	p, err := docstore.GetAs[Purchase](ctx, r.tx, CollectionPurchases, id)
	if err != nil {
		return Purchase{}, mapNotFound(err)
	}
	p.ID = id
	return p, nil
}

func (r *txRepo) PutPurchase(ctx context.Context, p Purchase) error {
	return docstore.PutAs(ctx, r.tx, CollectionPurchases, p.ID, p)
}

func (r *txRepo) DeletePurchase(ctx context.Context, id string) error {
	return mapNotFound(r.tx.Delete(ctx, CollectionPurchases, id))
}

func (r *txRepo) Inventory() inventory.TxRepository {
	return r.inv
}

func mapNotFound(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrPurchaseNotFound
	}
	return err
}

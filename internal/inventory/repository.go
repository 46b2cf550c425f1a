package inventory

import (
	"context"
	"errors"

	"github.com/isc-maritime/stockroom/internal/docstore"
)

// Repository persists inventory records in the document store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetConsumable(ctx context.Context, id string) (Consumable, error)
	PutConsumable(ctx context.Context, c Consumable) error
	DeleteConsumable(ctx context.Context, id string) error
	NextConsumableID(ctx context.Context) (string, error)

	GetFixedAsset(ctx context.Context, id string) (FixedAsset, error)
	PutFixedAsset(ctx context.Context, a FixedAsset) error
	DeleteFixedAsset(ctx context.Context, id string) error
	NextFixedAssetID(ctx context.Context) (string, error)

	GetIssuedItem(ctx context.Context, id string) (IssuedItem, error)
	PutIssuedItem(ctx context.Context, item IssuedItem) error
	DeleteIssuedItem(ctx context.Context, id string) error
	NextIssuedItemID(ctx context.Context) (string, error)
}

type txRepo struct {
	tx docstore.Tx
}

// NewTxRepository binds inventory operations to an open store transaction so
// other modules can post inventory changes inside their own unit of work.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx executes the callback inside a store transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *Repository) ListConsumables(ctx context.Context) ([]Consumable, error) {
	return docstore.ListAs(ctx, r.store, CollectionConsumables, func(c *Consumable, id string) { c.ID = id })
}

func (r *Repository) GetConsumable(ctx context.Context, id string) (Consumable, error) {
	c, err := docstore.GetAs[Consumable](ctx, r.store, CollectionConsumables, id)
	if err != nil {
		return Consumable{}, mapNotFound(err, ErrConsumableNotFound)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) ListFixedAssets(ctx context.Context) ([]FixedAsset, error) {
	return docstore.ListAs(ctx, r.store, CollectionFixedAssets, func(a *FixedAsset, id string) { a.ID = id })
}

func (r *Repository) GetFixedAsset(ctx context.Context, id string) (FixedAsset, error) {
	a, err := docstore.GetAs[FixedAsset](ctx, r.store, CollectionFixedAssets, id)
	if err != nil {
		return FixedAsset{}, mapNotFound(err, ErrFixedAssetNotFound)
	}
	a.ID = id
	return a, nil
}

func (r *Repository) ListIssuedItems(ctx context.Context) ([]IssuedItem, error) {
	return docstore.ListAs(ctx, r.store, CollectionIssuedItems, func(i *IssuedItem, id string) { i.ID = id })
}

func (r *Repository) GetIssuedItem(ctx context.Context, id string) (IssuedItem, error) {
	item, err := docstore.GetAs[IssuedItem](ctx, r.store, CollectionIssuedItems, id)
	if err != nil {
		return IssuedItem{}, mapNotFound(err, ErrIssuanceNotFound)
	}
	item.ID = id
	return item, nil
}

func (r *txRepo) GetConsumable(ctx context.Context, id string) (Consumable, error) {
	c, err := docstore.GetAs[Consumable](ctx, r.tx, CollectionConsumables, id)
	if err != nil {
		return Consumable{}, mapNotFound(err, ErrConsumableNotFound)
	}
	c.ID = id
	return c, nil
}

func (r *txRepo) PutConsumable(ctx context.Context, c Consumable) error {
	return docstore.PutAs(ctx, r.tx, CollectionConsumables, c.ID, c.Recompute())
}

func (r *txRepo) DeleteConsumable(ctx context.Context, id string) error {
	return mapNotFound(r.tx.Delete(ctx, CollectionConsumables, id), ErrConsumableNotFound)
}

func (r *txRepo) NextConsumableID(ctx context.Context) (string, error) {
	return docstore.NextID(ctx, r.tx, CollectionConsumables, PrefixConsumable)
}

func (r *txRepo) GetFixedAsset(ctx context.Context, id string) (FixedAsset, error) {
	a, err := docstore.GetAs[FixedAsset](ctx, r.tx, CollectionFixedAssets, id)
	if err != nil {
		return FixedAsset{}, mapNotFound(err, ErrFixedAssetNotFound)
	}
	a.ID = id
	return a, nil
}

func (r *txRepo) PutFixedAsset(ctx context.Context, a FixedAsset) error {
	return docstore.PutAs(ctx, r.tx, CollectionFixedAssets, a.ID, a)
}

func (r *txRepo) DeleteFixedAsset(ctx context.Context, id string) error {
	return mapNotFound(r.tx.Delete(ctx, CollectionFixedAssets, id), ErrFixedAssetNotFound)
}

func (r *txRepo) NextFixedAssetID(ctx context.Context) (string, error) {
	return docstore.NextID(ctx, r.tx, CollectionFixedAssets, PrefixFixedAsset)
}

func (r *txRepo) GetIssuedItem(ctx context.Context, id string) (IssuedItem, error) {
	item, err := docstore.GetAs[IssuedItem](ctx, r.tx, CollectionIssuedItems, id)
	if err != nil {
		return IssuedItem{}, mapNotFound(err, ErrIssuanceNotFound)
	}
	item.ID = id
	return item, nil
}

func (r *txRepo) PutIssuedItem(ctx context.Context, item IssuedItem) error {
	return docstore.PutAs(ctx, r.tx, CollectionIssuedItems, item.ID, item)
}

func (r *txRepo) DeleteIssuedItem(ctx context.Context, id string) error {
	return mapNotFound(r.tx.Delete(ctx, CollectionIssuedItems, id), ErrIssuanceNotFound)
}

func (r *txRepo) NextIssuedItemID(ctx context.Context) (string, error) {
	return docstore.NextID(ctx, r.tx, CollectionIssuedItems, PrefixIssuance)
}

func mapNotFound(err, target error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return target
	}
	return err
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

var errWrite = errors.New("write failed")

type faultyRepo struct {
	*Repository
	failOn string
}

func (r *faultyRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.Repository.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return fn(ctx, &faultyTx{TxRepository: tx, failOn: r.failOn})
	})
}

type faultyTx struct {
	TxRepository
	failOn string
}

func (t *faultyTx) PutIssuedItem(ctx context.Context, item IssuedItem) error {
	if t.failOn == "putIssued" {
		return errWrite
	}
	return t.TxRepository.PutIssuedItem(ctx, item)
}

func (t *faultyTx) PutConsumable(ctx context.Context, c Consumable) error {
	if t.failOn == "putConsumable" {
		return errWrite
	}
	return t.TxRepository.PutConsumable(ctx, c)
}

type recordingObserver struct {
	events []MovementEvent
}

func (o *recordingObserver) HandleStockMovement(ctx context.Context, evt MovementEvent) {
	o.events = append(o.events, evt)
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var fixedNow = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(docstore.NewMemory(nil))
	svc := NewService(repo, &memoryAudit{}, cfg, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func seedConsumable(t *testing.T, svc *Service, name string, qty, reorder int) Consumable {
	t.Helper()
	c, err := svc.CreateConsumable(context.Background(), ConsumableInput{
		Name:          name,
		Description:   "Deck",
		UnitPrice:     2.5,
		Quantity:      qty,
		ReorderLevel:  reorder,
		DatePurchased: "2024-05-01",
	})
	require.NoError(t, err)
	return c
}

func TestCreateConsumableDerivesFields(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	first := seedConsumable(t, svc, "Mooring rope", 15, 5)
	second := seedConsumable(t, svc, "Deck paint", 0, 3)

	require.Equal(t, "CON-001", first.ID)
	require.Equal(t, "CON-002", second.ID)
	require.Equal(t, 37.5, first.InventoryValue)
	require.Equal(t, stock.StatusInStock, first.Status)
	require.Equal(t, stock.StatusOutOfStock, second.Status)

	updated, err := svc.UpdateConsumable(context.Background(), first.ID, ConsumableInput{Name: "Mooring rope", UnitPrice: 4, Quantity: 5, ReorderLevel: 5})
	require.NoError(t, err)
	require.Equal(t, 20.0, updated.InventoryValue)
	require.Equal(t, stock.StatusLowStock, updated.Status)

	_, err = svc.UpdateConsumable(context.Background(), "CON-999", ConsumableInput{Name: "x"})
	require.ErrorIs(t, err, ErrConsumableNotFound)
	_, err = svc.CreateConsumable(context.Background(), ConsumableInput{Name: " "})
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestIssueDeductsAndDeleteRestores(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Gloves", 12, 5)

	record, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 8, IssuedTo: "J. Cruz", Department: "Deck"})
	require.NoError(t, err)
	require.Equal(t, "ISSUE-001", record.ID)
	require.Equal(t, "Gloves", record.ConsumableName)
	require.Equal(t, "2024-05-14", record.DateIssued)

	after, err := svc.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 4, after.Quantity)
	require.Equal(t, stock.StatusLowStock, after.Status)
	require.Equal(t, 10.0, after.InventoryValue)

	require.NoError(t, svc.DeleteIssuance(ctx, record.ID))
	restored, err := svc.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Quantity, restored.Quantity)
	require.Equal(t, c.Status, restored.Status)
	require.Equal(t, c.InventoryValue, restored.InventoryValue)

	_, err = svc.GetIssuedItem(ctx, record.ID)
	require.ErrorIs(t, err, ErrIssuanceNotFound)
}

func TestIssueGuards(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Flares", 3, 1)

	_, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 0, IssuedTo: "Bridge"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 4, IssuedTo: "Bridge"})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Contains(t, err.Error(), "available 3, requested 4")

	_, err = svc.IssueItem(ctx, IssueInput{ConsumableID: "CON-404", QuantityIssued: 1, IssuedTo: "Bridge"})
	require.ErrorIs(t, err, ErrConsumableNotFound)

	_, err = svc.UpdateConsumable(ctx, c.ID, ConsumableInput{Name: "Flares", Quantity: 3, ReorderLevel: 1, Discontinued: true})
	require.NoError(t, err)
	_, err = svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 1, IssuedTo: "Bridge"})
	require.ErrorIs(t, err, ErrDiscontinued)
}

func TestIssueAllowsNegativeWhenConfigured(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{AllowNegativeStock: true})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Rags", 2, 0)

	_, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 5, IssuedTo: "Engine"})
	require.NoError(t, err)
	after, err := svc.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, -3, after.Quantity)
	require.Equal(t, stock.StatusLowStock, after.Status)
}

func TestIssueWriteFailureLeavesConsumableUnchanged(t *testing.T) {
	svc, repo := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Filters", 10, 2)

	svc.repo = &faultyRepo{Repository: repo, failOn: "putIssued"}
	_, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 4, IssuedTo: "Engine"})
	require.ErrorIs(t, err, errWrite)

	after, err := repo.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 10, after.Quantity)
	items, err := repo.ListIssuedItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDeleteIssuanceReversalFailureKeepsRecord(t *testing.T) {
	svc, repo := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Batteries", 10, 2)
	record, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 3, IssuedTo: "Radio room"})
	require.NoError(t, err)

	svc.repo = &faultyRepo{Repository: repo, failOn: "putConsumable"}
	require.ErrorIs(t, svc.DeleteIssuance(ctx, record.ID), errWrite)

	kept, err := repo.GetIssuedItem(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, 3, kept.QuantityIssued)
	after, err := repo.GetConsumable(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 7, after.Quantity)
}

func TestDeleteIssuanceWhenConsumableRemoved(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	c := seedConsumable(t, svc, "Tape", 5, 1)
	record, err := svc.IssueItem(ctx, IssueInput{ConsumableID: c.ID, QuantityIssued: 2, IssuedTo: "Galley"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteConsumable(ctx, c.ID))

	require.NoError(t, svc.DeleteIssuance(ctx, record.ID))
	_, err = svc.GetIssuedItem(ctx, record.ID)
	require.ErrorIs(t, err, ErrIssuanceNotFound)
}

func TestIssueMultipleSharesSiblingIDs(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	observer := &recordingObserver{}
	svc.observer = observer
	rope := seedConsumable(t, svc, "Rope", 10, 2)
	paint := seedConsumable(t, svc, "Paint", 6, 2)

	records, err := svc.IssueMultiple(ctx, IssueMultipleInput{
		IssuedTo:   "Bosun",
		Department: "Deck",
		DateIssued: "2024-05-10",
		Lines:      []IssueLine{{ConsumableID: rope.ID, Quantity: 4}, {ConsumableID: paint.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"ISSUE-001", "ISSUE-002"}, records[0].MultiItemIDs)
	require.Equal(t, records[0].MultiItemIDs, records[1].MultiItemIDs)
	require.True(t, records[1].IsMultiItem)
	require.Len(t, observer.events, 2)
	require.Equal(t, -4, observer.events[0].Delta)
	require.Equal(t, 6, observer.events[0].Quantity)

	require.NoError(t, svc.DeleteIssuanceGroup(ctx, records[0].MultiItemIDs))
	after, err := svc.GetConsumable(ctx, rope.ID)
	require.NoError(t, err)
	require.Equal(t, 10, after.Quantity)
	remaining, err := svc.ListIssuedItems(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestIssueMultipleIsAtomic(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	rope := seedConsumable(t, svc, "Rope", 10, 2)
	paint := seedConsumable(t, svc, "Paint", 1, 2)

	_, err := svc.IssueMultiple(ctx, IssueMultipleInput{
		IssuedTo: "Bosun",
		Lines:    []IssueLine{{ConsumableID: rope.ID, Quantity: 4}, {ConsumableID: paint.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrNegativeStock)

	after, err := svc.GetConsumable(ctx, rope.ID)
	require.NoError(t, err)
	require.Equal(t, 10, after.Quantity)
	items, err := svc.ListIssuedItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestIssueMultipleSameItemTwiceChecksRunningBalance(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	rope := seedConsumable(t, svc, "Rope", 5, 1)

	_, err := svc.IssueMultiple(ctx, IssueMultipleInput{
		IssuedTo: "Bosun",
		Lines:    []IssueLine{{ConsumableID: rope.ID, Quantity: 3}, {ConsumableID: rope.ID, Quantity: 3}},
	})
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestListConsumablesFilters(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	seedConsumable(t, svc, "Mooring rope", 5, 5)
	seedConsumable(t, svc, "Deck paint", 2, 5)
	seedConsumable(t, svc, "Gloves", 40, 5)
	_, err := svc.CreateConsumable(ctx, ConsumableInput{Name: "Old flares", Description: "Safety", Quantity: 0, ReorderLevel: 2, Discontinued: true, DatePurchased: "2023-01-02"})
	require.NoError(t, err)

	reorder, err := svc.ListConsumables(ctx, ConsumableFilter{ReorderOnly: true})
	require.NoError(t, err)
	require.Len(t, reorder, 2)
	require.Equal(t, "Mooring rope", reorder[0].Name)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "Deck paint", low[0].Name)

	found, err := svc.ListConsumables(ctx, ConsumableFilter{Search: "ROPE"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	rng, err := shared.ParseDateRange("2023-01-01", "2023-12-31")
	require.NoError(t, err)
	dated, err := svc.ListConsumables(ctx, ConsumableFilter{Range: rng, Category: "Safety"})
	require.NoError(t, err)
	require.Len(t, dated, 1)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Deck", "Safety"}, categories)
}

func TestFixedAssetLifecycle(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	radar, err := svc.CreateFixedAsset(ctx, FixedAssetInput{Name: "Radar", Serial: "RD-9", AssetClass: "Navigation", QtyFunctioning: 1, DateAcquired: "2023-06-01"})
	require.NoError(t, err)
	require.Equal(t, "FA-001", radar.AssetNumber)
	require.Equal(t, AssetOperational, radar.Status)
	_, err = svc.CreateFixedAsset(ctx, FixedAssetInput{Name: "Lifeboat", AssetClass: "Safety", Status: AssetMaintenance, QtyFunctioning: 1, QtyNotFunctioning: 1})
	require.NoError(t, err)

	desc, err := svc.ListFixedAssets(ctx, FixedAssetFilter{Descending: true})
	require.NoError(t, err)
	require.Equal(t, "FA-002", desc[0].AssetNumber)

	nav, err := svc.ListFixedAssets(ctx, FixedAssetFilter{Search: "rd-9"})
	require.NoError(t, err)
	require.Len(t, nav, 1)

	maint, err := svc.ListFixedAssets(ctx, FixedAssetFilter{Status: AssetMaintenance})
	require.NoError(t, err)
	require.Len(t, maint, 1)
	require.Equal(t, 2, maint[0].TotalUnits())

	updated, err := svc.UpdateFixedAsset(ctx, radar.ID, FixedAssetInput{Name: "Radar", Status: AssetNonOperational, QtyNotFunctioning: 1})
	require.NoError(t, err)
	require.Equal(t, AssetNonOperational, updated.Status)
	require.NoError(t, svc.DeleteFixedAsset(ctx, radar.ID))
	require.ErrorIs(t, svc.DeleteFixedAsset(ctx, radar.ID), ErrFixedAssetNotFound)
}

func TestPostReceiptTx(t *testing.T) {
	svc, repo := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	rope := seedConsumable(t, svc, "Rope", 3, 5)

	var restock, created, asset ReceiptResult
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		restock, err = svc.PostReceiptTx(ctx, tx, Receipt{Kind: ReceiptConsumable, ConsumableID: rope.ID, Quantity: 10})
		if err != nil {
			return err
		}
		created, err = svc.PostReceiptTx(ctx, tx, Receipt{Kind: ReceiptConsumable, Item: "Grease", UnitPrice: 3, Quantity: 11, Date: "2024-05-02"})
		if err != nil {
			return err
		}
		asset, err = svc.PostReceiptTx(ctx, tx, Receipt{Kind: ReceiptFixedAsset, Item: "VHF radio", Quantity: 2, Cost: 900})
		return err
	})
	require.NoError(t, err)

	require.Equal(t, 13, restock.Consumable.Quantity)
	require.Equal(t, stock.StatusInStock, restock.Consumable.Status)
	require.False(t, restock.Created)

	require.True(t, created.Created)
	require.Equal(t, "CON-002", created.Consumable.ID)
	require.Equal(t, "General", created.Consumable.Description)
	require.Equal(t, 3, created.Consumable.ReorderLevel)
	require.Equal(t, "2024-05-02", created.Consumable.DatePurchased)

	require.Equal(t, "FA-001", asset.FixedAsset.ID)
	require.Equal(t, "General", asset.FixedAsset.AssetClass)
	require.Equal(t, "Main Office", asset.FixedAsset.Location)
	require.Equal(t, fmt.Sprintf("SN-%d", fixedNow.UnixMilli()), asset.FixedAsset.Serial)
	require.Equal(t, 2, asset.FixedAsset.QtyFunctioning)
	require.Equal(t, 900.0, asset.FixedAsset.AcquisitionCost)
	require.Equal(t, "2024-05-14", asset.FixedAsset.DateAcquired)
}

func TestApplyDeltaIsNotIdempotent(t *testing.T) {
	c := Consumable{ID: "CON-001", Quantity: 1, ReorderLevel: 5, UnitPrice: 1}
	once := ApplyDelta(c, 4)
	twice := ApplyDelta(once, 4)
	require.Equal(t, 5, once.Quantity)
	require.Equal(t, stock.StatusLowStock, once.Status)
	require.Equal(t, 9, twice.Quantity)
	require.Equal(t, stock.StatusInStock, twice.Status)
	require.Equal(t, 9.0, twice.InventoryValue)
}

func TestReconcileRepairsImportedRows(t *testing.T) {
	store := docstore.NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return docstore.PutAs(ctx, tx, CollectionConsumables, "CON-007", map[string]any{
			"name": "Shackle", "unitPrice": 4, "quantity": 3, "reorderLevel": 5, "inventoryValue": 0, "status": "In Stock",
		})
	}))
	svc := NewService(NewRepository(store), nil, ServiceConfig{}, nil)
	seedConsumable(t, svc, "Rope", 10, 2)

	fixed, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"CON-007"}, fixed)

	c, err := svc.GetConsumable(ctx, "CON-007")
	require.NoError(t, err)
	require.Equal(t, 12.0, c.InventoryValue)
	require.Equal(t, stock.StatusLowStock, c.Status)

	fixed, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Empty(t, fixed)
}

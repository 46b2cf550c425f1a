package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/stock"
)

type recordingObserver struct {
	events []PurchaseReceivedEvent
}

func (o *recordingObserver) HandlePurchaseReceived(ctx context.Context, evt PurchaseReceivedEvent) {
	o.events = append(o.events, evt)
}

type fixture struct {
	service   *Service
	inventory *inventory.Service
	observer  *recordingObserver
}

func newFixture(t *testing.T, idem *shared.IdempotencyStore) fixture {
	t.Helper()
	store := docstore.NewMemory(nil)
	inv := inventory.NewService(inventory.NewRepository(store), nil, inventory.ServiceConfig{}, nil)
	observer := &recordingObserver{}
	svc := NewService(NewRepository(store), inv, nil, idem, observer, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC) }
	return fixture{service: svc, inventory: inv, observer: observer}
}

func newIdempotency(t *testing.T) *shared.IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewIdempotencyStore(client)
}

func TestReceiveRestocksLinkedConsumable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rope, err := f.inventory.CreateConsumable(ctx, inventory.ConsumableInput{Name: "Rope", Description: "Deck", UnitPrice: 3, Quantity: 2, ReorderLevel: 5})
	require.NoError(t, err)
	require.Equal(t, stock.StatusLowStock, rope.Status)

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Rope", Quantity: "10", UnitPrice: 3, Type: TypeConsumable, ConsumableID: rope.ID, Supplier: "Harbor Supply"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Equal(t, 30.0, p.Cost)

	received, err := f.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
	require.NotNil(t, received.ReceivedAt)

	after, err := f.inventory.GetConsumable(ctx, rope.ID)
	require.NoError(t, err)
	require.Equal(t, 12, after.Quantity)
	require.Equal(t, stock.StatusInStock, after.Status)
	require.Equal(t, 36.0, after.InventoryValue)

	require.Len(t, f.observer.events, 1)
	require.Equal(t, rope.ID, f.observer.events[0].InventoryID)
	require.False(t, f.observer.events[0].Created)
}

func TestReceiveCreatesConsumableFromTextQuantity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Grease", Quantity: "5 boxes", UnitPrice: 4, Type: TypeConsumable, Date: "2024-02-20"})
	require.NoError(t, err)
	require.Equal(t, 20.0, p.Cost)

	received, err := f.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "CON-001", received.ConsumableID)

	created, err := f.inventory.GetConsumable(ctx, "CON-001")
	require.NoError(t, err)
	require.Equal(t, "Grease", created.Name)
	require.Equal(t, "General", created.Description)
	require.Equal(t, 5, created.Quantity)
	require.Equal(t, 1, created.ReorderLevel)
	require.Equal(t, "2024-02-20", created.DatePurchased)
	require.Equal(t, stock.StatusInStock, created.Status)

	stored, err := f.service.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "CON-001", stored.ConsumableID)
}

func TestReceiveCreatesFixedAsset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Life raft", Quantity: "2", UnitPrice: 500, Type: TypeFixedAsset, AssetClass: "Safety", SerialNumber: "LR-77"})
	require.NoError(t, err)
	_, err = f.service.Receive(ctx, p.ID)
	require.NoError(t, err)

	asset, err := f.inventory.GetFixedAsset(ctx, "FA-001")
	require.NoError(t, err)
	require.Equal(t, "LR-77", asset.Serial)
	require.Equal(t, "Safety", asset.AssetClass)
	require.Equal(t, "Safety", asset.Category)
	require.Equal(t, 2, asset.QtyFunctioning)
	require.Equal(t, 0, asset.QtyNotFunctioning)
	require.Equal(t, 1000.0, asset.AcquisitionCost)
	require.Equal(t, inventory.AssetOperational, asset.Status)
	require.Equal(t, "FA-001", f.observer.events[0].InventoryID)
}

func TestReceiveFailureLeavesPurchasePending(t *testing.T) {
	f := newFixture(t, newIdempotency(t))
	ctx := context.Background()

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Paint", Quantity: "4", UnitPrice: 10, Type: TypeConsumable, ConsumableID: "CON-001"})
	require.NoError(t, err)

	_, err = f.service.Receive(ctx, p.ID)
	require.ErrorIs(t, err, inventory.ErrConsumableNotFound)
	stored, err := f.service.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Empty(t, f.observer.events)

	_, err = f.inventory.CreateConsumable(ctx, inventory.ConsumableInput{Name: "Paint", Quantity: 1, ReorderLevel: 2})
	require.NoError(t, err)
	received, err := f.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)

	paint, err := f.inventory.GetConsumable(ctx, "CON-001")
	require.NoError(t, err)
	require.Equal(t, 5, paint.Quantity)
}

type cancellingInventory struct {
	*inventory.Service
	cancel context.CancelFunc
}

func (c cancellingInventory) PostReceiptTx(ctx context.Context, tx inventory.TxRepository, receipt inventory.Receipt) (inventory.ReceiptResult, error) {
	c.cancel()
	return inventory.ReceiptResult{}, context.Canceled
}

func TestReceiveCancelledMidPostCanBeRetried(t *testing.T) {
	f := newFixture(t, newIdempotency(t))
	ctx := context.Background()

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Shackles", Quantity: "6", UnitPrice: 2, Type: TypeConsumable})
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	interrupted := NewService(f.service.repo, cancellingInventory{Service: f.inventory, cancel: cancel}, nil, f.service.idempotency, nil, nil)
	_, err = interrupted.Receive(reqCtx, p.ID)
	require.ErrorIs(t, err, context.Canceled)

	stored, err := f.service.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)

	received, err := f.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
}

func TestReceiveTwiceIsRejected(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, nil)
	p, err := f.service.Create(ctx, PurchaseInput{Item: "Gloves", Quantity: "3", UnitPrice: 1, Type: TypeConsumable})
	require.NoError(t, err)
	_, err = f.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.service.Receive(ctx, p.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	guarded := newFixture(t, newIdempotency(t))
	p, err = guarded.service.Create(ctx, PurchaseInput{Item: "Gloves", Quantity: "3", UnitPrice: 1, Type: TypeConsumable})
	require.NoError(t, err)
	_, err = guarded.service.Receive(ctx, p.ID)
	require.NoError(t, err)
	_, err = guarded.service.Receive(ctx, p.ID)
	require.ErrorIs(t, err, ErrReceiveInProgress)

	items, err := guarded.inventory.ListConsumables(ctx, inventory.ConsumableFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Quantity)
}

func TestCancelOnlyFromPending(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p, err := f.service.Create(ctx, PurchaseInput{Item: "Radar", Quantity: "1", UnitPrice: 900, Type: TypeFixedAsset})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.service.Cancel(ctx, p.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = f.service.Receive(ctx, p.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = f.service.Cancel(ctx, "missing")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestUpdateKeepsCost(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p, err := f.service.Create(ctx, PurchaseInput{Item: "Flares", Quantity: "6", UnitPrice: 2.5, Type: TypeConsumable})
	require.NoError(t, err)
	require.Equal(t, 15.0, p.Cost)

	updated, err := f.service.Update(ctx, p.ID, PurchaseInput{Item: "Flares", Quantity: "8", UnitPrice: 3, Type: TypeConsumable})
	require.NoError(t, err)
	require.Equal(t, 15.0, updated.Cost)
	require.Equal(t, stock.Quantity("8"), updated.Quantity)
	require.Equal(t, p.Date, updated.Date)

	attached, err := f.service.AttachReceipt(ctx, p.ID, "invoice-0042.pdf")
	require.NoError(t, err)
	require.NotNil(t, attached.Receipt)
	require.Equal(t, "invoice-0042.pdf", *attached.Receipt)

	require.NoError(t, f.service.Delete(ctx, p.ID))
	require.ErrorIs(t, f.service.Delete(ctx, p.ID), ErrPurchaseNotFound)
}

func TestCreateBatchSkipsFailedLines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.CreateBatch(ctx, BatchInput{
		Supplier: "Harbor Supply",
		Date:     "2024-03-01",
		Type:     TypeConsumable,
		Lines: []BatchLine{
			{Item: "Rope", Quantity: "2", UnitPrice: 5},
			{Item: " ", Quantity: "1", UnitPrice: 1},
			{Item: "Tape", Quantity: "3 rolls", UnitPrice: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, 2, result.Failed[0].Line)
	require.Equal(t, "Harbor Supply", result.Created[1].Supplier)
	require.Equal(t, 6.0, result.Created[1].Cost)
}

func TestListFiltersAndYears(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, in := range []PurchaseInput{
		{Item: "Rope", Quantity: "1", UnitPrice: 1, Type: TypeConsumable, Date: "2022-07-04"},
		{Item: "Radar", Quantity: "1", UnitPrice: 1, Type: TypeFixedAsset, Date: "2023-07-10"},
		{Item: "Paint", Quantity: "1", UnitPrice: 1, Type: TypeConsumable, Date: "2023-08-01"},
	} {
		_, err := f.service.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := f.service.List(ctx, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, "Paint", all[0].Item)

	july, err := f.service.List(ctx, ListFilters{Period: shared.MonthYear{Month: 7}})
	require.NoError(t, err)
	require.Len(t, july, 2)

	consumables2023, err := f.service.List(ctx, ListFilters{Period: shared.MonthYear{Year: 2023}, Type: TypeConsumable})
	require.NoError(t, err)
	require.Len(t, consumables2023, 1)

	years, err := f.service.AvailableYears(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{2024, 2023, 2022}, years)
}

func TestReorderWorklistAndKPIs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.inventory.CreateConsumable(ctx, inventory.ConsumableInput{Name: "Rope", UnitPrice: 2, Quantity: 3, ReorderLevel: 5})
	require.NoError(t, err)
	_, err = f.inventory.CreateConsumable(ctx, inventory.ConsumableInput{Name: "Tape", UnitPrice: 1, Quantity: 5, ReorderLevel: 5})
	require.NoError(t, err)

	lines, err := f.service.ReorderWorklist(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 7, lines[0].SuggestedQuantity)
	require.Equal(t, 14.0, lines[0].EstimatedCost)

	p, err := f.service.Create(ctx, PurchaseInput{Item: "Rope", Quantity: "10", UnitPrice: 2, Type: TypeConsumable, ConsumableID: "CON-001"})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, PurchaseInput{Item: "Tape", Quantity: "2", UnitPrice: 1.25, Type: TypeConsumable})
	require.NoError(t, err)
	_, err = f.service.Receive(ctx, p.ID)
	require.NoError(t, err)

	kpis, err := f.service.KPIs(ctx, shared.MonthYear{})
	require.NoError(t, err)
	require.Equal(t, 2, kpis.Total)
	require.Equal(t, 1, kpis.Pending)
	require.Equal(t, 1, kpis.Received)
	require.Equal(t, 0, kpis.LowStockCount)
	require.Equal(t, 22.5, kpis.TotalValue)
}

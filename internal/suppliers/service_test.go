package suppliers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/shared"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestService(t *testing.T) (*Service, Repository) {
	t.Helper()
	repo := NewRepository(docstore.NewMemory(nil))
	svc := NewService(repo, nil)
	c := &clock{t: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = c.now
	return svc, repo
}

func seedSupplier(t *testing.T, svc *Service) Supplier {
	t.Helper()
	sup, err := svc.Create(context.Background(), SupplierInput{
		Name: "Harbor Supply",
		TIN:  "123-456",
		Items: []ItemWithVariants{
			{Name: "Coverall", Variants: []Variant{{Label: "M", Price: 20}, {Label: "L", Price: 22}}},
		},
	})
	require.NoError(t, err)
	return sup
}

func TestCreateSupplierAssignsItemIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)
	require.NotEmpty(t, sup.ID)
	require.NotEmpty(t, sup.Items[0].ID)
	require.NotEmpty(t, sup.Items[0].Variants[1].ID)

	_, err := svc.Create(ctx, SupplierInput{Name: " "})
	require.ErrorIs(t, err, ErrInvalidInput)

	other, err := svc.Create(ctx, SupplierInput{Name: "Bunker Co", ContactPerson: "R. Santos"})
	require.NoError(t, err)
	listed, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, other.ID, listed[0].ID)

	found, err := svc.List(ctx, "santos")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestUpdateItemVariants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)
	itemID := sup.Items[0].ID

	updated, err := svc.UpdateItemVariants(ctx, sup.ID, itemID, ItemWithVariants{Name: "Coverall", Variants: []Variant{{Label: "XL", Price: 25}}})
	require.NoError(t, err)
	require.Equal(t, itemID, updated.Items[0].ID)
	require.Len(t, updated.Items[0].Variants, 1)
	require.Equal(t, "XL", updated.Items[0].Variants[0].Label)

	_, err = svc.UpdateItemVariants(ctx, sup.ID, "nope", ItemWithVariants{Name: "x"})
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.UpdateItemVariants(ctx, "nope", itemID, ItemWithVariants{Name: "x"})
	require.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestCurrentPurchaseFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)

	first, err := svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Variant: "M", UnitPrice: 20, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, OrderPending, first.Status)
	require.Equal(t, "Harbor Supply", first.SupplierName)
	require.Equal(t, 60.0, first.Total)
	second, err := svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Variant: "L", UnitPrice: 22, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: "missing", Item: "Coverall", Quantity: 1})
	require.ErrorIs(t, err, ErrSupplierNotFound)

	ordered, err := svc.MarkOrdered(ctx, first.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	require.Equal(t, OrderOrdered, ordered[0].Status)
	require.NotNil(t, ordered[0].OrderedAt)

	record, err := svc.Receive(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, *ordered[0].OrderedAt, record.OrderedAt)
	require.Equal(t, 3, record.Quantity)

	open, err := svc.ListCurrentPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, second.ID, open[0].ID)

	_, err = svc.Receive(ctx, first.ID)
	require.ErrorIs(t, err, ErrPurchaseNotFound)

	_, err = svc.Receive(ctx, second.ID)
	require.NoError(t, err)
	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "L", history[0].Variant)
}

func TestMarkOrderedBatchIsAtomic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)
	p, err := svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Variant: "M", UnitPrice: 20, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.MarkOrdered(ctx, p.ID, "missing")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
	open, err := svc.ListCurrentPurchases(ctx)
	require.NoError(t, err)
	require.Equal(t, OrderPending, open[0].Status)
}

var errBroken = errors.New("store unavailable")

type brokenDeleteRepo struct {
	Repository
}

func (r brokenDeleteRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.Repository.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return fn(ctx, brokenDeleteTx{tx})
	})
}

type brokenDeleteTx struct {
	TxRepository
}

func (brokenDeleteTx) DeleteCurrentPurchase(ctx context.Context, id string) error {
	return errBroken
}

func TestReceiveIsAtomic(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)
	p, err := svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Variant: "M", UnitPrice: 20, Quantity: 1})
	require.NoError(t, err)

	svc.repo = brokenDeleteRepo{Repository: repo}
	_, err = svc.Receive(ctx, p.ID)
	require.ErrorIs(t, err, errBroken)

	history, err := repo.ListHistory(ctx)
	require.NoError(t, err)
	require.Empty(t, history)
	open, err := repo.ListCurrentPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestCrewIssuesAndDerivedStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sup := seedSupplier(t, svc)
	for _, q := range []int{4, 6} {
		p, err := svc.AddCurrentPurchase(ctx, CurrentPurchaseInput{SupplierID: sup.ID, Item: "Coverall", Variant: "M", UnitPrice: 20, Quantity: q})
		require.NoError(t, err)
		_, err = svc.Receive(ctx, p.ID)
		require.NoError(t, err)
	}

	_, err := svc.IssueToCrew(ctx, CrewIssueInput{CrewName: "A. Reyes", IssuedDate: "2024-04-02", Lines: []CrewIssueLine{{SupplierID: sup.ID, ItemName: "Coverall", Variant: "M", Quantity: 0}}})
	require.ErrorIs(t, err, ErrInvalidInput)

	issued, err := svc.IssueToCrew(ctx, CrewIssueInput{CrewName: "A. Reyes", IssuedDate: "2024-04-02", Lines: []CrewIssueLine{
		{SupplierID: sup.ID, ItemName: "Coverall", Variant: "M", Quantity: 3},
		{SupplierID: sup.ID, ItemName: "Gloves", Variant: "L", Quantity: 2},
	}})
	require.NoError(t, err)
	require.Len(t, issued, 2)

	rows, err := svc.Stock(ctx, StockFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 7, rows[0].TotalStock)
	require.Equal(t, 200.0, rows[0].TotalValue)
	require.Equal(t, "2024-04-01", rows[0].DatePurchased)

	_, err = svc.UpdateCrewIssueQuantity(ctx, issued[0].ID, 15)
	require.NoError(t, err)
	rows, err = svc.Stock(ctx, StockFilter{SupplierID: sup.ID, Search: "cover"})
	require.NoError(t, err)
	require.Equal(t, 0, rows[0].TotalStock)

	_, err = svc.UpdateCrewIssueQuantity(ctx, issued[0].ID, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	rng, err := shared.ParseDateRange("2024-05-01", "")
	require.NoError(t, err)
	rows, err = svc.Stock(ctx, StockFilter{Range: rng})
	require.NoError(t, err)
	require.Empty(t, rows)

	listed, err := svc.CrewIssues(ctx, CrewIssueFilter{Search: "reyes"})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.NoError(t, svc.DeleteCrewIssue(ctx, issued[1].ID))
	require.ErrorIs(t, svc.DeleteCrewIssue(ctx, issued[1].ID), ErrIssueNotFound)
}

func TestDeriveStockClampsEachIssue(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	history := []PurchaseHistory{{ID: "h1", SupplierID: "s", Item: "Rope", Variant: "10m", Quantity: 5, Total: 50, ReceivedAt: at}}
	issues := []CrewIssue{
		{SupplierID: "s", ItemName: "Rope", Variant: "10m", Quantity: 8},
		{SupplierID: "s", ItemName: "Rope", Variant: "10m", Quantity: 1},
	}
	rows := DeriveStock(history, issues)
	require.Equal(t, 0, rows[0].TotalStock)
	require.Equal(t, "h1", rows[0].PurchaseID)
}

func TestHandlerRoutes(t *testing.T) {
	svc, _ := newTestService(t)
	router := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Harbor Supply","email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/stock", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/current-purchases/missing/receive", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	orderLoads     int
	warehouseLoads int
	unfinished     []UnfinishedOrder
	openPackages   []UnfinishedPackage
	stock          []WarehouseStock
	stockPackages  []WarehousePackage
	rollup         OrderRollup
	missing        bool
}

func (s *stubRepo) OrderRollup(ctx context.Context, orderRef string) (OrderRollup, error) {
	s.orderLoads++
	if s.missing {
		return OrderRollup{}, ErrOrderNotFound
	}
	return s.rollup, nil
}

func (s *stubRepo) ListUnfinished(ctx context.Context) ([]UnfinishedOrder, error) {
	return s.unfinished, nil
}

func (s *stubRepo) UnfinishedPackages(ctx context.Context, orderRef string) ([]UnfinishedPackage, error) {
	if s.missing {
		return nil, ErrOrderNotFound
	}
	return s.openPackages, nil
}

func (s *stubRepo) WarehouseStock(ctx context.Context) ([]WarehouseStock, error) {
	s.warehouseLoads++
	return s.stock, nil
}

func (s *stubRepo) WarehousePackages(ctx context.Context, orderRef string) ([]WarehousePackage, error) {
	return s.stockPackages, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestOrderSummaryCached(t *testing.T) {
	repo := &stubRepo{rollup: OrderRollup{OrderRef: "OV2024120", TotalIntakeWeighed: 195.5}}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	first, err := svc.OrderSummary(ctx, "OV2024120")
	require.NoError(t, err)
	require.Equal(t, "OV2024120", first.OrderRef)

	_, err = svc.OrderSummary(ctx, "OV2024120")
	require.NoError(t, err)
	require.Equal(t, 1, repo.orderLoads)
}

func TestOrderSummaryCarriesStateCounts(t *testing.T) {
	repo := &stubRepo{rollup: OrderRollup{
		OrderRef:           "OV2024120",
		PackageCount:       10,
		NotYetIntakenCount: 3,
		HasStockCount:      5,
	}}
	svc := NewService(repo, newTestCache(t))

	rollup, err := svc.OrderSummary(context.Background(), "OV2024120")
	require.NoError(t, err)
	require.Equal(t, 10, rollup.PackageCount)
	require.Equal(t, 3, rollup.NotYetIntakenCount)
	require.Equal(t, 5, rollup.HasStockCount)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo := &stubRepo{rollup: OrderRollup{OrderRef: "OV2024120"}}
	cache := newTestCache(t)
	svc := NewService(repo, cache)
	ctx := context.Background()

	_, err := svc.OrderSummary(ctx, "OV2024120")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	_, err = svc.OrderSummary(ctx, "OV2024120")
	require.NoError(t, err)
	require.Equal(t, 2, repo.orderLoads)
}

func TestWarehouseSummaryRoundsAtBoundary(t *testing.T) {
	repo := &stubRepo{stock: []WarehouseStock{{
		OrderRef:       "OV2024120",
		TotalIntake:    200.0004999,
		TotalOuttake:   187.6548211,
		TotalRemaining: 12.3456789,
	}}}
	svc := NewService(repo, newTestCache(t))

	stock, err := svc.WarehouseSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, stock, 1)
	require.Equal(t, 200.0, stock[0].TotalIntake)
	require.Equal(t, 187.655, stock[0].TotalOuttake)
	require.Equal(t, 12.346, stock[0].TotalRemaining)
}

func TestWarehouseDetailsIncludeExportedPackages(t *testing.T) {
	closed := WarehousePackage{
		Code: "PK-0001", BatchNo: 1, NominalQty: 25,
		LastIntakeQty: 25.0011111, RemainingQty: 0.0005001, LossQty: 0.0005001,
		State: 1, StateLabel: "fully exported",
	}
	open := WarehousePackage{
		Code: "PK-0002", BatchNo: 2, NominalQty: 25,
		LastIntakeQty: 24.8, RemainingQty: 24.8,
		State: 0, StateLabel: "has stock",
	}
	repo := &stubRepo{stockPackages: []WarehousePackage{closed, open}}
	svc := NewService(repo, newTestCache(t))

	packages, err := svc.WarehouseDetails(context.Background(), "OV2024120")
	require.NoError(t, err)
	require.Len(t, packages, 2)
	require.Equal(t, "fully exported", packages[0].StateLabel)
	require.Equal(t, 25.001, packages[0].LastIntakeQty)
	require.Equal(t, 0.001, packages[0].LossQty)
	require.Equal(t, "has stock", packages[1].StateLabel)
}

func TestUnfinishedDetailsCarryIntakeAmounts(t *testing.T) {
	weighed := time.Date(2024, 12, 20, 8, 30, 0, 0, time.UTC)
	repo := &stubRepo{openPackages: []UnfinishedPackage{
		{Code: "PK-0001", BatchNo: 1, NominalQty: 25, State: -1, StateLabel: "not yet intaken"},
		{Code: "PK-0002", BatchNo: 2, NominalQty: 25, LastIntakeQty: 24.9998765,
			RemainingQty: 10.1234567, LastWeighTime: &weighed, State: 0, StateLabel: "has stock"},
	}}
	svc := NewService(repo, newTestCache(t))

	packages, err := svc.UnfinishedDetails(context.Background(), "OV2024120")
	require.NoError(t, err)
	require.Len(t, packages, 2)
	require.Equal(t, "not yet intaken", packages[0].StateLabel)
	require.Equal(t, 25.0, packages[1].LastIntakeQty)
	require.Equal(t, 10.123, packages[1].RemainingQty)
	require.NotNil(t, packages[1].LastWeighTime)
}

func TestOrderNotFoundNotCached(t *testing.T) {
	repo := &stubRepo{missing: true}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	_, err := svc.OrderSummary(ctx, "NOPE")
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.OrderSummary(ctx, "NOPE")
	require.ErrorIs(t, err, ErrOrderNotFound)
	require.Equal(t, 2, repo.orderLoads)
}

func TestUnfinishedSummaryOrderPreserved(t *testing.T) {
	repo := &stubRepo{unfinished: []UnfinishedOrder{
		{OrderRef: "OV2024121", NotYetIntakenCount: 3},
		{OrderRef: "OV2024119", NotYetIntakenCount: 1},
	}}
	svc := NewService(repo, newTestCache(t))

	orders, err := svc.UnfinishedSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "OV2024121", orders[0].OrderRef)
	require.Equal(t, "OV2024119", orders[1].OrderRef)
}

func TestUnfinishedSummaryKeepsStockedOrders(t *testing.T) {
	// An order whose packages are all intaken still belongs in the listing
	// while any of them holds stock to export.
	repo := &stubRepo{unfinished: []UnfinishedOrder{
		{OrderRef: "OV2024121", PackageCount: 4, NotYetIntakenCount: 0, HasStockCount: 4},
	}}
	svc := NewService(repo, newTestCache(t))

	orders, err := svc.UnfinishedSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Zero(t, orders[0].NotYetIntakenCount)
	require.Equal(t, 4, orders[0].HasStockCount)
}

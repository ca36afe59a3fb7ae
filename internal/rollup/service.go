package rollup

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts the aggregate queries for the service.
type RepositoryPort interface {
	OrderRollup(ctx context.Context, orderRef string) (OrderRollup, error)
	ListUnfinished(ctx context.Context) ([]UnfinishedOrder, error)
	UnfinishedPackages(ctx context.Context, orderRef string) ([]UnfinishedPackage, error)
	WarehouseStock(ctx context.Context) ([]WarehouseStock, error)
	WarehousePackages(ctx context.Context, orderRef string) ([]WarehousePackage, error)
}

// Service serves cached rollup aggregates. Weights are stored at full
// precision; rounding to three decimals happens here, at the display
// boundary, and nowhere else.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// OrderSummary returns the rollup for one order.
func (s *Service) OrderSummary(ctx context.Context, orderRef string) (OrderRollup, error) {
	key, err := s.cache.BuildKey(ctx, keyOrderSummary(orderRef))
	if err != nil {
		return OrderRollup{}, err
	}
	var rollup OrderRollup
	err = s.cache.FetchJSON(ctx, key, &rollup, func(ctx context.Context) (interface{}, error) {
		loaded, err := s.repo.OrderRollup(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		loaded.TotalIntakeWeighed = round3(loaded.TotalIntakeWeighed)
		loaded.TotalOuttakeWeighed = round3(loaded.TotalOuttakeWeighed)
		return loaded, nil
	})
	return rollup, err
}

// UnfinishedSummary lists orders that still have unweighed packages.
func (s *Service) UnfinishedSummary(ctx context.Context) ([]UnfinishedOrder, error) {
	key, err := s.cache.BuildKey(ctx, keyUnfinished())
	if err != nil {
		return nil, err
	}
	var orders []UnfinishedOrder
	err = s.cache.FetchJSON(ctx, key, &orders, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListUnfinished(ctx)
	})
	return orders, err
}

// UnfinishedDetails lists the unweighed packages of one order.
func (s *Service) UnfinishedDetails(ctx context.Context, orderRef string) ([]UnfinishedPackage, error) {
	key, err := s.cache.BuildKey(ctx, keyUnfinishedDetails(orderRef))
	if err != nil {
		return nil, err
	}
	var packages []UnfinishedPackage
	err = s.cache.FetchJSON(ctx, key, &packages, func(ctx context.Context) (interface{}, error) {
		loaded, err := s.repo.UnfinishedPackages(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		for i := range loaded {
			loaded[i].LastIntakeQty = round3(loaded[i].LastIntakeQty)
			loaded[i].RemainingQty = round3(loaded[i].RemainingQty)
		}
		return loaded, nil
	})
	return packages, err
}

// WarehouseSummary lists remaining stock grouped by order.
func (s *Service) WarehouseSummary(ctx context.Context) ([]WarehouseStock, error) {
	key, err := s.cache.BuildKey(ctx, keyWarehouse())
	if err != nil {
		return nil, err
	}
	var stock []WarehouseStock
	err = s.cache.FetchJSON(ctx, key, &stock, func(ctx context.Context) (interface{}, error) {
		loaded, err := s.repo.WarehouseStock(ctx)
		if err != nil {
			return nil, err
		}
		for i := range loaded {
			loaded[i].TotalIntake = round3(loaded[i].TotalIntake)
			loaded[i].TotalOuttake = round3(loaded[i].TotalOuttake)
			loaded[i].TotalRemaining = round3(loaded[i].TotalRemaining)
		}
		return loaded, nil
	})
	return stock, err
}

// WarehouseDetails lists the in-stock packages of one order.
func (s *Service) WarehouseDetails(ctx context.Context, orderRef string) ([]WarehousePackage, error) {
	key, err := s.cache.BuildKey(ctx, keyWarehouseDetails(orderRef))
	if err != nil {
		return nil, err
	}
	var packages []WarehousePackage
	err = s.cache.FetchJSON(ctx, key, &packages, func(ctx context.Context) (interface{}, error) {
		loaded, err := s.repo.WarehousePackages(ctx, orderRef)
		if err != nil {
			return nil, err
		}
		for i := range loaded {
			loaded[i].RemainingQty = round3(loaded[i].RemainingQty)
			loaded[i].LastIntakeQty = round3(loaded[i].LastIntakeQty)
			loaded[i].LossQty = round3(loaded[i].LossQty)
		}
		return loaded, nil
	})
	return packages, err
}

func round3(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(3).Float64()
	return rounded
}

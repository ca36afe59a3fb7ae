package scan

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts the snapshot read for the service.
type RepositoryPort interface {
	Resolve(ctx context.Context, code string) (View, error)
}

// Service resolves scans. Scans are never cached: the operator is about to
// act on the answer, so it must reflect the latest committed ledger state.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve returns the display view for one scanned code.
func (s *Service) Resolve(ctx context.Context, code string) (View, error) {
	if code == "" {
		return View{}, fmt.Errorf("scan: empty package code: %w", ErrPackageNotFound)
	}
	view, err := s.repo.Resolve(ctx, code)
	if err != nil {
		return View{}, err
	}
	view.Package.NominalQty = round3(view.Package.NominalQty)
	view.Package.LastIntakeQty = round3(view.Package.LastIntakeQty)
	view.Package.RemainingQty = round3(view.Package.RemainingQty)
	view.Order.TotalIntakeWeighed = round3(view.Order.TotalIntakeWeighed)
	view.Order.TotalOuttakeWeighed = round3(view.Order.TotalOuttakeWeighed)
	for i := range view.Siblings {
		view.Siblings[i].NominalQty = round3(view.Siblings[i].NominalQty)
		view.Siblings[i].RemainingQty = round3(view.Siblings[i].RemainingQty)
	}
	return view, nil
}

func round3(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(3).Float64()
	return rounded
}

package weighing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/weighline/weighline/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	// WithPackageTx runs fn inside one transaction holding a write lock on
	// the package row, so check-then-insert sequences serialize per package.
	WithPackageTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// OrderSummary re-reads the order rollup after commit.
	OrderSummary(ctx context.Context, orderRef string) (OrderSummary, error)
}

// TxRepository exposes the ledger operations available inside a transaction.
type TxRepository interface {
	GetPackageForUpdate(ctx context.Context, code string) (Package, error)
	ActiveEvents(ctx context.Context, code string) ([]WeighEvent, error)
	InsertEvent(ctx context.Context, evt WeighEvent) (WeighEvent, error)
	SupersedeAllEvents(ctx context.Context, code string) (int64, error)
	SupersedeEvent(ctx context.Context, id int64) error
	UpdateIntakeMirror(ctx context.Context, pkg Package, evt WeighEvent) error
	RefreshDerived(ctx context.Context, code string) (float64, EmptyState, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RollupInvalidator invalidates cached order rollups after a ledger write.
type RollupInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service is the balance engine: it validates proposed weigh events against
// ledger state and records accepted events and corrections.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	rollups RollupInvalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, rollups RollupInvalidator) *Service {
	return &Service{repo: repo, audit: audit, rollups: rollups}
}

// SubmitWeighEvent validates and records a fresh intake or outtake.
//
// All preconditions are checked against the ledger inside the package-row
// lock, not against cached mirror fields, so concurrent submissions cannot
// both pass the same check.
func (s *Service) SubmitWeighEvent(ctx context.Context, input SubmitInput) (Result, error) {
	if err := validateInput(input); err != nil {
		return Result{}, err
	}

	var (
		accepted WeighEvent
		orderRef string
		balance  float64
	)
	err := s.repo.WithPackageTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pkg, err := tx.GetPackageForUpdate(ctx, input.PackageCode)
		if err != nil {
			return err
		}
		orderRef = pkg.OrderRef

		events, err := tx.ActiveEvents(ctx, input.PackageCode)
		if err != nil {
			return err
		}
		intaken, exported, hasIntake := ledgerTotals(events)

		switch input.Kind {
		case KindIntake:
			// One intake per package lifetime; corrections go through Reweigh.
			if hasIntake {
				return ErrAlreadyIntaken
			}
		case KindOuttake:
			if !hasIntake {
				return ErrNotYetIntaken
			}
			if exported+input.Weight > intaken+ExportTolerance {
				return &OverExportError{Intaken: intaken, Exported: exported, Requested: input.Weight}
			}
		}

		accepted, err = tx.InsertEvent(ctx, newEvent(input))
		if err != nil {
			return err
		}
		if input.Kind == KindIntake {
			if err := tx.UpdateIntakeMirror(ctx, pkg, accepted); err != nil {
				return err
			}
		}
		balance, _, err = tx.RefreshDerived(ctx, input.PackageCode)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	return s.finish(ctx, "weighing:submit", accepted, orderRef, balance)
}

// Reweigh supersedes a prior event and records a replacement.
//
// An intake correction retires every active event on the package and restarts
// the balance at the new weight: prior outtakes are not replayed. This
// destructive reset mirrors how the weigh floor recovers from a wrong intake
// and is intentional. An outtake correction retires only the most recent
// active outtake; earlier outtakes are immutable.
func (s *Service) Reweigh(ctx context.Context, input SubmitInput) (Result, error) {
	if err := validateInput(input); err != nil {
		return Result{}, err
	}

	var (
		accepted WeighEvent
		orderRef string
		balance  float64
	)
	err := s.repo.WithPackageTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pkg, err := tx.GetPackageForUpdate(ctx, input.PackageCode)
		if err != nil {
			return err
		}
		orderRef = pkg.OrderRef

		events, err := tx.ActiveEvents(ctx, input.PackageCode)
		if err != nil {
			return err
		}

		switch input.Kind {
		case KindIntake:
			if _, _, hasIntake := ledgerTotals(events); !hasIntake {
				return ErrNothingToCorrect
			}
			if _, err := tx.SupersedeAllEvents(ctx, input.PackageCode); err != nil {
				return err
			}
		case KindOuttake:
			last := lastActiveOuttake(events)
			if last == nil {
				return ErrNothingToCorrect
			}
			intaken, exported, _ := ledgerTotals(events)
			// The corrected event is credited back before the bound check.
			if exported-last.Weight+input.Weight > intaken+ExportTolerance {
				return &OverExportError{Intaken: intaken, Exported: exported - last.Weight, Requested: input.Weight}
			}
			if err := tx.SupersedeEvent(ctx, last.ID); err != nil {
				return err
			}
		}

		accepted, err = tx.InsertEvent(ctx, newEvent(input))
		if err != nil {
			return err
		}
		if input.Kind == KindIntake {
			if err := tx.UpdateIntakeMirror(ctx, pkg, accepted); err != nil {
				return err
			}
		}
		balance, _, err = tx.RefreshDerived(ctx, input.PackageCode)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	return s.finish(ctx, "weighing:reweigh", accepted, orderRef, balance)
}

func (s *Service) finish(ctx context.Context, action string, evt WeighEvent, orderRef string, balance float64) (Result, error) {
	summary, err := s.repo.OrderSummary(ctx, orderRef)
	if err != nil {
		return Result{}, err
	}
	if s.rollups != nil {
		_ = s.rollups.Invalidate(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  evt.OperatorID,
			Action:   fmt.Sprintf("%s:%s", action, evt.Kind),
			Entity:   "weigh_event",
			EntityID: evt.Ref,
			Meta: map[string]any{
				"package_code": evt.PackageCode,
				"order_ref":    orderRef,
				"weight":       evt.Weight,
				"device_id":    evt.DeviceID,
			},
		})
	}
	return Result{EventRef: evt.Ref, Remaining: balance, Summary: summary}, nil
}

func validateInput(input SubmitInput) error {
	if input.PackageCode == "" {
		return fmt.Errorf("%w: package code required", ErrInvalidInput)
	}
	if !input.Kind.Valid() {
		return fmt.Errorf("%w: kind must be intake or outtake", ErrInvalidInput)
	}
	if input.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
	}
	if input.WeighedAt.IsZero() {
		return fmt.Errorf("%w: weigh time required", ErrInvalidInput)
	}
	if input.OperatorID == "" {
		return fmt.Errorf("%w: operator id required", ErrInvalidInput)
	}
	return nil
}

func newEvent(input SubmitInput) WeighEvent {
	return WeighEvent{
		Ref:         uuid.NewString(),
		PackageCode: input.PackageCode,
		Kind:        input.Kind,
		Weight:      input.Weight,
		WeighedAt:   input.WeighedAt,
		OperatorID:  input.OperatorID,
		DeviceID:    input.DeviceID,
	}
}

// ledgerTotals sums active events by kind.
func ledgerTotals(events []WeighEvent) (intaken, exported float64, hasIntake bool) {
	for _, evt := range events {
		switch evt.Kind {
		case KindIntake:
			intaken += evt.Weight
			hasIntake = true
		case KindOuttake:
			exported += evt.Weight
		}
	}
	return intaken, exported, hasIntake
}

// lastActiveOuttake returns the active outtake with the highest id.
func lastActiveOuttake(events []WeighEvent) *WeighEvent {
	var last *WeighEvent
	for i := range events {
		if events[i].Kind != KindOuttake {
			continue
		}
		if last == nil || events[i].ID > last.ID {
			last = &events[i]
		}
	}
	return last
}

package weighing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryOrder struct {
	formulaName string
	memo        string
	targetQty   float64
}

type memoryLedger struct {
	packages map[string]Package
	orders   map[string]memoryOrder
	events   []WeighEvent
	nextID   int64
}

type memoryTx struct {
	repo *memoryLedger
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		packages: make(map[string]Package),
		orders:   make(map[string]memoryOrder),
	}
}

func (r *memoryLedger) addOrder(ref string, targetQty float64) {
	r.orders[ref] = memoryOrder{formulaName: "NBR-70", memo: "line 2", targetQty: targetQty}
}

func (r *memoryLedger) addPackage(code, orderRef string, nominalQty float64) {
	r.packages[code] = Package{Code: code, OrderRef: orderRef, NominalQty: nominalQty, EmptyState: StateNotYetIntaken}
}

func (r *memoryLedger) WithPackageTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryLedger) OrderSummary(ctx context.Context, orderRef string) (OrderSummary, error) {
	order, ok := r.orders[orderRef]
	if !ok {
		return OrderSummary{}, ErrOrderNotFound
	}
	summary := OrderSummary{
		OrderRef:       orderRef,
		FormulaName:    order.formulaName,
		Memo:           order.memo,
		TargetTotalQty: order.targetQty,
	}
	for _, evt := range r.events {
		if evt.Superseded || r.packages[evt.PackageCode].OrderRef != orderRef {
			continue
		}
		switch evt.Kind {
		case KindIntake:
			summary.TotalIntakeWeighed += evt.Weight
		case KindOuttake:
			summary.TotalOuttakeWeighed += evt.Weight
		}
	}
	return summary, nil
}

func (tx *memoryTx) GetPackageForUpdate(ctx context.Context, code string) (Package, error) {
	pkg, ok := tx.repo.packages[code]
	if !ok {
		return Package{}, ErrPackageNotFound
	}
	return pkg, nil
}

func (tx *memoryTx) ActiveEvents(ctx context.Context, code string) ([]WeighEvent, error) {
	var active []WeighEvent
	for _, evt := range tx.repo.events {
		if evt.PackageCode == code && !evt.Superseded {
			active = append(active, evt)
		}
	}
	return active, nil
}

func (tx *memoryTx) InsertEvent(ctx context.Context, evt WeighEvent) (WeighEvent, error) {
	tx.repo.nextID++
	evt.ID = tx.repo.nextID
	tx.repo.events = append(tx.repo.events, evt)
	return evt, nil
}

func (tx *memoryTx) SupersedeAllEvents(ctx context.Context, code string) (int64, error) {
	var n int64
	for i := range tx.repo.events {
		if tx.repo.events[i].PackageCode == code && !tx.repo.events[i].Superseded {
			tx.repo.events[i].Superseded = true
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) SupersedeEvent(ctx context.Context, id int64) error {
	for i := range tx.repo.events {
		if tx.repo.events[i].ID == id && !tx.repo.events[i].Superseded {
			tx.repo.events[i].Superseded = true
			return nil
		}
	}
	return ErrNothingToCorrect
}

func (tx *memoryTx) UpdateIntakeMirror(ctx context.Context, pkg Package, evt WeighEvent) error {
	stored := tx.repo.packages[pkg.Code]
	stored.LastIntakeQty = evt.Weight
	stored.LastWeighTime = evt.WeighedAt
	tx.repo.packages[pkg.Code] = stored
	return nil
}

func (tx *memoryTx) RefreshDerived(ctx context.Context, code string) (float64, EmptyState, error) {
	pkg, ok := tx.repo.packages[code]
	if !ok {
		return 0, StateNotYetIntaken, ErrPackageNotFound
	}
	active, _ := tx.ActiveEvents(ctx, code)
	intaken, exported, hasIntake := ledgerTotals(active)
	balance := intaken - exported
	if balance < 0 {
		balance = 0
	}
	state := StateNotYetIntaken
	if hasIntake {
		if balance > ExportTolerance {
			state = StateHasStock
		} else {
			state = StateFullyExported
		}
	}
	pkg.RemainingQty = balance
	pkg.EmptyState = state
	tx.repo.packages[code] = pkg
	return balance, state, nil
}

func (r *memoryLedger) activeIntakeCount(code string) int {
	count := 0
	for _, evt := range r.events {
		if evt.PackageCode == code && evt.Kind == KindIntake && !evt.Superseded {
			count++
		}
	}
	return count
}

func newTestService(t *testing.T) (*Service, *memoryLedger) {
	t.Helper()
	repo := newMemoryLedger()
	repo.addOrder("OV2024120", 500)
	repo.addPackage("PKG001", "OV2024120", 100)
	repo.addPackage("PKG002", "OV2024120", 100)
	return NewService(repo, nil, nil), repo
}

func submit(t *testing.T, svc *Service, code string, kind EventKind, weight float64) (Result, error) {
	t.Helper()
	return svc.SubmitWeighEvent(context.Background(), SubmitInput{
		PackageCode: code,
		Kind:        kind,
		Weight:      weight,
		WeighedAt:   time.Now(),
		OperatorID:  "OP01",
	})
}

func reweigh(t *testing.T, svc *Service, code string, kind EventKind, weight float64) (Result, error) {
	t.Helper()
	return svc.Reweigh(context.Background(), SubmitInput{
		PackageCode: code,
		Kind:        kind,
		Weight:      weight,
		WeighedAt:   time.Now(),
		OperatorID:  "OP01",
	})
}

func TestOuttakeBeforeIntakeRejected(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindOuttake, 10)
	require.ErrorIs(t, err, ErrNotYetIntaken)
	require.Empty(t, repo.events)
}

func TestIntakeAcceptedOnceOnly(t *testing.T) {
	svc, repo := newTestService(t)

	result, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	require.NotEmpty(t, result.EventRef)
	require.InDelta(t, 100, result.Remaining, 0.0001)
	require.Equal(t, StateHasStock, repo.packages["PKG001"].EmptyState)

	_, err = submit(t, svc, "PKG001", KindIntake, 90)
	require.ErrorIs(t, err, ErrAlreadyIntaken)
	require.InDelta(t, 100, repo.packages["PKG001"].RemainingQty, 0.0001)
	require.Equal(t, 1, repo.activeIntakeCount("PKG001"))
}

func TestOuttakeBoundedByIntake(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)

	result, err := submit(t, svc, "PKG001", KindOuttake, 60)
	require.NoError(t, err)
	require.InDelta(t, 40, result.Remaining, 0.0001)

	_, err = submit(t, svc, "PKG001", KindOuttake, 41)
	require.ErrorIs(t, err, ErrOverExport)

	var overExport *OverExportError
	require.ErrorAs(t, err, &overExport)
	require.InDelta(t, 40, overExport.Remaining(), 0.0001)
	require.InDelta(t, 40, repo.packages["PKG001"].RemainingQty, 0.0001)
}

func TestOuttakeWithinToleranceAccepted(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)

	// 100.0005 is inside the 0.001 tolerance; the balance clamps at zero.
	result, err := submit(t, svc, "PKG001", KindOuttake, 100.0005)
	require.NoError(t, err)
	require.InDelta(t, 0, result.Remaining, 0.001)
	require.Equal(t, StateFullyExported, repo.packages["PKG001"].EmptyState)
}

func TestOuttakeCorrectionCreditsLastEvent(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 60)
	require.NoError(t, err)

	result, err := reweigh(t, svc, "PKG001", KindOuttake, 35)
	require.NoError(t, err)
	require.InDelta(t, 65, result.Remaining, 0.0001)
	require.InDelta(t, 35, result.Summary.TotalOuttakeWeighed, 0.0001)
	require.Equal(t, StateHasStock, repo.packages["PKG001"].EmptyState)
}

func TestOuttakeCorrectionOnlyTouchesMostRecent(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 30)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 20)
	require.NoError(t, err)

	// Correcting replaces the 20kg event; the 30kg event is immutable.
	result, err := reweigh(t, svc, "PKG001", KindOuttake, 50)
	require.NoError(t, err)
	require.InDelta(t, 20, result.Remaining, 0.0001)
	require.InDelta(t, 80, result.Summary.TotalOuttakeWeighed, 0.0001)
}

func TestOuttakeCorrectionStillBounded(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 30)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 20)
	require.NoError(t, err)

	// 30 stays; replacing 20 with 71 would put the package at -1kg.
	_, err = reweigh(t, svc, "PKG001", KindOuttake, 71)
	require.ErrorIs(t, err, ErrOverExport)
	require.InDelta(t, 50, repo.packages["PKG001"].RemainingQty, 0.0001)
}

func TestIntakeCorrectionResetsBalance(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 60)
	require.NoError(t, err)

	// The reset discards the outtake history on purpose.
	result, err := reweigh(t, svc, "PKG001", KindIntake, 50)
	require.NoError(t, err)
	require.InDelta(t, 50, result.Remaining, 0.0001)
	require.Equal(t, 1, repo.activeIntakeCount("PKG001"))
	require.InDelta(t, 50, result.Summary.TotalIntakeWeighed, 0.0001)
	require.InDelta(t, 0, result.Summary.TotalOuttakeWeighed, 0.0001)
}

func TestCorrectionReopensFullyExported(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG001", KindOuttake, 100)
	require.NoError(t, err)
	require.Equal(t, StateFullyExported, repo.packages["PKG001"].EmptyState)

	result, err := reweigh(t, svc, "PKG001", KindOuttake, 80)
	require.NoError(t, err)
	require.InDelta(t, 20, result.Remaining, 0.0001)
	require.Equal(t, StateHasStock, repo.packages["PKG001"].EmptyState)
}

func TestReweighWithoutPriorEvent(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := reweigh(t, svc, "PKG001", KindIntake, 50)
	require.ErrorIs(t, err, ErrNothingToCorrect)

	_, err = submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = reweigh(t, svc, "PKG001", KindOuttake, 10)
	require.ErrorIs(t, err, ErrNothingToCorrect)
}

func TestUnknownPackage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := submit(t, svc, "NOPE", KindIntake, 100)
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func TestInputValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitWeighEvent(ctx, SubmitInput{Kind: KindIntake, Weight: 1, WeighedAt: time.Now(), OperatorID: "OP01"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SubmitWeighEvent(ctx, SubmitInput{PackageCode: "PKG001", Kind: "transfer", Weight: 1, WeighedAt: time.Now(), OperatorID: "OP01"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SubmitWeighEvent(ctx, SubmitInput{PackageCode: "PKG001", Kind: KindIntake, Weight: -3, WeighedAt: time.Now(), OperatorID: "OP01"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SubmitWeighEvent(ctx, SubmitInput{PackageCode: "PKG001", Kind: KindIntake, Weight: 1, WeighedAt: time.Now()})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSummaryAggregatesOrder(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := submit(t, svc, "PKG001", KindIntake, 100)
	require.NoError(t, err)
	_, err = submit(t, svc, "PKG002", KindIntake, 95)
	require.NoError(t, err)
	result, err := submit(t, svc, "PKG001", KindOuttake, 40)
	require.NoError(t, err)

	require.Equal(t, "OV2024120", result.Summary.OrderRef)
	require.InDelta(t, 500, result.Summary.TargetTotalQty, 0.0001)
	require.InDelta(t, 195, result.Summary.TotalIntakeWeighed, 0.0001)
	require.InDelta(t, 40, result.Summary.TotalOuttakeWeighed, 0.0001)
}

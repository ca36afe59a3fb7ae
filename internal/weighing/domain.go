package weighing

import (
	"errors"
	"fmt"
	"time"
)

// EventKind enumerates the two weighable movement directions.
type EventKind string

const (
	// KindIntake records weight entering a package's stock.
	KindIntake EventKind = "intake"
	// KindOuttake records weight leaving a package's stock.
	KindOuttake EventKind = "outtake"
)

// Valid reports whether the kind is one of the two movement directions.
func (k EventKind) Valid() bool {
	return k == KindIntake || k == KindOuttake
}

// ExportTolerance is the slack allowed when comparing an outtake against the
// intaken weight, absorbing scale jitter in the last gram.
const ExportTolerance = 0.001

// EmptyState classifies a package by its derived balance.
type EmptyState int

const (
	// StateNotYetIntaken means no active intake event exists.
	StateNotYetIntaken EmptyState = -1
	// StateHasStock means the package holds a positive balance.
	StateHasStock EmptyState = 0
	// StateFullyExported means everything intaken has been weighed out.
	StateFullyExported EmptyState = 1
)

// Label returns the operator-facing state text.
func (s EmptyState) Label() string {
	switch s {
	case StateNotYetIntaken:
		return "not yet intaken"
	case StateHasStock:
		return "has stock"
	case StateFullyExported:
		return "fully exported"
	default:
		return "unknown"
	}
}

// WeighEvent is one append-only ledger row. Superseded events stay in the
// ledger but no longer count toward the derived balance.
type WeighEvent struct {
	ID          int64
	Ref         string
	PackageCode string
	Kind        EventKind
	Superseded  bool
	Weight      float64
	WeighedAt   time.Time
	OperatorID  string
	DeviceID    string
}

// Package mirrors one physical batch unit from the registry, including the
// derived balance columns maintained by the ledger repository.
type Package struct {
	Code          string
	OrderRef      string
	BatchNo       int
	NominalQty    float64
	PlannerID     string
	LastIntakeQty float64
	LastWeighTime time.Time
	RemainingQty  float64
	EmptyState    EmptyState
}

// OrderSummary is the order-level rollup returned after every accepted weigh
// so the terminal can refresh its header without a second round trip.
type OrderSummary struct {
	OrderRef            string  `json:"orderRef"`
	FormulaName         string  `json:"formulaName"`
	Memo                string  `json:"memo"`
	TargetTotalQty      float64 `json:"targetTotalQty"`
	TotalIntakeWeighed  float64 `json:"totalIntakeWeighed"`
	TotalOuttakeWeighed float64 `json:"totalOuttakeWeighed"`
}

// SubmitInput describes a proposed weigh event.
type SubmitInput struct {
	PackageCode string
	Kind        EventKind
	Weight      float64
	WeighedAt   time.Time
	OperatorID  string
	DeviceID    string
}

// Result is returned on acceptance of a weigh or a correction.
type Result struct {
	EventRef  string
	Remaining float64
	Summary   OrderSummary
}

// Error taxonomy. Every rejection is detected before any mutation commits.
var (
	// ErrPackageNotFound indicates the scanned code has no registry row.
	ErrPackageNotFound = errors.New("weighing: package not found")
	// ErrOrderNotFound indicates the referenced production order is missing.
	ErrOrderNotFound = errors.New("weighing: production order not found")
	// ErrAlreadyIntaken indicates an intake on a package with an active intake.
	ErrAlreadyIntaken = errors.New("weighing: package already has an active intake")
	// ErrNotYetIntaken indicates an outtake before any active intake.
	ErrNotYetIntaken = errors.New("weighing: package has not been intaken")
	// ErrOverExport indicates an outtake exceeding the intaken balance.
	ErrOverExport = errors.New("weighing: outtake exceeds intaken balance")
	// ErrNothingToCorrect indicates a reweigh with no prior active event of
	// the corrected kind.
	ErrNothingToCorrect = errors.New("weighing: no active event to correct")
	// ErrTransient indicates a store-level conflict or timeout; the whole
	// call may be retried from the top.
	ErrTransient = errors.New("weighing: transient store failure")
	// ErrInvalidInput indicates missing or malformed required fields.
	ErrInvalidInput = errors.New("weighing: invalid input")
)

// OverExportError carries the balance figures so the rejection message can
// report remaining capacity to the operator.
type OverExportError struct {
	Intaken   float64
	Exported  float64
	Requested float64
}

// Remaining is the exportable weight still on the package.
func (e *OverExportError) Remaining() float64 {
	return e.Intaken - e.Exported
}

func (e *OverExportError) Error() string {
	return fmt.Sprintf("weighing: outtake exceeds intaken balance (remaining %.3fkg, requested %.3fkg, intaken %.3fkg)",
		e.Remaining(), e.Requested, e.Intaken)
}

// Unwrap makes the error match ErrOverExport under errors.Is.
func (e *OverExportError) Unwrap() error {
	return ErrOverExport
}

// ErrorCode maps a weighing error to its stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPackageNotFound), errors.Is(err, ErrOrderNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyIntaken):
		return "ALREADY_INTAKEN"
	case errors.Is(err, ErrNotYetIntaken):
		return "NOT_YET_INTAKEN"
	case errors.Is(err, ErrOverExport):
		return "OVER_EXPORT"
	case errors.Is(err, ErrNothingToCorrect):
		return "NOTHING_TO_CORRECT"
	case errors.Is(err, ErrTransient):
		return "TRANSIENT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}

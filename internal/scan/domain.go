package scan

import (
	"errors"
	"time"
)

// ErrPackageNotFound is returned when the scanned code has no registry row.
var ErrPackageNotFound = errors.New("scan: package not found")

// View is everything a terminal shows after one scan. All fields come from a
// single database snapshot, so the package state, order totals and sibling
// list never contradict each other.
type View struct {
	Package  PackageView   `json:"package"`
	Order    OrderView     `json:"order"`
	Siblings []SiblingView `json:"siblings"`
}

// PackageView is the scanned package itself.
type PackageView struct {
	Code          string     `json:"code"`
	BatchNo       int        `json:"batchNo"`
	NominalQty    float64    `json:"nominalQty"`
	LastIntakeQty float64    `json:"lastIntakeQty"`
	LastWeighTime *time.Time `json:"lastWeighTime,omitempty"`
	RemainingQty  float64    `json:"remainingQty"`
	State         int        `json:"state"`
	StateLabel    string     `json:"stateLabel"`
}

// OrderView is the production order header shown above the package.
type OrderView struct {
	Ref                 string  `json:"ref"`
	FormulaName         string  `json:"formulaName"`
	Memo                string  `json:"memo"`
	PlannerName         string  `json:"plannerName"`
	TargetTotalQty      float64 `json:"targetTotalQty"`
	TotalIntakeWeighed  float64 `json:"totalIntakeWeighed"`
	TotalOuttakeWeighed float64 `json:"totalOuttakeWeighed"`
	PackageCount        int     `json:"packageCount"`
	WeighedCount        int     `json:"weighedCount"`
}

// SiblingView is one other package on the same order, listed so the operator
// sees batch progress at a glance.
type SiblingView struct {
	Code         string  `json:"code"`
	BatchNo      int     `json:"batchNo"`
	NominalQty   float64 `json:"nominalQty"`
	RemainingQty float64 `json:"remainingQty"`
	State        int     `json:"state"`
	StateLabel   string  `json:"stateLabel"`
}

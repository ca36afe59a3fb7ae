package rollup

import (
	"errors"
	"time"
)

// ErrOrderNotFound is returned when a rollup targets an unknown order.
var ErrOrderNotFound = errors.New("order not found")

// OrderRollup is the per-order aggregate shown beside every weigh result and
// on the order summary endpoint.
type OrderRollup struct {
	OrderRef            string  `json:"orderRef"`
	FormulaName         string  `json:"formulaName"`
	Memo                string  `json:"memo"`
	TargetTotalQty      float64 `json:"targetTotalQty"`
	TotalIntakeWeighed  float64 `json:"totalIntakeWeighed"`
	TotalOuttakeWeighed float64 `json:"totalOuttakeWeighed"`
	PackageCount        int     `json:"packageCount"`
	NotYetIntakenCount  int     `json:"countNotYetIntaken"`
	HasStockCount       int     `json:"countHasRemainingStock"`
}

// UnfinishedOrder summarises an order that still has packages short of fully
// exported, either awaiting their intake weigh or holding stock.
type UnfinishedOrder struct {
	OrderRef           string  `json:"orderRef"`
	FormulaName        string  `json:"formulaName"`
	Memo               string  `json:"memo"`
	TargetTotalQty     float64 `json:"targetTotalQty"`
	PackageCount       int     `json:"packageCount"`
	NotYetIntakenCount int     `json:"countNotYetIntaken"`
	HasStockCount      int     `json:"countHasRemainingStock"`
}

// UnfinishedPackage is one still-open package inside an order: not yet
// intaken, or intaken with stock left to export.
type UnfinishedPackage struct {
	Code          string     `json:"code"`
	BatchNo       int        `json:"batchNo"`
	NominalQty    float64    `json:"nominalQty"`
	LastIntakeQty float64    `json:"lastIntakeQty"`
	RemainingQty  float64    `json:"remainingQty"`
	LastWeighTime *time.Time `json:"lastWeighTime,omitempty"`
	State         int        `json:"state"`
	StateLabel    string     `json:"stateLabel"`
}

// WarehouseStock summarises weighed stock for one order.
type WarehouseStock struct {
	OrderRef       string  `json:"orderRef"`
	FormulaName    string  `json:"formulaName"`
	PackageCount   int     `json:"packageCount"`
	TotalIntake    float64 `json:"totalIntake"`
	TotalOuttake   float64 `json:"totalOuttake"`
	TotalRemaining float64 `json:"totalRemaining"`
}

// WarehousePackage is one package inside an order, fully exported ones
// included so the warehouse view shows the complete history.
type WarehousePackage struct {
	Code          string     `json:"code"`
	BatchNo       int        `json:"batchNo"`
	NominalQty    float64    `json:"nominalQty"`
	LastIntakeQty float64    `json:"lastIntakeQty"`
	RemainingQty  float64    `json:"remainingQty"`
	LossQty       float64    `json:"lossQty"`
	LastWeighTime *time.Time `json:"lastWeighTime,omitempty"`
	State         int        `json:"state"`
	StateLabel    string     `json:"stateLabel"`
}

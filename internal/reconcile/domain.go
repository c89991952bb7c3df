// Package reconcile implements the BOQ planned-vs-actual reconciliation
// engine: merging change requests into the planned tree, matching actual
// procurement and labour records to planned lines, computing cost
// breakdowns, and analysing variance and margin-buffer consumption. The
// whole computation is a pure function of its inputs; nothing here writes
// back to storage.
package reconcile

import (
	"errors"
	"math"

	"github.com/granite-erp/granite-erp/internal/boq"
)

// Line statuses.
const (
	StatusPending           = "pending"
	StatusCompleted         = "completed"
	StatusFromChangeRequest = "from_change_request"
	StatusUnplanned         = "unplanned"
)

// Variance statuses.
const (
	VarianceOverrun   = "overrun"
	VarianceSaved     = "saved"
	VarianceOnBudget  = "on_budget"
	VarianceUnplanned = "unplanned"
)

// Completion statuses.
const (
	CompletionNotStarted = "not_started"
	CompletionInProgress = "in_progress"
	CompletionCompleted  = "completed"
)

var (
	// ErrComputation wraps unexpected failures inside the report
	// computation; the caller receives no partial report.
	ErrComputation = errors.New("reconcile: computation failed")
)

// MergedTree is the planned tree with change requests projected in. It is
// recomputed from source records on every report and never persisted.
type MergedTree struct {
	Items              []MergedItem
	DiscountPercentage *float64
	DiscountAmount     *float64
	Preliminaries      *boq.Preliminaries
}

// MergedItem groups merged sub-items under one master item.
type MergedItem struct {
	MasterItemID int64
	Name         string
	SubItems     []MergedSubItem
}

// MergedSubItem is a planned sub-item, or a synthetic sub-item holding the
// new materials a change request introduced.
type MergedSubItem struct {
	Name     string
	Quantity float64
	Rate     float64

	BaseTotal   *float64
	PerUnitCost *float64
	ClientRate  *float64

	MiscPercentage           *float64
	OverheadProfitPercentage *float64
	TransportPercentage      *float64
	DiscountPercentage       *float64
	DiscountAmount           *float64

	Materials []MergedMaterial
	Labour    []boq.Labour

	FromChangeRequest bool
	ChangeRequestID   int64
}

// MergedMaterial is a material line in the merged tree. For lines introduced
// by a change request the quantity and pricing fields hold the CR's values
// and the planned baseline is zero.
type MergedMaterial struct {
	MasterMaterialID *int64
	Name             string
	Unit             string
	Quantity         float64
	UnitPrice        float64
	TotalPrice       float64

	FromChangeRequest bool
	ChangeRequestID   int64
	CRUpdate          *CRRevision
}

// CRRevision records the latest change-request revision of a planned
// material. The planned fields are forced to zero: anything not in the
// baseline is unplanned spend.
type CRRevision struct {
	ChangeRequestID  int64
	Quantity         float64
	UnitPrice        float64
	TotalPrice       float64
	PlannedQuantity  float64
	PlannedUnitPrice float64
	PlannedTotal     float64
}

// MiscPct returns the sub-item miscellaneous percentage or the default.
func (s MergedSubItem) MiscPct() float64 {
	if s.MiscPercentage != nil {
		return *s.MiscPercentage
	}
	return boq.DefaultMiscPercentage
}

// OverheadProfitPct returns the combined overhead+profit percentage or the default.
func (s MergedSubItem) OverheadProfitPct() float64 {
	if s.OverheadProfitPercentage != nil {
		return *s.OverheadProfitPercentage
	}
	return boq.DefaultOverheadProfitPercentage
}

// TransportPct returns the transport percentage or the default.
func (s MergedSubItem) TransportPct() float64 {
	if s.TransportPercentage != nil {
		return *s.TransportPercentage
	}
	return boq.DefaultTransportPercentage
}

// LineAmounts is one side (planned or actual) of a comparison row.
type LineAmounts struct {
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// VarianceDetail classifies the difference between actual and planned.
type VarianceDetail struct {
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
	Status  string  `json:"status"`
}

// MaterialRow is one material comparison row in the report.
type MaterialRow struct {
	MasterMaterialID  *int64         `json:"master_material_id,omitempty"`
	Name              string         `json:"material_name"`
	Unit              string         `json:"unit,omitempty"`
	Planned           LineAmounts    `json:"planned"`
	Actual            LineAmounts    `json:"actual"`
	Balance           float64        `json:"balance"`
	Status            string         `json:"status"`
	Variance          VarianceDetail `json:"variance"`
	FromChangeRequest bool           `json:"is_from_change_request,omitempty"`
	ChangeRequestID   int64          `json:"change_request_id,omitempty"`
}

// LabourRow is one labour comparison row in the report.
type LabourRow struct {
	MasterLabourID *int64         `json:"master_labour_id,omitempty"`
	Role           string         `json:"role"`
	PlannedHours   float64        `json:"planned_hours"`
	PlannedTotal   float64        `json:"planned_total"`
	ActualHours    float64        `json:"actual_hours"`
	ActualTotal    float64        `json:"actual_total"`
	Balance        float64        `json:"balance"`
	Status         string         `json:"status"`
	Variance       VarianceDetail `json:"variance"`
}

// CostBreakdown is the planned or actual cost block of a sub-item, item, or
// project. Total always equals materials + labour + miscellaneous +
// overhead + profit + transport − discount.
type CostBreakdown struct {
	MaterialsCost  float64 `json:"materials_cost"`
	LabourCost     float64 `json:"labour_cost"`
	BaseTotal      float64 `json:"base_total"`
	Miscellaneous  float64 `json:"miscellaneous"`
	Overhead       float64 `json:"overhead"`
	Profit         float64 `json:"profit"`
	Transport      float64 `json:"transport"`
	DiscountAmount float64 `json:"discount_amount"`
	Total          float64 `json:"total"`
}

// SubItemResult is the computed breakdown of one merged sub-item.
type SubItemResult struct {
	Name              string        `json:"name"`
	FromChangeRequest bool          `json:"is_from_change_request,omitempty"`
	ChangeRequestID   int64         `json:"change_request_id,omitempty"`
	Planned           CostBreakdown `json:"planned"`
	Actual            CostBreakdown `json:"actual"`
	Materials         []MaterialRow `json:"materials"`
	Labour            []LabourRow   `json:"labour"`
}

// ConsumptionFlow reports how cost overruns consume margin buffers.
// Consumption is routed entirely to the profit buffer; the miscellaneous
// and overhead buffers are reported but never consumed.
type ConsumptionFlow struct {
	ExtraCosts             float64 `json:"extra_costs"`
	MiscellaneousConsumed  float64 `json:"miscellaneous_consumed"`
	OverheadConsumed       float64 `json:"overhead_consumed"`
	ProfitConsumed         float64 `json:"profit_consumed"`
	TotalLossBeyondBuffers float64 `json:"total_loss_beyond_buffers"`
}

// SavingsBreakdown sums the favourable variances of an item.
type SavingsBreakdown struct {
	MaterialSavings float64 `json:"material_savings"`
	LabourSavings   float64 `json:"labour_savings"`
	TotalSavings    float64 `json:"total_savings"`
}

// DiscountDetails records how the client discount was resolved.
type DiscountDetails struct {
	SellingPriceBeforeDiscount float64 `json:"selling_price_before_discount"`
	DiscountPercentage         float64 `json:"discount_percentage"`
	DiscountAmount             float64 `json:"discount_amount"`
	ClientAmountAfterDiscount  float64 `json:"client_amount_after_discount"`
	Source                     string  `json:"source"`
}

// ItemReport is the reconciliation result for one BOQ item.
type ItemReport struct {
	MasterItemID                  int64            `json:"master_item_id"`
	Name                          string           `json:"name"`
	Materials                     []MaterialRow    `json:"materials"`
	Labour                        []LabourRow      `json:"labour"`
	SubItemsBreakdown             []SubItemResult  `json:"sub_items_breakdown"`
	Planned                       CostBreakdown    `json:"planned"`
	Actual                        CostBreakdown    `json:"actual"`
	PreliminaryShare              float64          `json:"preliminary_share"`
	Discount                      DiscountDetails  `json:"discount_details"`
	ProfitBeforeDiscount          float64          `json:"profit_before_discount"`
	AfterDiscountNegotiableMargin float64          `json:"after_discount_negotiable_margin"`
	Variance                      VarianceDetail   `json:"variance"`
	ConsumptionFlow               ConsumptionFlow  `json:"consumption_flow"`
	Savings                       SavingsBreakdown `json:"savings_breakdown"`
	CompletionStatus              string           `json:"completion_status"`
}

// Summary is the project-level roll-up of the report.
type Summary struct {
	PlannedTotal               float64        `json:"planned_total"`
	ActualTotal                float64        `json:"actual_total"`
	PreliminaryAmount          float64        `json:"preliminary_amount"`
	SellingPriceBeforeDiscount float64        `json:"selling_price_before_discount"`
	DiscountAmount             float64        `json:"discount_amount"`
	ClientAmountAfterDiscount  float64        `json:"client_amount_after_discount"`
	ActualProjectProfit        float64        `json:"actual_project_profit"`
	ExtraCosts                 float64        `json:"extra_costs"`
	ProfitConsumed             float64        `json:"profit_consumed"`
	TotalSavings               float64        `json:"total_savings"`
	Variance                   VarianceDetail `json:"variance"`
}

// Report is the full reconciliation result. It is a pure function of its
// inputs: identical inputs yield an identical report.
type Report struct {
	ProjectID   int64        `json:"project_id"`
	ProjectName string       `json:"project_name"`
	BOQID       int64        `json:"boq_id"`
	BOQName     string       `json:"boq_name"`
	Items       []ItemReport `json:"items"`
	Summary     Summary      `json:"summary"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

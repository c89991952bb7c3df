// Package boq holds the Bill of Quantities domain: the baselined planned
// cost breakdown a project is estimated and sold against. The planned tree
// is read-only input to the reconciliation engine; it is mutated only by the
// upstream estimation workflow.
package boq

import "errors"

// Default percentage buffers applied when a sub-item does not override them.
const (
	DefaultMiscPercentage           = 10.0
	DefaultOverheadProfitPercentage = 25.0
	DefaultTransportPercentage      = 5.0

	// OverheadShare and ProfitShare split the combined overhead+profit
	// buffer 40/60.
	OverheadShare = 0.4
	ProfitShare   = 0.6
)

// BOQ is the bill-of-quantities header row.
type BOQ struct {
	ID        int64
	ProjectID int64
	Name      string
	Status    string
}

// PlannedTree is the nested planned cost breakdown stored on a BOQ document.
type PlannedTree struct {
	Items              []Item         `json:"items"`
	DiscountPercentage *float64       `json:"discount_percentage,omitempty"`
	DiscountAmount     *float64       `json:"discount_amount,omitempty"`
	Preliminaries      *Preliminaries `json:"preliminaries,omitempty"`
}

// Item groups sub-items under one master item.
type Item struct {
	MasterItemID int64     `json:"master_item_id"`
	Name         string    `json:"name"`
	SubItems     []SubItem `json:"sub_items"`
}

// SubItem is the finest planning granularity; it owns its own cost
// percentages. Pointer fields distinguish "absent" from an explicit zero.
type SubItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`

	BaseTotal   *float64 `json:"base_total,omitempty"`
	PerUnitCost *float64 `json:"per_unit_cost,omitempty"`
	ClientRate  *float64 `json:"client_rate,omitempty"`

	Materials []Material `json:"materials"`
	Labour    []Labour   `json:"labour"`

	MiscPercentage           *float64 `json:"misc_percentage,omitempty"`
	OverheadProfitPercentage *float64 `json:"overhead_profit_percentage,omitempty"`
	TransportPercentage      *float64 `json:"transport_percentage,omitempty"`
	DiscountPercentage       *float64 `json:"discount_percentage,omitempty"`
	DiscountAmount           *float64 `json:"discount_amount,omitempty"`
}

// Material is one planned material line.
type Material struct {
	MasterMaterialID *int64  `json:"master_material_id,omitempty"`
	Name             string  `json:"material_name"`
	Unit             string  `json:"unit,omitempty"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TotalPrice       float64 `json:"total_price"`
}

// Labour is one planned labour line.
type Labour struct {
	MasterLabourID *int64  `json:"master_labour_id,omitempty"`
	Role           string  `json:"role"`
	Hours          float64 `json:"hours"`
	RatePerHour    float64 `json:"rate_per_hour"`
	TotalCost      float64 `json:"total_cost"`
}

// Preliminaries is the project-wide cost not tied to any specific item.
type Preliminaries struct {
	CostDetails *PreliminaryCostDetails `json:"cost_details,omitempty"`
}

// PreliminaryCostDetails carries the preliminary amount and its internal
// cost basis.
type PreliminaryCostDetails struct {
	Amount       float64 `json:"amount"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit,omitempty"`
	Rate         float64 `json:"rate"`
	InternalCost float64 `json:"internal_cost"`
}

// Amount returns the distributable preliminaries amount, zero when none
// are configured. Safe on a nil receiver.
func (p *Preliminaries) Amount() float64 {
	if p == nil || p.CostDetails == nil {
		return 0
	}
	return p.CostDetails.Amount
}

var (
	// ErrNotFound indicates the BOQ or its details are missing.
	ErrNotFound = errors.New("boq: not found")
)

// Package purchases implements the project-level purchase comparison: every
// planned BOQ material reconciled against the change-request purchases
// raised for it, VAT-inclusive and with per-vendor purchase-order splits.
// It shares the name normalization and matching rules of the
// reconciliation engine but works across all of a project's BOQs at once.
package purchases

import "errors"

// Purchase row statuses.
const (
	StatusNotPurchased    = "not_purchased"
	StatusPendingApproval = "pending_approval"
	StatusPurchased       = "purchased"
	StatusUnplanned       = "unplanned"
)

// POChild is one vendor split of a change-request purchase order. A CR
// material bought from three vendors has three PO children; their totals
// sum to the material's purchased amount.
type POChild struct {
	ID              int64
	ChangeRequestID int64
	MaterialName    string
	VendorName      string
	Quantity        float64
	UnitPrice       float64
	TotalPrice      float64
	VATPercent      *float64
}

// Total returns the split total, derived from quantity and unit price when
// the stored value is absent.
func (p POChild) Total() float64 {
	if p.TotalPrice > 0 {
		return p.TotalPrice
	}
	return p.Quantity * p.UnitPrice
}

// VendorSplit is the report view of one PO child.
type VendorSplit struct {
	VendorName string  `json:"vendor_name"`
	Quantity   float64 `json:"quantity"`
	NetTotal   float64 `json:"net_total"`
	VATPercent float64 `json:"vat_percent"`
	GrossTotal float64 `json:"gross_total"`
}

// PurchasedAmounts is the actual side of one comparison row.
type PurchasedAmounts struct {
	Quantity   float64 `json:"quantity"`
	NetTotal   float64 `json:"net_total"`
	VATAmount  float64 `json:"vat_amount"`
	GrossTotal float64 `json:"gross_total"`
}

// ComparisonRow reconciles one planned material against its purchases.
type ComparisonRow struct {
	MasterMaterialID *int64           `json:"master_material_id,omitempty"`
	MaterialName     string           `json:"material_name"`
	Unit             string           `json:"unit,omitempty"`
	PlannedQuantity  float64          `json:"planned_quantity"`
	PlannedTotal     float64          `json:"planned_total"`
	Purchased        PurchasedAmounts `json:"purchased"`
	PendingNetTotal  float64          `json:"pending_net_total"`
	Vendors          []VendorSplit    `json:"vendors,omitempty"`
	ChangeRequestIDs []int64          `json:"change_request_ids,omitempty"`
	Balance          float64          `json:"balance"`
	Status           string           `json:"status"`
}

// BOQComparison groups the rows of one BOQ.
type BOQComparison struct {
	BOQID   int64           `json:"boq_id"`
	BOQName string          `json:"boq_name"`
	Rows    []ComparisonRow `json:"rows"`
}

// ComparisonSummary totals the project.
type ComparisonSummary struct {
	PlannedTotal    float64 `json:"planned_total"`
	PurchasedNet    float64 `json:"purchased_net"`
	VATAmount       float64 `json:"vat_amount"`
	PurchasedGross  float64 `json:"purchased_gross"`
	PendingNetTotal float64 `json:"pending_net_total"`
	Balance         float64 `json:"balance"`
}

// ComparisonReport is the project-level purchase comparison. Like the
// reconciliation report it is recomputed from source records on every
// request and never persisted.
type ComparisonReport struct {
	ProjectID         int64             `json:"project_id"`
	ProjectName       string            `json:"project_name"`
	DefaultVATPercent float64           `json:"default_vat_percent"`
	BOQs              []BOQComparison   `json:"boqs"`
	Summary           ComparisonSummary `json:"summary"`
}

// ErrNotFound indicates the project is missing.
var ErrNotFound = errors.New("purchases: not found")

package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/tracking"
)

func foundationsSubItem() MergedSubItem {
	return MergedSubItem{
		Name:     "Foundations",
		Quantity: 10,
		Rate:     100,
		Materials: []MergedMaterial{
			{MasterMaterialID: iptr(101), Name: "Cement", Quantity: 50, UnitPrice: 6, TotalPrice: 300},
		},
		Labour: []boq.Labour{
			{MasterLabourID: iptr(201), Role: "Mason", Hours: 20, RatePerHour: 10, TotalCost: 200},
		},
	}
}

func TestComputeSubItemPlannedBreakdown(t *testing.T) {
	result := ComputeSubItem(1, foundationsSubItem(), nil, nil, newRecordUsage())

	p := result.Planned
	require.Equal(t, 1000.0, p.BaseTotal)
	require.Equal(t, 300.0, p.MaterialsCost)
	require.Equal(t, 200.0, p.LabourCost)
	require.Equal(t, 100.0, p.Miscellaneous)
	require.Equal(t, 100.0, p.Overhead)
	require.Equal(t, 150.0, p.Profit)
	require.Equal(t, 50.0, p.Transport)
	require.Zero(t, p.DiscountAmount)
	require.Equal(t, 900.0, p.Total)
}

func TestComputeSubItemIdentityHoldsOnRoundedValues(t *testing.T) {
	sub := foundationsSubItem()
	sub.Quantity = 3
	sub.Rate = 33.333
	sub.MiscPercentage = fptr(7.77)
	sub.OverheadProfitPercentage = fptr(13.13)
	sub.TransportPercentage = fptr(2.22)
	sub.DiscountPercentage = fptr(1.5)

	result := ComputeSubItem(1, sub, nil, nil, newRecordUsage())

	for _, b := range []CostBreakdown{result.Planned, result.Actual} {
		sum := b.MaterialsCost + b.LabourCost + b.Miscellaneous + b.Overhead + b.Profit + b.Transport - b.DiscountAmount
		require.InDelta(t, sum, b.Total, 1e-9)
	}
}

func TestComputeSubItemOverrunVariance(t *testing.T) {
	sub := MergedSubItem{
		Name: "Cabling",
		Materials: []MergedMaterial{
			{MasterMaterialID: iptr(101), Name: "Cable", Quantity: 10, UnitPrice: 5},
		},
	}
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cable",
			PurchaseHistory: json.RawMessage(`[{"quantity":10,"unit_price":6}]`)},
	}

	result := ComputeSubItem(1, sub, records, nil, newRecordUsage())

	row := result.Materials[0]
	require.Equal(t, 50.0, row.Planned.Total)
	require.Equal(t, 60.0, row.Actual.Total)
	require.Equal(t, 10.0, row.Variance.Amount)
	require.Equal(t, VarianceOverrun, row.Variance.Status)
	require.Equal(t, StatusCompleted, row.Status)
	require.Equal(t, -10.0, row.Balance)
}

func TestComputeSubItemChangeRequestSide(t *testing.T) {
	sub := MergedSubItem{
		Name:              "Extra Materials - CR #3",
		FromChangeRequest: true,
		ChangeRequestID:   3,
		Materials: []MergedMaterial{
			{Name: "Extra Cable", Quantity: 5, UnitPrice: 20, TotalPrice: 100, FromChangeRequest: true, ChangeRequestID: 3},
		},
	}

	result := ComputeSubItem(1, sub, nil, nil, newRecordUsage())

	require.Zero(t, result.Planned.Total, "synthetic CR sub-items carry no planned cost")
	require.Zero(t, result.Actual.Miscellaneous, "no percentage buffers on pure overrun")
	require.Equal(t, 100.0, result.Actual.MaterialsCost)
	require.Equal(t, 100.0, result.Actual.Total)

	row := result.Materials[0]
	require.Zero(t, row.Planned.Total)
	require.Equal(t, 100.0, row.Actual.Total)
	require.Equal(t, -100.0, row.Balance)
	require.Equal(t, StatusFromChangeRequest, row.Status)
	require.Equal(t, VarianceUnplanned, row.Variance.Status)
}

func TestComputeSubItemRevisedMaterialUsesCRActuals(t *testing.T) {
	sub := foundationsSubItem()
	sub.Materials[0].CRUpdate = &CRRevision{ChangeRequestID: 7, Quantity: 60, UnitPrice: 7, TotalPrice: 420}

	result := ComputeSubItem(1, sub, nil, nil, newRecordUsage())

	row := result.Materials[0]
	require.Equal(t, 300.0, row.Planned.Total, "the planned baseline survives a revision")
	require.Equal(t, 420.0, row.Actual.Total)
	require.Equal(t, int64(7), row.ChangeRequestID)
	require.False(t, row.FromChangeRequest)
}

func TestComputeSubItemTrackingBeatsRevision(t *testing.T) {
	sub := foundationsSubItem()
	sub.Materials[0].CRUpdate = &CRRevision{ChangeRequestID: 7, Quantity: 60, UnitPrice: 7, TotalPrice: 420}
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cement",
			PurchaseHistory: json.RawMessage(`[{"quantity":55,"unit_price":6.5}]`)},
	}

	result := ComputeSubItem(1, sub, records, nil, newRecordUsage())

	require.Equal(t, 357.5, result.Materials[0].Actual.Total, "recorded procurement outranks the CR revision")
}

func TestComputeSubItemLabourNeverDoubleCounted(t *testing.T) {
	records := []tracking.LabourRecord{
		{ID: 1, MasterItemID: 1, MasterLabourID: iptr(201), Role: "Mason",
			History: []tracking.LabourEntry{{Hours: 25, RatePerHour: 10}}},
	}
	usage := newRecordUsage()

	first := ComputeSubItem(1, foundationsSubItem(), nil, records, usage)
	second := ComputeSubItem(1, foundationsSubItem(), nil, records, usage)

	require.Equal(t, 250.0, first.Labour[0].ActualTotal)
	require.Zero(t, second.Labour[0].ActualTotal, "the same labour record must land in exactly one sub-item")
}

func TestSellingBaseFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		sub  MergedSubItem
		want float64
	}{
		{"quantity and rate", MergedSubItem{Quantity: 10, Rate: 100, BaseTotal: fptr(5)}, 1000},
		{"base total", MergedSubItem{BaseTotal: fptr(800), PerUnitCost: fptr(5)}, 800},
		{"per unit cost", MergedSubItem{PerUnitCost: fptr(70), ClientRate: fptr(5)}, 70},
		{"client rate", MergedSubItem{ClientRate: fptr(60)}, 60},
		{"nothing", MergedSubItem{}, 0},
		{"change request", MergedSubItem{Quantity: 10, Rate: 100, FromChangeRequest: true}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, sellingBase(tc.sub))
		})
	}
}

func TestVarianceClassification(t *testing.T) {
	tests := []struct {
		planned, actual float64
		status          string
	}{
		{50, 60, VarianceOverrun},
		{50, 40, VarianceSaved},
		{50, 50, VarianceOnBudget},
		{0, 100, VarianceUnplanned},
		{0, 0, VarianceOnBudget},
	}
	for _, tc := range tests {
		detail := varianceFor(tc.planned, tc.actual)
		require.Equal(t, tc.status, detail.Status)
		require.Equal(t, round2(tc.actual-tc.planned), detail.Amount)
	}
}

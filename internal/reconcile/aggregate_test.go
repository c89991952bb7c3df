package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/tracking"
)

func mergedFixture() MergedTree {
	return MergeChangeRequests(plannedFixture(), nil)
}

func TestBuildReportDistributesPreliminaries(t *testing.T) {
	merged := mergedFixture()
	merged.Preliminaries = &boq.Preliminaries{CostDetails: &boq.PreliminaryCostDetails{Amount: 400}}

	items := BuildReport(merged, nil, nil)

	// Bases are 1000 and 1000, so the 400 splits evenly.
	require.Equal(t, 200.0, items[0].PreliminaryShare)
	require.Equal(t, 200.0, items[1].PreliminaryShare)

	var total float64
	for _, item := range items {
		total += item.PreliminaryShare
	}
	require.InDelta(t, 400.0, total, 0.01)
}

func TestBuildReportZeroBaseGetsNoPreliminaryShare(t *testing.T) {
	merged := MergedTree{
		Items:         []MergedItem{{MasterItemID: 1, Name: "Empty", SubItems: []MergedSubItem{{Name: "Nothing"}}}},
		Preliminaries: &boq.Preliminaries{CostDetails: &boq.PreliminaryCostDetails{Amount: 400}},
	}
	items := BuildReport(merged, nil, nil)
	require.Zero(t, items[0].PreliminaryShare)
}

func TestBuildReportBOQDiscountPercentage(t *testing.T) {
	merged := mergedFixture()
	merged.Items = merged.Items[:1]
	merged.DiscountPercentage = fptr(10)

	items := BuildReport(merged, nil, nil)

	d := items[0].Discount
	require.Equal(t, 1000.0, d.SellingPriceBeforeDiscount)
	require.Equal(t, 100.0, d.DiscountAmount)
	require.Equal(t, 900.0, d.ClientAmountAfterDiscount)
	require.Equal(t, "boq_percentage", d.Source)
}

func TestBuildReportSubItemDiscountWins(t *testing.T) {
	merged := mergedFixture()
	merged.Items = merged.Items[:1]
	merged.DiscountPercentage = fptr(10)
	merged.Items[0].SubItems[0].DiscountAmount = fptr(75)

	items := BuildReport(merged, nil, nil)

	d := items[0].Discount
	require.Equal(t, 75.0, d.DiscountAmount)
	require.Equal(t, "sub_items", d.Source)
	require.Equal(t, 925.0, d.ClientAmountAfterDiscount)
}

func TestBuildReportMarginFields(t *testing.T) {
	merged := mergedFixture()
	merged.Items = merged.Items[:1]
	merged.DiscountPercentage = fptr(10)

	items := BuildReport(merged, nil, nil)

	item := items[0]
	require.Equal(t, round2(1000-item.Actual.Total), item.ProfitBeforeDiscount)
	require.Equal(t, round2(900-item.Actual.Total), item.AfterDiscountNegotiableMargin)
}

func TestBuildReportSweepsUnplannedMaterials(t *testing.T) {
	merged := mergedFixture()
	records := []tracking.MaterialRecord{
		{ID: 50, BOQID: 1, MasterItemID: 1, MaterialName: "Diesel",
			PurchaseHistory: json.RawMessage(`[{"quantity":100,"unit_price":1.2}]`)},
	}

	items := BuildReport(merged, records, nil)

	var unplanned *MaterialRow
	for i := range items[0].Materials {
		if items[0].Materials[i].Status == StatusUnplanned {
			unplanned = &items[0].Materials[i]
		}
	}
	require.NotNil(t, unplanned)
	require.Equal(t, "Diesel", unplanned.Name)
	require.Equal(t, 120.0, unplanned.Actual.Total)
	require.Zero(t, unplanned.Planned.Total)
	require.Equal(t, VarianceUnplanned, unplanned.Variance.Status)

	// Unplanned spend joins the item's actual side and its overrun flow.
	base := BuildReport(merged, nil, nil)
	require.Equal(t, round2(base[0].Actual.Total+120), items[0].Actual.Total)
	require.Equal(t, 120.0, items[0].ConsumptionFlow.ExtraCosts)
}

func TestBuildReportAssignsParentLabourToFirstSubItem(t *testing.T) {
	merged := mergedFixture()
	records := []tracking.LabourRecord{
		{ID: 60, BOQID: 1, MasterItemID: 1, Role: "Site Supervisor",
			History: []tracking.LabourEntry{{Hours: 8, RatePerHour: 15}}},
	}

	items := BuildReport(merged, nil, records)

	sub := items[0].SubItemsBreakdown[0]
	require.Len(t, sub.Labour, 2)
	row := sub.Labour[1]
	require.Equal(t, "Site Supervisor", row.Role)
	require.Equal(t, StatusUnplanned, row.Status)
	require.Equal(t, 120.0, row.ActualTotal)
	require.Equal(t, 120.0, sub.Actual.LabourCost)

	// The roll-up counts it exactly once.
	require.Equal(t, 120.0, items[0].Actual.LabourCost)
}

func TestBuildReportItemTotalsAreSumsOfSubItems(t *testing.T) {
	merged := mergedFixture()
	items := BuildReport(merged, nil, nil)

	for _, item := range items {
		var planned, actual float64
		for _, sub := range item.SubItemsBreakdown {
			planned += sub.Planned.Total
			actual += sub.Actual.Total
		}
		require.InDelta(t, planned, item.Planned.Total, 0.01)
		require.InDelta(t, actual, item.Actual.Total, 0.01)
	}
}

func TestBuildSummaryConservation(t *testing.T) {
	merged := mergedFixture()
	merged.DiscountPercentage = fptr(10)
	items := BuildReport(merged, nil, nil)
	summary := BuildSummary(items, merged)

	var planned, actual float64
	for _, item := range items {
		planned += item.Planned.Total
		actual += item.Actual.Total
	}
	require.InDelta(t, planned, summary.PlannedTotal, 0.01)
	require.InDelta(t, actual, summary.ActualTotal, 0.01)
	require.Equal(t, 2000.0, summary.SellingPriceBeforeDiscount)
	require.Equal(t, 200.0, summary.DiscountAmount)
	require.Equal(t, 1800.0, summary.ClientAmountAfterDiscount)
	require.Equal(t, round2(1800-summary.ActualTotal), summary.ActualProjectProfit)
}

func TestBuildSummaryExplicitBOQAmountWins(t *testing.T) {
	merged := mergedFixture()
	merged.DiscountPercentage = fptr(10)
	merged.DiscountAmount = fptr(150)
	items := BuildReport(merged, nil, nil)
	summary := BuildSummary(items, merged)
	require.Equal(t, 150.0, summary.DiscountAmount)
}

func TestBuildReportCompletionStatus(t *testing.T) {
	merged := mergedFixture()
	merged.Items = merged.Items[:1]

	items := BuildReport(merged, nil, nil)
	require.Equal(t, CompletionNotStarted, items[0].CompletionStatus)

	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cement",
			PurchaseHistory: json.RawMessage(`[{"quantity":50,"unit_price":6}]`)},
	}
	items = BuildReport(merged, records, nil)
	require.Equal(t, CompletionInProgress, items[0].CompletionStatus, "labour line still pending")

	labour := []tracking.LabourRecord{
		{ID: 2, MasterItemID: 1, MasterLabourID: iptr(201), Role: "Mason",
			History: []tracking.LabourEntry{{Hours: 20, RatePerHour: 10}}},
	}
	items = BuildReport(merged, records, labour)
	require.Equal(t, CompletionCompleted, items[0].CompletionStatus)
}

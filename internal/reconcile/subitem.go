package reconcile

import (
	"math"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/tracking"
)

// recordUsage tracks which tracking rows have been consumed while an item's
// sub-items are computed, so one actual record is never counted twice.
type recordUsage struct {
	materials map[int64]bool
	labour    map[int64]bool
}

func newRecordUsage() *recordUsage {
	return &recordUsage{materials: make(map[int64]bool), labour: make(map[int64]bool)}
}

// ComputeSubItem produces the planned and actual breakdown for one merged
// sub-item, matching its material and labour lines against the item's
// tracking rows.
func ComputeSubItem(itemID int64, sub MergedSubItem, materialRecs []tracking.MaterialRecord, labourRecs []tracking.LabourRecord, usage *recordUsage) SubItemResult {
	result := SubItemResult{
		Name:              sub.Name,
		FromChangeRequest: sub.FromChangeRequest,
		ChangeRequestID:   sub.ChangeRequestID,
	}

	var plannedMaterials, actualMaterials float64
	for _, m := range sub.Materials {
		row := buildMaterialRow(itemID, m, materialRecs, usage)
		plannedMaterials += row.Planned.Total
		actualMaterials += row.Actual.Total
		result.Materials = append(result.Materials, row)
	}

	var plannedLabour, actualLabour float64
	for _, l := range sub.Labour {
		row := buildLabourRow(itemID, l, labourRecs, usage)
		plannedLabour += row.PlannedTotal
		actualLabour += row.ActualTotal
		result.Labour = append(result.Labour, row)
	}

	base := sellingBase(sub)
	plannedBase := base
	if plannedBase == 0 {
		plannedBase = plannedMaterials + plannedLabour
	}
	actualBase := base
	if actualBase == 0 && !sub.FromChangeRequest {
		actualBase = actualMaterials + actualLabour
	}

	result.Planned = buildBreakdown(sub, plannedBase, plannedMaterials, plannedLabour)
	result.Actual = buildBreakdown(sub, actualBase, actualMaterials, actualLabour)
	return result
}

// sellingBase resolves the client-facing selling basis used for the
// percentage buffers: quantity × rate when both are positive, then the
// stored base_total, per_unit_cost, and client_rate fallbacks. Synthetic CR
// sub-items have no selling basis; they are pure overrun.
func sellingBase(sub MergedSubItem) float64 {
	if sub.FromChangeRequest {
		return 0
	}
	if sub.Quantity > 0 && sub.Rate > 0 {
		return sub.Quantity * sub.Rate
	}
	for _, fallback := range []*float64{sub.BaseTotal, sub.PerUnitCost, sub.ClientRate} {
		if fallback != nil && *fallback > 0 {
			return *fallback
		}
	}
	return 0
}

// buildBreakdown computes the percentage buffers on the base and assembles
// the cost block. The identity total = materials + labour + misc + overhead
// + profit + transport − discount holds exactly on the rounded values.
func buildBreakdown(sub MergedSubItem, base, materialsCost, labourCost float64) CostBreakdown {
	misc := base * sub.MiscPct() / 100
	overheadProfit := base * sub.OverheadProfitPct() / 100
	overhead := overheadProfit * boq.OverheadShare
	profit := overheadProfit * boq.ProfitShare
	transport := base * sub.TransportPct() / 100

	var discount float64
	switch {
	case sub.DiscountAmount != nil:
		discount = *sub.DiscountAmount
	case sub.DiscountPercentage != nil:
		discount = base * *sub.DiscountPercentage / 100
	}

	b := CostBreakdown{
		MaterialsCost:  round2(materialsCost),
		LabourCost:     round2(labourCost),
		BaseTotal:      round2(base),
		Miscellaneous:  round2(misc),
		Overhead:       round2(overhead),
		Profit:         round2(profit),
		Transport:      round2(transport),
		DiscountAmount: round2(discount),
	}
	b.Total = round2(b.MaterialsCost + b.LabourCost + b.Miscellaneous + b.Overhead + b.Profit + b.Transport - b.DiscountAmount)
	return b
}

func buildMaterialRow(itemID int64, m MergedMaterial, records []tracking.MaterialRecord, usage *recordUsage) MaterialRow {
	row := MaterialRow{
		MasterMaterialID:  m.MasterMaterialID,
		Name:              m.Name,
		Unit:              m.Unit,
		FromChangeRequest: m.FromChangeRequest,
		ChangeRequestID:   m.ChangeRequestID,
	}
	if m.CRUpdate != nil {
		row.ChangeRequestID = m.CRUpdate.ChangeRequestID
	}
	if !m.FromChangeRequest {
		row.Planned = LineAmounts{
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Total:     round2(lineTotal(m.Quantity, m.UnitPrice, m.TotalPrice)),
		}
	}

	matched := MatchMaterial(MaterialKey{MasterItemID: itemID, MasterMaterialID: m.MasterMaterialID, Name: m.Name}, records)
	switch {
	case matched != nil:
		usage.materials[matched.ID] = true
		row.Actual = sumPurchases(matched.Entries())
	case m.CRUpdate != nil:
		row.Actual = LineAmounts{Quantity: m.CRUpdate.Quantity, UnitPrice: m.CRUpdate.UnitPrice, Total: round2(m.CRUpdate.TotalPrice)}
	case m.FromChangeRequest:
		row.Actual = LineAmounts{Quantity: m.Quantity, UnitPrice: m.UnitPrice, Total: round2(lineTotal(m.Quantity, m.UnitPrice, m.TotalPrice))}
	}

	row.Balance = round2(row.Planned.Total - row.Actual.Total)
	row.Variance = varianceFor(row.Planned.Total, row.Actual.Total)
	row.Status = materialStatus(row)
	return row
}

func materialStatus(row MaterialRow) string {
	if row.FromChangeRequest {
		return StatusFromChangeRequest
	}
	if row.Actual.Total > 0 {
		return StatusCompleted
	}
	return StatusPending
}

func buildLabourRow(itemID int64, l boq.Labour, records []tracking.LabourRecord, usage *recordUsage) LabourRow {
	row := LabourRow{
		MasterLabourID: l.MasterLabourID,
		Role:           l.Role,
		PlannedHours:   l.Hours,
		PlannedTotal:   round2(labourTotal(l)),
	}
	matched := MatchLabour(LabourKey{MasterItemID: itemID, MasterLabourID: l.MasterLabourID}, records)
	if matched != nil && !usage.labour[matched.ID] {
		usage.labour[matched.ID] = true
		row.ActualHours = matched.TotalHours()
		row.ActualTotal = round2(matched.TotalCost())
	}
	row.Balance = round2(row.PlannedTotal - row.ActualTotal)
	row.Variance = varianceFor(row.PlannedTotal, row.ActualTotal)
	if row.ActualTotal > 0 {
		row.Status = StatusCompleted
	} else {
		row.Status = StatusPending
	}
	return row
}

func varianceFor(planned, actual float64) VarianceDetail {
	amount := round2(actual - planned)
	detail := VarianceDetail{Amount: amount}
	if planned != 0 {
		detail.Percent = round2(amount / math.Abs(planned) * 100)
	}
	switch {
	case planned == 0 && actual > 0:
		detail.Status = VarianceUnplanned
	case amount > 0:
		detail.Status = VarianceOverrun
	case amount < 0:
		detail.Status = VarianceSaved
	default:
		detail.Status = VarianceOnBudget
	}
	return detail
}

// sumPurchases folds a purchase history into one actual line.
func sumPurchases(entries []tracking.PurchaseEntry) LineAmounts {
	var qty, total float64
	for _, e := range entries {
		qty += e.Quantity
		total += e.Total()
	}
	line := LineAmounts{Quantity: qty, Total: round2(total)}
	if qty > 0 {
		line.UnitPrice = round2(total / qty)
	}
	return line
}

func lineTotal(qty, unitPrice, total float64) float64 {
	if total > 0 {
		return total
	}
	return qty * unitPrice
}

func labourTotal(l boq.Labour) float64 {
	if l.TotalCost > 0 {
		return l.TotalCost
	}
	return l.Hours * l.RatePerHour
}

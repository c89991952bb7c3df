package reconcile

import (
	"github.com/granite-erp/granite-erp/internal/tracking"
)

// PreliminaryAmount returns the distributable preliminaries amount carried
// over from the planned tree.
func (t MergedTree) PreliminaryAmount() float64 {
	return t.Preliminaries.Amount()
}

// BuildReport computes the full reconciliation report from a merged tree
// and the BOQ's actual tracking rows. Two passes run over the items: the
// first matches every planned line, the second sweeps the actual records
// nothing claimed into unplanned rows. Item totals are summed from sub-item
// results, never re-derived.
func BuildReport(merged MergedTree, materialRecs []tracking.MaterialRecord, labourRecs []tracking.LabourRecord) []ItemReport {
	usage := newRecordUsage()

	items := make([]ItemReport, 0, len(merged.Items))
	for _, item := range merged.Items {
		report := ItemReport{MasterItemID: item.MasterItemID, Name: item.Name}
		for _, sub := range item.SubItems {
			report.SubItemsBreakdown = append(report.SubItemsBreakdown, ComputeSubItem(item.MasterItemID, sub, materialRecs, labourRecs, usage))
		}
		items = append(items, report)
	}

	// Sweep leftovers only after every item had its chance to claim a
	// record through the matching cascade.
	for i := range merged.Items {
		sweepUnplannedMaterials(&items[i], merged.Items[i].MasterItemID, materialRecs, usage)
		sweepParentLabour(&items[i], merged.Items[i].MasterItemID, labourRecs, usage)
	}

	for i := range items {
		rollUpItem(&items[i])
	}
	distributePreliminariesAndDiscounts(items, merged)
	for i := range items {
		analyzeItem(&items[i])
	}
	return items
}

// sweepUnplannedMaterials turns actual purchase records no planned line
// claimed into unplanned comparison rows on their owning item.
func sweepUnplannedMaterials(item *ItemReport, masterItemID int64, records []tracking.MaterialRecord, usage *recordUsage) {
	for i := range records {
		rec := &records[i]
		if rec.MasterItemID != masterItemID || usage.materials[rec.ID] {
			continue
		}
		actual := sumPurchases(rec.Entries())
		if actual.Total == 0 {
			continue
		}
		usage.materials[rec.ID] = true
		item.Materials = append(item.Materials, MaterialRow{
			MasterMaterialID: rec.MasterMaterialID,
			Name:             rec.MaterialName,
			Actual:           actual,
			Balance:          round2(-actual.Total),
			Status:           StatusUnplanned,
			Variance:         varianceFor(0, actual.Total),
		})
	}
}

// sweepParentLabour assigns labour recorded against the item itself, rather
// than any planned labour line, to the item's first non-CR sub-item. The
// usage set guarantees a labour record lands in exactly one sub-item.
func sweepParentLabour(item *ItemReport, masterItemID int64, records []tracking.LabourRecord, usage *recordUsage) {
	target := -1
	for i := range item.SubItemsBreakdown {
		if !item.SubItemsBreakdown[i].FromChangeRequest {
			target = i
			break
		}
	}
	for i := range records {
		rec := &records[i]
		if rec.MasterItemID != masterItemID || usage.labour[rec.ID] {
			continue
		}
		total := rec.TotalCost()
		if total == 0 {
			continue
		}
		usage.labour[rec.ID] = true
		row := LabourRow{
			MasterLabourID: rec.MasterLabourID,
			Role:           rec.Role,
			ActualHours:    rec.TotalHours(),
			ActualTotal:    round2(total),
			Balance:        round2(-total),
			Status:         StatusUnplanned,
			Variance:       varianceFor(0, total),
		}
		if target >= 0 {
			sub := &item.SubItemsBreakdown[target]
			sub.Labour = append(sub.Labour, row)
			sub.Actual.LabourCost = round2(sub.Actual.LabourCost + row.ActualTotal)
			sub.Actual.Total = round2(sub.Actual.Total + row.ActualTotal)
		} else {
			item.Labour = append(item.Labour, row)
		}
	}
}

// rollUpItem sums the sub-item breakdowns into the item-level cost blocks
// and flattens the comparison rows. Unplanned material rows were attached
// directly to the item and join the actual side here.
func rollUpItem(item *ItemReport) {
	var planned, actual CostBreakdown
	for _, sub := range item.SubItemsBreakdown {
		addBreakdown(&planned, sub.Planned)
		addBreakdown(&actual, sub.Actual)
	}

	unplannedRows := item.Materials
	item.Materials = nil
	for _, sub := range item.SubItemsBreakdown {
		item.Materials = append(item.Materials, sub.Materials...)
		item.Labour = append(item.Labour, sub.Labour...)
	}
	for _, row := range unplannedRows {
		item.Materials = append(item.Materials, row)
		actual.MaterialsCost += row.Actual.Total
		actual.Total += row.Actual.Total
	}

	item.Planned = roundBreakdown(planned)
	item.Actual = roundBreakdown(actual)
	item.Variance = varianceFor(item.Planned.Total, item.Actual.Total)
	item.CompletionStatus = completionStatus(item.Materials, item.Labour)
}

func addBreakdown(dst *CostBreakdown, src CostBreakdown) {
	dst.MaterialsCost += src.MaterialsCost
	dst.LabourCost += src.LabourCost
	dst.BaseTotal += src.BaseTotal
	dst.Miscellaneous += src.Miscellaneous
	dst.Overhead += src.Overhead
	dst.Profit += src.Profit
	dst.Transport += src.Transport
	dst.DiscountAmount += src.DiscountAmount
	dst.Total += src.Total
}

func roundBreakdown(b CostBreakdown) CostBreakdown {
	return CostBreakdown{
		MaterialsCost:  round2(b.MaterialsCost),
		LabourCost:     round2(b.LabourCost),
		BaseTotal:      round2(b.BaseTotal),
		Miscellaneous:  round2(b.Miscellaneous),
		Overhead:       round2(b.Overhead),
		Profit:         round2(b.Profit),
		Transport:      round2(b.Transport),
		DiscountAmount: round2(b.DiscountAmount),
		Total:          round2(b.Total),
	}
}

func completionStatus(materials []MaterialRow, labour []LabourRow) string {
	total := 0
	done := 0
	for _, row := range materials {
		if row.Status == StatusUnplanned {
			continue
		}
		total++
		if row.Actual.Total > 0 {
			done++
		}
	}
	for _, row := range labour {
		if row.Status == StatusUnplanned {
			continue
		}
		total++
		if row.ActualTotal > 0 {
			done++
		}
	}
	switch {
	case total == 0 || done == 0:
		return CompletionNotStarted
	case done == total:
		return CompletionCompleted
	default:
		return CompletionInProgress
	}
}

// distributePreliminariesAndDiscounts allocates the project-wide
// preliminaries cost across items in proportion to their planned base and
// resolves the client discount: explicit sub-item discount amounts win,
// otherwise the BOQ-level percentage applies to the selling price.
func distributePreliminariesAndDiscounts(items []ItemReport, merged MergedTree) {
	var totalBase float64
	for i := range items {
		totalBase += items[i].Planned.BaseTotal
	}
	preliminary := merged.PreliminaryAmount()

	for i := range items {
		item := &items[i]
		var share float64
		if preliminary != 0 && totalBase != 0 {
			share = preliminary * item.Planned.BaseTotal / totalBase
		}
		item.PreliminaryShare = round2(share)

		selling := round2(item.Planned.BaseTotal + item.PreliminaryShare)
		discount := DiscountDetails{SellingPriceBeforeDiscount: selling, Source: "none"}

		if explicit := explicitSubItemDiscount(merged.Items, item.MasterItemID); explicit > 0 {
			discount.DiscountAmount = round2(explicit)
			discount.Source = "sub_items"
			if selling != 0 {
				discount.DiscountPercentage = round2(explicit / selling * 100)
			}
		} else if merged.DiscountPercentage != nil && *merged.DiscountPercentage > 0 {
			discount.DiscountPercentage = *merged.DiscountPercentage
			discount.DiscountAmount = round2(selling * *merged.DiscountPercentage / 100)
			discount.Source = "boq_percentage"
		}
		discount.ClientAmountAfterDiscount = round2(selling - discount.DiscountAmount)

		item.Discount = discount
		item.ProfitBeforeDiscount = round2(selling - item.Actual.Total)
		item.AfterDiscountNegotiableMargin = round2(discount.ClientAmountAfterDiscount - item.Actual.Total)
	}
}

func explicitSubItemDiscount(items []MergedItem, masterItemID int64) float64 {
	var total float64
	for _, item := range items {
		if item.MasterItemID != masterItemID {
			continue
		}
		for _, sub := range item.SubItems {
			if sub.DiscountAmount != nil {
				total += *sub.DiscountAmount
			}
		}
	}
	return total
}

// BuildSummary rolls the item reports up to the project level. The combined
// discount is recomputed on the project subtotal with the same resolution
// rule the items use.
func BuildSummary(items []ItemReport, merged MergedTree) Summary {
	var s Summary
	var totalSelling, itemDiscounts float64
	for _, item := range items {
		s.PlannedTotal += item.Planned.Total
		s.ActualTotal += item.Actual.Total
		totalSelling += item.Discount.SellingPriceBeforeDiscount
		itemDiscounts += item.Discount.DiscountAmount
		s.ExtraCosts += item.ConsumptionFlow.ExtraCosts
		s.ProfitConsumed += item.ConsumptionFlow.ProfitConsumed
		s.TotalSavings += item.Savings.TotalSavings
	}
	s.PlannedTotal = round2(s.PlannedTotal)
	s.ActualTotal = round2(s.ActualTotal)
	s.PreliminaryAmount = round2(merged.PreliminaryAmount())
	s.SellingPriceBeforeDiscount = round2(totalSelling)

	switch {
	case merged.DiscountAmount != nil:
		s.DiscountAmount = round2(*merged.DiscountAmount)
	case merged.DiscountPercentage != nil && *merged.DiscountPercentage > 0:
		s.DiscountAmount = round2(totalSelling * *merged.DiscountPercentage / 100)
	default:
		s.DiscountAmount = round2(itemDiscounts)
	}
	s.ClientAmountAfterDiscount = round2(s.SellingPriceBeforeDiscount - s.DiscountAmount)
	s.ActualProjectProfit = round2(s.ClientAmountAfterDiscount - s.ActualTotal)
	s.ExtraCosts = round2(s.ExtraCosts)
	s.ProfitConsumed = round2(s.ProfitConsumed)
	s.TotalSavings = round2(s.TotalSavings)
	s.Variance = varianceFor(s.PlannedTotal, s.ActualTotal)
	return s
}

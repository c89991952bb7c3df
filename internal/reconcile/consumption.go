package reconcile

// analyzeItem computes the margin-buffer consumption and savings of one
// item from its comparison rows. Change-request and unplanned lines count
// with their full actual cost since nothing was budgeted for them; planned
// lines contribute only their overrun portion. Overruns draw on the profit
// margin alone, the miscellaneous and overhead buffers stay untouched so
// the report shows them at full planned value.
func analyzeItem(item *ItemReport) {
	var extra, materialSavings, labourSavings float64

	for _, row := range item.Materials {
		switch {
		case row.FromChangeRequest || row.Status == StatusUnplanned:
			extra += row.Actual.Total
		case row.Variance.Amount > 0:
			extra += row.Variance.Amount
		case row.Variance.Amount < 0 && row.Actual.Total > 0:
			materialSavings += -row.Variance.Amount
		}
	}
	for _, row := range item.Labour {
		switch {
		case row.Status == StatusUnplanned:
			extra += row.ActualTotal
		case row.Variance.Amount > 0:
			extra += row.Variance.Amount
		case row.Variance.Amount < 0 && row.ActualTotal > 0:
			labourSavings += -row.Variance.Amount
		}
	}

	extra = round2(extra)
	item.ConsumptionFlow = ConsumptionFlow{
		ExtraCosts:     extra,
		ProfitConsumed: extra,
	}
	item.ConsumptionFlow.TotalLossBeyondBuffers = round2(extra - item.ConsumptionFlow.MiscellaneousConsumed - item.ConsumptionFlow.OverheadConsumed - item.ConsumptionFlow.ProfitConsumed)

	item.Savings = SavingsBreakdown{
		MaterialSavings: round2(materialSavings),
		LabourSavings:   round2(labourSavings),
		TotalSavings:    round2(materialSavings + labourSavings),
	}
}

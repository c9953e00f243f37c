// Package finance derives per-unit financial figures from raw billing rows.
// Every function here is pure and total over its input.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"survey-bknd/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Summarize totals a unit's bills. The result does not depend on input order.
func Summarize(bills []models.Bill) models.FinancialSummary {
	totalDue := decimal.Zero
	totalPaid := decimal.Zero
	outstanding := decimal.Zero
	var lastPaid *time.Time

	for _, b := range bills {
		due := b.Due()
		totalDue = totalDue.Add(due)
		totalPaid = totalPaid.Add(b.Paid())

		if !b.PaymentStatus.IsPaid() {
			outstanding = outstanding.Add(due)
			continue
		}
		if b.PaidDate != nil && (lastPaid == nil || b.PaidDate.After(*lastPaid)) {
			d := *b.PaidDate
			lastPaid = &d
		}
	}

	return models.FinancialSummary{
		TotalDue:     totalDue,
		TotalPaid:    totalPaid,
		Outstanding:  outstanding,
		RecoveryRate: RecoveryRate(totalPaid, totalDue),
		LastPaidDate: lastPaid,
	}
}

// RecoveryRate is paid/due as a percentage, 0 when nothing is due.
// Overpayment is reported as is, so the rate may exceed 100.
func RecoveryRate(paid, due decimal.Decimal) float64 {
	if !due.IsPositive() {
		return 0
	}
	return paid.Mul(hundred).Div(due).InexactFloat64()
}

// BuildTimeline lays bills onto the 12 months ending at ref.
func BuildTimeline(bills []models.Bill, ref models.Month) models.HistoryTimeline {
	first := ref.AddMonths(-(models.TimelineLength - 1))

	byMonth := make(map[models.Month]bool, len(bills))
	for _, b := range bills {
		if b.BillMonth.Before(first) || ref.Before(b.BillMonth) {
			continue
		}
		// duplicate months should not exist; if they do, any paid bill marks the month paid
		byMonth[b.BillMonth] = byMonth[b.BillMonth] || b.PaymentStatus.IsPaid()
	}

	timeline := make(models.HistoryTimeline, models.TimelineLength)
	for i := range timeline {
		m := first.AddMonths(i)
		timeline[i].Month = m
		if paid, ok := byMonth[m]; ok {
			p := paid
			timeline[i].Paid = &p
		}
	}
	return timeline
}

// Hydrate attaches the summary and timeline to a unit.
func Hydrate(unit models.SurveyUnit, ref models.Month) models.HydratedUnit {
	return models.HydratedUnit{
		SurveyUnit: unit,
		Summary:    Summarize(unit.Bills),
		Timeline:   BuildTimeline(unit.Bills, ref),
	}
}

// HydrateAll hydrates a page of units, keeping the page order.
func HydrateAll(units []models.SurveyUnit, ref models.Month) []models.HydratedUnit {
	out := make([]models.HydratedUnit, 0, len(units))
	for _, u := range units {
		out = append(out, Hydrate(u, ref))
	}
	return out
}

// Total sums rollup rows into a single row named name.
func Total(name string, rows []models.RollupRow) models.RollupRow {
	total := models.RollupRow{Name: name, Amount: decimal.Zero}
	for _, r := range rows {
		total.UnitCount += r.UnitCount
		total.PaidCount += r.PaidCount
		total.TransactionCount += r.TransactionCount
		total.Amount = total.Amount.Add(r.Amount)
	}
	return total
}

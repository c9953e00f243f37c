package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-bknd/internal/models"
)

func amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func bill(month models.Month, due, paid int64, status models.PaymentStatus, paidDate *time.Time) models.Bill {
	return models.Bill{
		SurveyID:      "S-001",
		BillMonth:     month,
		AmountDue:     amount(due),
		AmountPaid:    amount(paid),
		PaymentStatus: status,
		PaidDate:      paidDate,
	}
}

func TestSummarizeScenario(t *testing.T) {
	bills := []models.Bill{
		bill(models.NewMonth(2025, time.January), 1000, 1000, models.PaymentPaid, date(2025, time.January, 15)),
		bill(models.NewMonth(2025, time.February), 1000, 0, models.PaymentUnpaid, nil),
	}

	s := Summarize(bills)

	assert.True(t, s.TotalDue.Equal(decimal.NewFromInt(2000)), "total due %s", s.TotalDue)
	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(1000)), "total paid %s", s.TotalPaid)
	assert.True(t, s.Outstanding.Equal(decimal.NewFromInt(1000)), "outstanding %s", s.Outstanding)
	assert.Equal(t, 50.0, s.RecoveryRate)
	require.NotNil(t, s.LastPaidDate)
	assert.Equal(t, *date(2025, time.January, 15), *s.LastPaidDate)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.True(t, s.TotalDue.IsZero())
	assert.True(t, s.TotalPaid.IsZero())
	assert.True(t, s.Outstanding.IsZero())
	assert.Zero(t, s.RecoveryRate)
	assert.Nil(t, s.LastPaidDate)
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	a := bill(models.NewMonth(2025, time.March), 500, 500, models.PaymentPaid, date(2025, time.March, 20))
	b := bill(models.NewMonth(2025, time.January), 500, 500, models.PaymentPaid, date(2025, time.January, 2))
	c := bill(models.NewMonth(2025, time.February), 700, 0, models.PaymentUnpaid, nil)

	forward := Summarize([]models.Bill{a, b, c})
	reverse := Summarize([]models.Bill{c, b, a})

	assert.True(t, forward.TotalDue.Equal(reverse.TotalDue))
	assert.True(t, forward.Outstanding.Equal(reverse.Outstanding))
	assert.Equal(t, forward.RecoveryRate, reverse.RecoveryRate)
	require.NotNil(t, reverse.LastPaidDate)
	assert.Equal(t, *date(2025, time.March, 20), *reverse.LastPaidDate)
}

func TestSummarizeMissingAmountsCountAsZero(t *testing.T) {
	bills := []models.Bill{
		{BillMonth: models.NewMonth(2025, time.May), PaymentStatus: "unpaid"},
		{BillMonth: models.NewMonth(2025, time.June), AmountDue: amount(300), PaymentStatus: " paid ", PaidDate: date(2025, time.June, 3)},
	}

	s := Summarize(bills)

	assert.True(t, s.TotalDue.Equal(decimal.NewFromInt(300)))
	assert.True(t, s.TotalPaid.IsZero())
	assert.True(t, s.Outstanding.IsZero())
	assert.Zero(t, s.RecoveryRate)
	require.NotNil(t, s.LastPaidDate)
}

func TestSummarizeOverpaymentIsKept(t *testing.T) {
	s := Summarize([]models.Bill{
		bill(models.NewMonth(2025, time.April), 1000, 1500, models.PaymentPaid, date(2025, time.April, 9)),
	})

	assert.Equal(t, 150.0, s.RecoveryRate)
	assert.True(t, s.Outstanding.IsZero())
}

func TestSummarizeDoesNotDoubleCount(t *testing.T) {
	bills := []models.Bill{
		bill(models.NewMonth(2024, time.November), 250, 250, models.PaymentPaid, date(2024, time.November, 30)),
		bill(models.NewMonth(2024, time.December), 250, 100, models.PaymentUnpaid, nil),
		bill(models.NewMonth(2025, time.January), 250, 0, models.PaymentUnpaid, nil),
	}

	expected := decimal.Zero
	for _, b := range bills {
		expected = expected.Add(b.Paid())
	}

	assert.True(t, Summarize(bills).TotalPaid.Equal(expected))
}

func TestBuildTimelineAlwaysTwelveSlots(t *testing.T) {
	ref := models.NewMonth(2025, time.December)

	many := make([]models.Bill, 0, 18)
	for i := 0; i < 18; i++ {
		many = append(many, bill(ref.AddMonths(-i), 100, 100, models.PaymentPaid, nil))
	}

	cases := map[string][]models.Bill{
		"empty": nil,
		"one":   {bill(ref, 100, 0, models.PaymentUnpaid, nil)},
		"many":  many,
	}

	for name, bills := range cases {
		t.Run(name, func(t *testing.T) {
			timeline := BuildTimeline(bills, ref)
			require.Len(t, timeline, models.TimelineLength)
			assert.Equal(t, models.NewMonth(2025, time.January), timeline[0].Month)
			assert.Equal(t, ref, timeline[11].Month)
			for i := 1; i < len(timeline); i++ {
				assert.Equal(t, timeline[i-1].Month.AddMonths(1), timeline[i].Month)
			}
		})
	}
}

func TestBuildTimelineMissingMonthsAreNull(t *testing.T) {
	ref := models.NewMonth(2025, time.February)
	bills := []models.Bill{
		bill(models.NewMonth(2025, time.January), 1000, 1000, models.PaymentPaid, date(2025, time.January, 15)),
		bill(models.NewMonth(2025, time.February), 1000, 0, models.PaymentUnpaid, nil),
		bill(models.NewMonth(2023, time.February), 1000, 0, models.PaymentUnpaid, nil),
	}

	timeline := BuildTimeline(bills, ref)

	require.Len(t, timeline, 12)
	assert.Equal(t, models.NewMonth(2024, time.March), timeline[0].Month)
	for _, slot := range timeline[:10] {
		assert.Nil(t, slot.Paid, "month %s", slot.Month)
	}
	require.NotNil(t, timeline[10].Paid)
	assert.True(t, *timeline[10].Paid)
	require.NotNil(t, timeline[11].Paid)
	assert.False(t, *timeline[11].Paid)
}

func TestTotalAndReconciliationBadge(t *testing.T) {
	rows := []models.RollupRow{
		{Name: "Domestic", UnitCount: 20, PaidCount: 10, TransactionCount: 12, Amount: decimal.NewFromInt(10000)},
		{Name: "Commercial", UnitCount: 8, PaidCount: 5, TransactionCount: 5, Amount: decimal.NewFromInt(7500)},
	}

	total := Total("T1", rows)

	assert.Equal(t, 15, total.PaidCount)
	assert.Equal(t, 17, total.TransactionCount)
	assert.True(t, total.Amount.Equal(decimal.NewFromInt(17500)))
	assert.True(t, rows[0].PendingReconciliation())
	assert.False(t, rows[1].PendingReconciliation())
}

func TestHydrateAllKeepsOrder(t *testing.T) {
	ref := models.NewMonth(2025, time.March)
	units := []models.SurveyUnit{{SurveyID: "S-2"}, {SurveyID: "S-1"}}

	hydrated := HydrateAll(units, ref)

	require.Len(t, hydrated, 2)
	assert.Equal(t, "S-2", hydrated[0].SurveyID)
	assert.Equal(t, "S-1", hydrated[1].SurveyID)
	assert.Len(t, hydrated[0].Timeline, 12)
}

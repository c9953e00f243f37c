package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimelineLength is the number of monthly slots in a HistoryTimeline.
const TimelineLength = 12

// FinancialSummary is derived from a unit's bills and never persisted.
type FinancialSummary struct {
	TotalDue     decimal.Decimal `json:"total_due"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	RecoveryRate float64         `json:"recovery_rate"`
	LastPaidDate *time.Time      `json:"last_paid_date"`
}

// TimelineSlot holds one month of history. Paid is nil when no bill exists for the month.
type TimelineSlot struct {
	Month Month `json:"month"`
	Paid  *bool `json:"paid"`
}

type HistoryTimeline []TimelineSlot

// HydratedUnit is a unit with its derived financial display data attached.
type HydratedUnit struct {
	SurveyUnit
	Summary  FinancialSummary `json:"summary"`
	Timeline HistoryTimeline  `json:"timeline"`
}

// Dimension is a rollup grouping.
type Dimension string

const (
	DimensionTehsil   Dimension = "tehsil"
	DimensionArea     Dimension = "area"
	DimensionCategory Dimension = "category"
)

// Dimensions lists every rollup dimension in display order.
var Dimensions = []Dimension{DimensionTehsil, DimensionArea, DimensionCategory}

func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DimensionTehsil, DimensionArea, DimensionCategory:
		return d, nil
	case "uc", "union_council":
		return DimensionArea, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// RollupRow aggregates one dimension value within a billing period.
type RollupRow struct {
	Name             string          `bun:"name" json:"name"`
	UnitCount        int             `bun:"unit_count" json:"unit_count"`
	PaidCount        int             `bun:"paid_count" json:"paid_count"`
	TransactionCount int             `bun:"transaction_count" json:"transaction_count"`
	Amount           decimal.Decimal `bun:"amount,type:numeric" json:"amount"`
}

// PendingReconciliation reports payment transactions not yet matched to paid bills.
func (r RollupRow) PendingReconciliation() bool {
	return r.TransactionCount > r.PaidCount
}

// GrandTotals keeps all-time demand and period collections as separate figures.
type GrandTotals struct {
	PotentialDemand  decimal.Decimal `bun:"potential_demand,type:numeric" json:"potential_demand"`
	PeriodDemand     decimal.Decimal `bun:"period_demand,type:numeric" json:"period_demand"`
	Collected        decimal.Decimal `bun:"collected,type:numeric" json:"collected"`
	UnitCount        int             `bun:"unit_count" json:"unit_count"`
	BillerCount      int             `bun:"biller_count" json:"biller_count"`
	PaidCount        int             `bun:"paid_count" json:"paid_count"`
	TransactionCount int             `bun:"transaction_count" json:"transaction_count"`
}

// FinanceScope bounds a rollup. Empty district or tehsil broadens it.
type FinanceScope struct {
	District string `json:"district,omitempty"`
	Tehsil   string `json:"tehsil,omitempty"`
	Period   Month  `json:"period"`
}

// Normalize trims and upper-cases the geographic parts.
func (s FinanceScope) Normalize() FinanceScope {
	s.District = strings.ToUpper(strings.TrimSpace(s.District))
	s.Tehsil = strings.ToUpper(strings.TrimSpace(s.Tehsil))
	return s
}

func (s FinanceScope) Key() string {
	return strings.Join([]string{s.District, s.Tehsil, s.Period.String()}, "|")
}

// FinanceSummary is the combined response of the finance summary call.
type FinanceSummary struct {
	Scope         FinanceScope `json:"scope"`
	GrandTotals   GrandTotals  `json:"grand_totals"`
	TehsilStats   []RollupRow  `json:"tehsil_stats"`
	UCStats       []RollupRow  `json:"uc_stats"`
	CategoryStats []RollupRow  `json:"category_stats"`
}

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	UnitTypeDomestic   = "Domestic"
	UnitTypeCommercial = "Commercial"
	// UnitTypeUnknown is the filter value selecting units without a classification.
	UnitTypeUnknown = "unknown"

	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// SurveyUnit is one field-surveyed utility account.
type SurveyUnit struct {
	bun.BaseModel `bun:"table:app.survey_units,alias:su"`

	SurveyID   string     `bun:"survey_id,pk" json:"survey_id"`
	IDNumeric  int64      `bun:"id_numeric" json:"id_numeric"`
	District   string     `bun:"district" json:"district"`
	Tehsil     string     `bun:"tehsil" json:"tehsil"`
	AreaName   string     `bun:"area_name" json:"area_name"`
	UnitType   string     `bun:"unit_type" json:"unit_type"`
	Status     string     `bun:"status" json:"status"`
	SurveyorID *string    `bun:"surveyor_id" json:"surveyor_id,omitempty"`
	OwnerName  *string    `bun:"owner_name" json:"owner_name,omitempty"`
	IsBiller   bool       `bun:"is_biller,scanonly" json:"is_biller"`
	CreatedAt  *time.Time `bun:"created_at" json:"created_at,omitempty"`

	Bills []Bill `bun:"-" json:"bills"`
}

// Category is the rollup label of the unit classification.
func (u SurveyUnit) Category() string {
	if t := strings.TrimSpace(u.UnitType); t != "" {
		return t
	}
	return "Unknown"
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "PAID"
	PaymentUnpaid PaymentStatus = "UNPAID"
)

// IsPaid tolerates the mixed casing found in imported billing rows.
func (s PaymentStatus) IsPaid() bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(PaymentPaid))
}

// Bill is one monthly bill; (SurveyID, BillMonth) is unique.
type Bill struct {
	bun.BaseModel `bun:"table:app.bills,alias:b"`

	SurveyID      string              `bun:"survey_id,pk" json:"survey_id"`
	BillMonth     Month               `bun:"bill_month,pk,type:text" json:"bill_month"`
	AmountDue     decimal.NullDecimal `bun:"amount_due,type:numeric" json:"amount_due"`
	AmountPaid    decimal.NullDecimal `bun:"amount_paid,type:numeric" json:"amount_paid"`
	PaymentStatus PaymentStatus       `bun:"payment_status" json:"payment_status"`
	PaidDate      *time.Time          `bun:"paid_date" json:"paid_date,omitempty"`
	PaymentMethod *string             `bun:"payment_method" json:"payment_method,omitempty"`
	Channel       *string             `bun:"channel" json:"channel,omitempty"`
	// PSID is the payment slip id. It is not unique across units.
	PSID *string `bun:"psid" json:"psid,omitempty"`
}

// Due returns the amount due with a missing value read as zero.
func (b Bill) Due() decimal.Decimal {
	if !b.AmountDue.Valid {
		return decimal.Zero
	}
	return b.AmountDue.Decimal
}

// Paid returns the amount paid with a missing value read as zero.
func (b Bill) Paid() decimal.Decimal {
	if !b.AmountPaid.Valid {
		return decimal.Zero
	}
	return b.AmountPaid.Decimal
}

// UnitPage is the result of one paginated units request.
type UnitPage struct {
	TotalCount int          `json:"total_count"`
	Records    []SurveyUnit `json:"records"`
}

// UnitHistory is the full billing detail of a single unit.
type UnitHistory struct {
	Unit     SurveyUnit       `json:"unit"`
	Stats    FinancialSummary `json:"stats"`
	Bills    []Bill           `json:"bills"`
	Timeline HistoryTimeline  `json:"timeline"`
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want Month
	}{
		{"Dec-2025", Month{2025, time.December}},
		{"dec-2025", Month{2025, time.December}},
		{" JAN-2024 ", Month{2024, time.January}},
		{"2025-03", Month{2025, time.March}},
		{"February-2025", Month{2025, time.February}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMonth(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseMonth("13-2025")
	assert.Error(t, err)
	_, err = ParseMonth("")
	assert.Error(t, err)
}

func TestMonthArithmeticAcrossYears(t *testing.T) {
	m := NewMonth(2025, time.January)

	assert.Equal(t, Month{2024, time.February}, m.AddMonths(-11))
	assert.Equal(t, Month{2026, time.January}, m.AddMonths(12))
	assert.True(t, m.AddMonths(-1).Before(m))
	assert.False(t, m.Before(m))
	assert.Equal(t, "Jan-2025", m.String())
}

func TestMonthJSONAndScan(t *testing.T) {
	raw, err := json.Marshal(struct {
		M Month `json:"m"`
	}{NewMonth(2025, time.December)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"Dec-2025"}`, string(raw))

	var back struct {
		M Month `json:"m"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"m":"dec-2025"}`), &back))
	assert.Equal(t, NewMonth(2025, time.December), back.M)

	var scanned Month
	require.NoError(t, scanned.Scan([]byte("Mar-2024")))
	assert.Equal(t, NewMonth(2024, time.March), scanned)

	v, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, "Mar-2024", v)
}

func TestBillAmountsDefaultToZero(t *testing.T) {
	var b Bill
	require.NoError(t, json.Unmarshal([]byte(`{"amount_due":null,"amount_paid":"125.50","payment_status":"Paid"}`), &b))

	assert.True(t, b.Due().IsZero())
	assert.Equal(t, "125.5", b.Paid().String())
	assert.True(t, b.PaymentStatus.IsPaid())
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the canonical billing month token, e.g. "Dec-2025".
const MonthLayout = "Jan-2006"

// Month is a calendar month used as the billing period key.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth returns a normalized month; out of range months roll into the neighbouring years.
func NewMonth(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth accepts "Mon-YYYY" in any letter case and "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Month{}, fmt.Errorf("empty month")
	}
	for _, layout := range []string{MonthLayout, "January-2006", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("invalid month %q: want Mon-YYYY", s)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Start is the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) AddMonths(n int) Month {
	return NewMonth(m.Year, m.Month+time.Month(n))
}

func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return m.Start().Format(MonthLayout)
}

func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(*s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the month as its token.
func (m Month) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return m.String(), nil
}

func (m *Month) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Month{}
		return nil
	case time.Time:
		*m = MonthOf(v)
		return nil
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Month", src)
	}
}

func (m *Month) scanString(s string) error {
	if strings.TrimSpace(s) == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ISODateLayout is the calendar date format accepted and returned by the API.
const ISODateLayout = "2006-01-02"

// NullDate is a nullable calendar date column. Postgres returns DATE values as
// time.Time while SQLite may hand back text, so Scan accepts both.
type NullDate struct {
	Time  time.Time
	Valid bool
}

func NewNullDate(t time.Time) NullDate {
	return NullDate{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

// ParseNullDate parses an ISO calendar date.
func ParseNullDate(s string) (NullDate, error) {
	t, err := time.Parse(ISODateLayout, s)
	if err != nil {
		return NullDate{}, err
	}
	return NewNullDate(t), nil
}

// String renders the date in ISO form, or "" when null.
func (d NullDate) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(ISODateLayout)
}

func (d NullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

func (d *NullDate) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = NullDate{}
		return nil
	case time.Time:
		*d = NewNullDate(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("NullDate: Scan failed, unsupported type %T", value)
	}
}

func (d *NullDate) scanText(s string) error {
	if s == "" {
		*d = NullDate{}
		return nil
	}
	if len(s) > len(ISODateLayout) {
		s = s[:len(ISODateLayout)]
	}
	parsed, err := ParseNullDate(s)
	if err != nil {
		return fmt.Errorf("NullDate: Scan failed: %w", err)
	}
	*d = parsed
	return nil
}

func (d NullDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

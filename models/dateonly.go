package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// DateOnly is a calendar date with no time component; it crosses the wire as
// "YYYY-MM-DD" and is stored as a DATE column.
type DateOnly time.Time

func NewDateOnly(t time.Time) DateOnly {
	return DateOnly(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

func (d DateOnly) Time() time.Time { return time.Time(d) }

func (d DateOnly) IsZero() bool { return time.Time(d).IsZero() }

func (d DateOnly) String() string {
	return time.Time(d).Format(dateOnlyLayout)
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *DateOnly) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("date must be a string")
	}
	parsed, err := time.Parse(dateOnlyLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	*d = DateOnly(parsed)
	return nil
}

func (d DateOnly) Value() (driver.Value, error) {
	return time.Time(d), nil
}

func (d *DateOnly) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*d = NewDateOnly(v)
		return nil
	case []byte:
		parsed, err := time.Parse(dateOnlyLayout, string(v))
		if err != nil {
			return err
		}
		*d = DateOnly(parsed)
		return nil
	case nil:
		*d = DateOnly{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into DateOnly", value)
	}
}

func (DateOnly) GormDataType() string { return "date" }

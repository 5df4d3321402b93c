package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a signed money amount in integer cents. It crosses the wire as a
// decimal string ("12000", "-7000") so clients never touch floating point.
type Cents int64

func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

func (c Cents) IsZero() bool { return c == 0 }

// Sign returns -1, 0 or 1.
func (c Cents) Sign() int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	default:
		return 0
	}
}

func (c Cents) Direction() Direction {
	if c < 0 {
		return DirectionOutflow
	}
	return DirectionInflow
}

func (c Cents) String() string {
	return strconv.FormatInt(int64(c), 10)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseCents(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCents accepts a decimal string (preferred wire form) or a JSON number,
// rejecting anything that is not an exact integer amount of cents.
func ParseCents(i interface{}) (Cents, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, errors.New("amount is required")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", v)
		}
		if !d.Equal(d.Truncate(0)) {
			return 0, fmt.Errorf("amount %q is not an integer number of cents", v)
		}
		return Cents(d.IntPart()), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("amount %q is not an integer number of cents", v.String())
		}
		return Cents(n), nil
	case int:
		return Cents(v), nil
	case int64:
		return Cents(v), nil
	default:
		return 0, errors.New("invalid amount")
	}
}

// gorm stores Cents as a plain bigint.

func (c Cents) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *Cents) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*c = Cents(v)
		return nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return err
		}
		*c = Cents(n)
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Cents", value)
	}
}

// SumAbs totals absolute values; used by the balanced-group invariant.
func SumAbs(amounts []Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a.Abs()
	}
	return total
}

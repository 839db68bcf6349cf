package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative integer count of the smallest currency unit.
// It is stored and transmitted as a decimal digit string; arithmetic is
// exact at any magnitude.
type Amount struct {
	d decimal.Decimal
}

var ZeroAmount = Amount{}

// IsCanonicalAmount reports whether s is a string of ASCII digits with no
// leading zero, "0" itself excepted.
func IsCanonicalAmount(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAmount accepts only canonical digit strings, so String always gives
// back the input. Signs, decimal points, exponents, whitespace and leading
// zeros are rejected.
func ParseAmount(s string) (Amount, error) {
	if !IsCanonicalAmount(s) {
		return Amount{}, fmt.Errorf("ParseAmount: %q: %w", s, ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("ParseAmount: %q: %w", s, ErrInvalidAmount)
	}
	return Amount{d: d}, nil
}

// MustParseAmount panics on malformed input. Intended for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func AmountFromUint64(v uint64) Amount {
	return Amount{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a-b, or ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b.d.Cmp(a.d) > 0 {
		return Amount{}, fmt.Errorf("Sub: %s - %s: %w", a, b, ErrUnderflow)
	}
	return Amount{d: a.d.Sub(b.d)}, nil
}

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) String() string {
	return a.d.String()
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("Amount.Scan: negative value %d: %w", v, ErrInvalidAmount)
		}
		*a = AmountFromUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("Amount.Scan: unsupported type %T", src)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("Amount.UnmarshalJSON: must be a digit string: %w", ErrInvalidAmount)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

package domain

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "zero", in: "0", want: "0"},
		{name: "small", in: "500000", want: "500000"},
		{name: "beyond float53", in: "9007199254740993", want: "9007199254740993"},
		{name: "trillions of VND", in: "123456789012345678901234567890", want: "123456789012345678901234567890"},
		{name: "leading zeros", in: "000120", wantErr: true},
		{name: "leading zero", in: "007", wantErr: true},
		{name: "zero padded zero", in: "0000", wantErr: true},
		{name: "zero padded hundred", in: "0100", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
		{name: "plus sign", in: "+5", wantErr: true},
		{name: "decimal point", in: "1.5", wantErr: true},
		{name: "exponent", in: "1e6", wantErr: true},
		{name: "whitespace", in: " 10", wantErr: true},
		{name: "letters", in: "12ab", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestAmount_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for range 500 {
		n := rng.Intn(40) + 1
		digits := make([]byte, n)
		digits[0] = byte('1' + rng.Intn(9))
		for i := 1; i < n; i++ {
			digits[i] = byte('0' + rng.Intn(10))
		}
		s := string(digits)
		a, err := ParseAmount(s)
		require.NoError(t, err)
		assert.Equal(t, s, a.String())
	}
}

// Every string ParseAmount accepts must come back unchanged, including
// ones drawn with arbitrary leading digits.
func TestAmount_AcceptedInputsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	accepted := 0
	for range 2000 {
		n := rng.Intn(6) + 1
		digits := make([]byte, n)
		for i := range digits {
			digits[i] = byte('0' + rng.Intn(10))
		}
		s := string(digits)
		a, err := ParseAmount(s)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Equal(t, byte('0'), s[0], s)
			continue
		}
		accepted++
		assert.Equal(t, s, a.String())
	}
	assert.Positive(t, accepted)
}

func TestAmount_AddSub(t *testing.T) {
	a := MustParseAmount("9007199254740992")
	b := MustParseAmount("1")

	sum := a.Add(b)
	assert.Equal(t, "9007199254740993", sum.String())

	back, err := sum.Sub(b)
	require.NoError(t, err)
	assert.True(t, back.Equal(a))

	zero, err := a.Sub(a)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.False(t, zero.IsPositive())

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestAmount_Cmp(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"999999", "1000000", -1},
		{"1000000", "1000000", 0},
		{"10000000000000000000001", "10000000000000000000000", 1},
		{"0", "0", 0},
	}
	for _, tc := range tests {
		t.Run(tc.a+"_vs_"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, MustParseAmount(tc.a).Cmp(MustParseAmount(tc.b)))
		})
	}
}

func TestAmount_ZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.String())
	assert.Equal(t, "5", a.Add(MustParseAmount("5")).String())
}

func TestAmount_SQL(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("123456789012345678901")))
	assert.Equal(t, "123456789012345678901", a.String())

	require.NoError(t, a.Scan("42"))
	assert.Equal(t, "42", a.String())

	require.NoError(t, a.Scan(int64(7)))
	assert.Equal(t, "7", a.String())

	assert.ErrorIs(t, a.Scan("-1"), ErrInvalidAmount)
	assert.Error(t, a.Scan(3.5))

	v, err := MustParseAmount("1000").Value()
	require.NoError(t, err)
	assert.Equal(t, "1000", v)
}

func TestAmount_JSON(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	b, err := json.Marshal(payload{Amount: MustParseAmount("18446744073709551617")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"18446744073709551617"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"500000"}`), &p))
	assert.Equal(t, "500000", p.Amount.String())

	err = json.Unmarshal([]byte(`{"amount":500000}`), &p)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmountFromUint64(t *testing.T) {
	assert.Equal(t, strconv.FormatUint(^uint64(0), 10), AmountFromUint64(^uint64(0)).String())
}

func TestRangeError(t *testing.T) {
	err := error(&RangeError{Min: MustParseAmount("10000"), Max: MustParseAmount("50000000")})
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
	assert.Equal(t, "amount must be between 10000 and 50000000", err.Error())
}

func TestLedgerEntry_IsSettled(t *testing.T) {
	e := &LedgerEntry{Status: DepositStatusPending}
	assert.False(t, e.IsSettled())
	e.Status = DepositStatusSuccess
	assert.True(t, e.IsSettled())
}

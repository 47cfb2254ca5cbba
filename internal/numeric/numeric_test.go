package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  string
		valid bool
	}{
		{"nil", nil, "", false},
		{"int", 100, "100", true},
		{"int64", int64(-7), "-7", true},
		{"float keeps shortest repr", 0.1, "0.1", true},
		{"json number", json.Number("123456789012345678901234.000000000000000001"), "123456789012345678901234.000000000000000001", true},
		{"numeric string", "1.00", "1", true},
		{"padded string", "  42.5 ", "42.5", true},
		{"exponent string", "1e3", "1000", true},
		{"empty string", "", "", false},
		{"garbage string", "abc", "", false},
		{"nan string", "NaN", "", false},
		{"nan float", math.NaN(), "", false},
		{"inf float", math.Inf(1), "", false},
		{"bool", true, "", false},
		{"map", map[string]any{"a": 1}, "", false},
		{"decimal", decimal.RequireFromString("3.14"), "3.14", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDecimal(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal), "got %s", got.Decimal)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, int64(18), *ToInt64(json.Number("18")))
	assert.Equal(t, int64(18), *ToInt64("18"))
	assert.Equal(t, int64(18), *ToInt64(18.0))
	assert.Nil(t, ToInt64(18.5))
	assert.Nil(t, ToInt64("eighteen"))
	assert.Nil(t, ToInt64(true))
	assert.Nil(t, ToInt64("99999999999999999999999"))
	assert.Nil(t, ToInt64(nil))
}

func TestToBool(t *testing.T) {
	assert.True(t, *ToBool(true))
	assert.False(t, *ToBool("false"))
	assert.True(t, *ToBool(json.Number("1")))
	assert.Nil(t, ToBool(json.Number("2")))
	assert.Nil(t, ToBool("yes please"))
	assert.Nil(t, ToBool(nil))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "abc", *ToString(" abc "))
	assert.Equal(t, "12345", *ToString(json.Number("12345")))
	assert.Equal(t, "1.5", *ToString(1.5))
	assert.Nil(t, ToString(""))
	assert.Nil(t, ToString(nil))
	assert.Nil(t, ToString([]any{"a"}))
}

func TestEpochToTime(t *testing.T) {
	got := EpochToTime(json.Number("1700000000"))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), *got)

	frac := EpochToTime(1700000000.5)
	require.NotNil(t, frac)
	assert.Equal(t, 500*time.Millisecond, time.Duration(frac.Nanosecond()))

	assert.Nil(t, EpochToTime("not-a-time"))
	assert.Nil(t, EpochToTime(-1))
	assert.Nil(t, EpochToTime(1e15))
	assert.Nil(t, EpochToTime(nil))
}

func TestSumAndMul(t *testing.T) {
	a := ToDecimal("100")
	p := ToDecimal("1.00")
	assert.True(t, decimal.NewFromInt(100).Equal(Mul(a, p).Decimal))
	assert.False(t, Mul(a, decimal.NullDecimal{}).Valid)

	total := Sum(a, decimal.NullDecimal{}, ToDecimal("0.5"))
	assert.True(t, total.Valid)
	assert.Equal(t, "100.5", total.Decimal.String())
	assert.False(t, Sum().Valid)
}

func TestNormalizerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("never panics on arbitrary strings", prop.ForAll(
		func(s string) bool {
			_ = ToDecimal(s)
			_ = ToInt64(s)
			_ = ToBool(s)
			_ = EpochToTime(s)
			return true
		},
		gen.AnyString(),
	))

	properties.Property("integers round trip exactly through strings", prop.ForAll(
		func(n int64) bool {
			d := ToDecimal(strconv.FormatInt(n, 10))
			return d.Valid && d.Decimal.Equal(decimal.NewFromInt(n))
		},
		gen.Int64(),
	))

	properties.Property("json numbers keep every digit", prop.ForAll(
		func(whole int64, frac int64) bool {
			s := strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(frac, 10)
			d := ToDecimal(json.Number(s))
			return d.Valid && d.Decimal.Equal(decimal.RequireFromString(s))
		},
		gen.Int64(),
		gen.Int64Range(0, math.MaxInt64),
	))

	properties.Property("summing is order independent", prop.ForAll(
		func(a, b, c int64) bool {
			x, y, z := ToDecimal(a), ToDecimal(b), ToDecimal(c)
			return Sum(x, y, z).Decimal.Equal(Sum(z, x, y).Decimal)
		},
		gen.Int64Range(-1e12, 1e12),
		gen.Int64Range(-1e12, 1e12),
		gen.Int64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}

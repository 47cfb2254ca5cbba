// Package numeric converts loosely typed provider fields into exact values.
//
// Provider payloads are not schema-guaranteed: a price may arrive as a JSON
// number, a quoted string, null, or be missing entirely. Every function here
// maps unusable input to "no value" instead of returning an error, so one bad
// field never aborts a batch.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToDecimal converts v into an exact decimal. The result is invalid (NULL)
// for nil, NaN/Inf, empty or non-numeric strings and any non-numeric type.
func ToDecimal(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(x)
	case *decimal.Decimal:
		if x == nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(*x)
	case decimal.NullDecimal:
		return x
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	case *string:
		if x == nil {
			return decimal.NullDecimal{}
		}
		return parseDecimal(*x)
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(x))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	case uint32:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case uint64:
		if x > math.MaxInt64 {
			return parseDecimal(strconv.FormatUint(x, 10))
		}
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	default:
		return decimal.NullDecimal{}
	}
}

// fromFloat goes through the shortest decimal representation so 0.1 stays 0.1
func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return parseDecimal(strconv.FormatFloat(f, 'f', -1, 64))
}

func parseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	// decimal.NewFromString accepts exponents but not these spellings
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ToInt64 converts v into an integer. Fractional values are rejected rather
// than truncated; out-of-range values yield nil.
func ToInt64(v any) *int64 {
	switch x := v.(type) {
	case bool:
		return nil
	case int:
		n := int64(x)
		return &n
	case int64:
		return &x
	}

	d := ToDecimal(v)
	if !d.Valid || !d.Decimal.IsInteger() {
		return nil
	}
	if d.Decimal.GreaterThan(decimal.NewFromInt(math.MaxInt64)) ||
		d.Decimal.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return nil
	}
	n := d.Decimal.IntPart()
	return &n
}

// ToBool converts v into an optional flag. Strings "true"/"false"/"1"/"0"
// and the numbers 0 and 1 are accepted; anything else yields nil.
func ToBool(v any) *bool {
	var b bool
	switch x := v.(type) {
	case bool:
		b = x
	case *bool:
		return x
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		b = parsed
	default:
		n := ToInt64(v)
		if n == nil || (*n != 0 && *n != 1) {
			return nil
		}
		b = *n == 1
	}
	return &b
}

// ToString returns the trimmed string form of scalar fields. Numbers are
// rendered exactly; objects, arrays and empty strings yield nil.
func ToString(v any) *string {
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case json.Number:
		s = x.String()
	case bool:
		s = strconv.FormatBool(x)
	case int, int32, int64, uint32, uint64, float32, float64:
		d := ToDecimal(x)
		if !d.Valid {
			return nil
		}
		s = d.Decimal.String()
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// maxEpochSeconds is 9999-12-31T23:59:59Z, the upper bound Postgres timestamps accept comfortably
const maxEpochSeconds = 253402300799

// EpochToTime converts epoch seconds (integer or fractional) into a UTC time.
// Malformed, negative or out-of-range input yields nil.
func EpochToTime(v any) *time.Time {
	d := ToDecimal(v)
	if !d.Valid || d.Decimal.IsNegative() || d.Decimal.GreaterThan(decimal.NewFromInt(maxEpochSeconds)) {
		return nil
	}

	secs := d.Decimal.IntPart()
	nanos := d.Decimal.Sub(decimal.NewFromInt(secs)).Shift(9).IntPart()
	t := time.Unix(secs, nanos).UTC()
	return &t
}

// Sum adds the valid values, returning NULL when none are valid
func Sum(values ...decimal.NullDecimal) decimal.NullDecimal {
	var total decimal.Decimal
	valid := false
	for _, v := range values {
		if !v.Valid {
			continue
		}
		total = total.Add(v.Decimal)
		valid = true
	}
	if !valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total)
}

// Mul returns a*b, or NULL if either operand is NULL
func Mul(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal.Mul(b.Decimal))
}

package clinic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a currency amount stored the way the front office enters it,
// e.g. "$123.45". Arithmetic goes through Cents.
type Money string

// ZeroMoney is the default for omitted amounts.
const ZeroMoney Money = "$0.00"

// maxWholeDollars keeps whole*100 + 99 inside int64.
const maxWholeDollars = (math.MaxInt64 - 99) / 100

// ErrAmountOverflow is returned when an amount or a sum of amounts does not
// fit in int64 cents.
var ErrAmountOverflow = errors.New("amount out of range")

// Cents parses the amount into integer cents. Empty strings parse as zero.
func (m Money) Cents() (int64, error) {
	s := strings.TrimSpace(string(m))
	if s == "" {
		return 0, nil
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("invalid amount %q", string(m))
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		return 0, fmt.Errorf("amount %q: %w", string(m), ErrAmountOverflow)
	}
	if err != nil || w < 0 {
		return 0, fmt.Errorf("invalid amount %q", string(m))
	}
	if w > maxWholeDollars {
		return 0, fmt.Errorf("amount %q: %w", string(m), ErrAmountOverflow)
	}
	var c int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", string(m))
		}
		if len(frac) == 1 {
			frac += "0"
		}
		c, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || c < 0 {
			return 0, fmt.Errorf("invalid amount %q", string(m))
		}
	}
	total := w*100 + c
	if neg {
		total = -total
	}
	return total, nil
}

// addCents sums a and b, failing instead of wrapping around.
func addCents(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Valid reports whether the amount parses.
func (m Money) Valid() bool {
	_, err := m.Cents()
	return err == nil
}

// Normalize returns the canonical "$x.yy" rendering, or the input unchanged
// when it does not parse.
func (m Money) Normalize() Money {
	c, err := m.Cents()
	if err != nil {
		return m
	}
	return FormatCents(c)
}

// FormatCents renders cents as "$1234.56". Negative amounts render "-$1.00".
func FormatCents(cents int64) Money {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return Money(fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100))
}

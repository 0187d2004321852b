package runspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TimeUnit enumerates the units a training time can be expressed in.
type TimeUnit string

const (
	UnitEpoch    TimeUnit = "ep"
	UnitBatch    TimeUnit = "ba"
	UnitSample   TimeUnit = "sp"
	UnitToken    TimeUnit = "tok"
	UnitFraction TimeUnit = "dur"
)

var (
	discreteTimePattern = regexp.MustCompile(`^([0-9]+)(ep|ba|sp|tok)$`)
	fractionTimePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)dur$`)
)

// Time is a training time value: an integer count of epochs, batches,
// samples or tokens, or a float fraction of the full run.
type Time struct {
	count int64
	frac  float64
	unit  TimeUnit
}

func NewTime(count int64, unit TimeUnit) Time {
	return Time{count: count, unit: unit}
}

// ParseTime parses a duration string such as "3ep", "1000ba", "2048sp",
// "100000tok" or "0.5dur".
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, fmt.Errorf("empty duration string")
	}

	if m := discreteTimePattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return Time{count: v, unit: TimeUnit(m[2])}, nil
	}

	if m := fractionTimePattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if v <= 0 || v > 1 {
			return Time{}, fmt.Errorf("invalid duration %q: dur value must be in (0, 1]", s)
		}
		return Time{frac: v, unit: UnitFraction}, nil
	}

	return Time{}, fmt.Errorf("invalid duration %q: expected <int><ep|ba|sp|tok> or <float>dur", s)
}

func (t Time) Unit() TimeUnit { return t.unit }

// Count returns the integer value of a discrete time. Zero for dur.
func (t Time) Count() int64 { return t.count }

// Fraction returns the fractional value of a dur time. Zero otherwise.
func (t Time) Fraction() float64 { return t.frac }

func (t Time) IsZero() bool { return t.count == 0 && t.frac == 0 }

func (t Time) String() string {
	if t.unit == UnitFraction {
		return strconv.FormatFloat(t.frac, 'g', -1, 64) + string(t.unit)
	}
	return strconv.FormatInt(t.count, 10) + string(t.unit)
}

// Comparable reports whether two time values share a unit and can be
// compared without knowing the dataset size.
func (t Time) Comparable(other Time) bool { return t.unit == other.unit }

// Cmp returns -1, 0 or 1. Both values must share a unit; converting
// between units needs dataset knowledge the document does not carry.
func (t Time) Cmp(other Time) (int, error) {
	if !t.Comparable(other) {
		return 0, fmt.Errorf("cannot compare %s with %s: units differ", t, other)
	}
	if t.unit == UnitFraction {
		switch {
		case t.frac < other.frac:
			return -1, nil
		case t.frac > other.frac:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case t.count < other.count:
		return -1, nil
	case t.count > other.count:
		return 1, nil
	}
	return 0, nil
}

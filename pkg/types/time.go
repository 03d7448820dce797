package types

import (
	"fmt"
	"strconv"
	"strings"
)

const nanosPerSecond = 1_000_000_000

// Time is a trace instant as reported by the capture tool: whole seconds
// plus a nanosecond part. Values are compared as given and never normalized,
// so a nanosecond part outside [0, 1e9) still orders by seconds first.
type Time struct {
	Seconds     int64 `json:"sec"`
	Nanoseconds int64 `json:"nsec"`
}

// Zero is the instant used to seed running maxima.
var Zero = Time{}

// At returns an instant with the given seconds and no nanosecond part.
func At(seconds int64) Time {
	return Time{Seconds: seconds}
}

// Less reports whether t is strictly before u.
func (t Time) Less(u Time) bool {
	if t.Seconds != u.Seconds {
		return t.Seconds < u.Seconds
	}
	return t.Nanoseconds < u.Nanoseconds
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after u.
func (t Time) Compare(u Time) int {
	switch {
	case t.Less(u):
		return -1
	case u.Less(t):
		return 1
	default:
		return 0
	}
}

// Max returns the later of a and b. On a tie a is returned.
func Max(a, b Time) Time {
	if a.Less(b) {
		return b
	}
	return a
}

// Sub returns t-u in nanoseconds.
func (t Time) Sub(u Time) int64 {
	return (t.Seconds-u.Seconds)*nanosPerSecond + (t.Nanoseconds - u.Nanoseconds)
}

func (t Time) String() string {
	return strconv.FormatInt(t.Seconds, 10) + "." + strconv.FormatInt(t.Nanoseconds, 10)
}

// ParseTime parses the "<seconds>.<nanoseconds>" form used in trace lines.
// The fractional digits are taken as a literal nanosecond count, the way the
// capture tool prints them (always nine digits).
func ParseTime(s string) (Time, error) {
	secs, nsecs, ok := strings.Cut(s, ".")
	if !ok || secs == "" || nsecs == "" || strings.Contains(nsecs, ".") {
		return Time{}, fmt.Errorf("timestamp %q: want <seconds>.<nanoseconds>", s)
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return Time{}, fmt.Errorf("timestamp %q seconds: %w", s, err)
	}
	nsec, err := strconv.ParseInt(nsecs, 10, 64)
	if err != nil {
		return Time{}, fmt.Errorf("timestamp %q nanoseconds: %w", s, err)
	}
	return Time{Seconds: sec, Nanoseconds: nsec}, nil
}

// FormatOffset renders t-origin in seconds with exactly two decimals,
// truncated toward negative infinity (2.999s is "2.99", -0.001s is "-0.01").
func FormatOffset(t, origin Time) string {
	const perHundredth = nanosPerSecond / 100
	d := t.Sub(origin)
	h := d / perHundredth
	if d%perHundredth != 0 && d < 0 {
		h--
	}
	sign := ""
	if h < 0 {
		sign = "-"
		h = -h
	}
	return fmt.Sprintf("%s%d.%02d", sign, h/100, h%100)
}

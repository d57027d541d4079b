// Package units provides the frequency type shared by the clock tree and
// the timer layer. All derivations on Hertz are integer-exact; formatting
// is the only place decimals appear.
package units

import (
	"math/bits"
	"strconv"
	"time"
)

// Hertz is a frequency. The zero value means "no clock".
type Hertz uint32

func KHz(n uint32) Hertz { return Hertz(n * 1_000) }
func MHz(n uint32) Hertz { return Hertz(n * 1_000_000) }

// Period returns the duration of one cycle, truncated to the nanosecond.
func (h Hertz) Period() time.Duration {
	if h == 0 {
		return 0
	}
	return time.Duration(uint64(time.Second) / uint64(h))
}

// Div returns h/n, which must be exact: dividing 32768 Hz by 3 is not a
// frequency this package can represent.
func (h Hertz) Div(n uint32) (Hertz, bool) {
	if n == 0 || uint32(h)%n != 0 {
		return 0, false
	}
	return h / Hertz(n), true
}

// Ticks returns how many whole cycles of h fit in d. The product is
// taken at 128 bits, so no rate/duration combination overflows.
func (h Hertz) Ticks(d time.Duration) uint64 {
	if h == 0 || d <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(d), uint64(h))
	if hi >= uint64(time.Second) {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return q
}

// DurationOf returns the time n cycles of h take, saturating at the
// maximum representable duration.
func (h Hertz) DurationOf(n uint64) time.Duration {
	if h == 0 {
		return 0
	}
	hi, lo := bits.Mul64(n, uint64(time.Second))
	if hi >= uint64(h) {
		return time.Duration(^uint64(0) >> 1)
	}
	q, _ := bits.Div64(hi, lo, uint64(h))
	if q > uint64(^uint64(0)>>1) {
		return time.Duration(^uint64(0) >> 1)
	}
	return time.Duration(q)
}

func (h Hertz) String() string {
	v := uint64(h)
	switch {
	case v >= 1_000_000:
		return scaled(v, 1_000_000) + " MHz"
	case v >= 1_000:
		return scaled(v, 1_000) + " kHz"
	}
	return strconv.FormatUint(v, 10) + " Hz"
}

// scaled formats v/unit in decimal, with trailing zeros removed.
func scaled(v, unit uint64) string {
	s := strconv.FormatUint(v/unit, 10)
	frac := v % unit
	if frac == 0 {
		return s
	}
	f := strconv.FormatUint(frac+unit, 10)[1:] // zero-padded fraction
	for f[len(f)-1] == '0' {
		f = f[:len(f)-1]
	}
	return s + "." + f
}

package monotonic

import (
	"cmp"
	"math"
	"math/bits"
	"strconv"
)

// Duration is a span of counter ticks. A plain tick count converts
// directly: Duration(1000) is 1000 ticks.
//
// Arithmetic is ordinary uint32 arithmetic. Sub wraps on underflow just
// like the - operator; use CheckedSub when the caller cannot guarantee
// the minuend is large enough.
type Duration uint32

// FromTicks creates a Duration of the given number of ticks.
func FromTicks(ticks uint32) Duration {
	return Duration(ticks)
}

// Ticks returns the tick count.
func (d Duration) Ticks() uint32 {
	return uint32(d)
}

// Add returns d+o.
func (d Duration) Add(o Duration) Duration {
	return d + o
}

// Sub returns d-o, wrapping if o > d.
func (d Duration) Sub(o Duration) Duration {
	return d - o
}

// CheckedSub returns d-o, or false if o > d.
func (d Duration) CheckedSub(o Duration) (Duration, bool) {
	if o > d {
		return 0, false
	}
	return d - o, true
}

// Compare returns -1, 0 or +1 like cmp.Compare.
func (d Duration) Compare(o Duration) int {
	return cmp.Compare(d, o)
}

func (d Duration) String() string {
	return "Duration(" + strconv.FormatUint(uint64(d), 10) + ")"
}

// Fraction is the ratio between counter ticks and scheduler time units.
type Fraction struct {
	Numerator   uint32
	Denominator uint32
}

// Ratio1to1 is used when one tick is one scheduler time unit.
var Ratio1to1 = Fraction{Numerator: 1, Denominator: 1}

// Valid reports whether both terms are non-zero.
func (f Fraction) Valid() bool {
	return f.Numerator != 0 && f.Denominator != 0
}

// ToUnits converts a tick count into scheduler time units. An invalid
// fraction converts everything to zero.
func (f Fraction) ToUnits(d Duration) uint64 {
	if !f.Valid() {
		return 0
	}
	return uint64(d) * uint64(f.Numerator) / uint64(f.Denominator)
}

// FromUnits converts scheduler time units into ticks. Results beyond the
// 32-bit tick count saturate. An invalid fraction converts everything to
// zero.
func (f Fraction) FromUnits(units uint64) Duration {
	if !f.Valid() {
		return 0
	}
	hi, lo := bits.Mul64(units, uint64(f.Denominator))
	if hi >= uint64(f.Numerator) {
		return math.MaxUint32
	}
	q, _ := bits.Div64(hi, lo, uint64(f.Numerator))
	if q > math.MaxUint32 {
		return math.MaxUint32
	}
	return Duration(q)
}

func (f Fraction) String() string {
	return strconv.FormatUint(uint64(f.Numerator), 10) + "/" + strconv.FormatUint(uint64(f.Denominator), 10)
}

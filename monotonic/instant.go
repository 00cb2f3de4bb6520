// Package monotonic turns a free-running hardware counter into ordered
// points in time.
//
// An Instant is a raw counter sample. Counters wrap to zero after their
// maximum value, so instants are ordered with the half-range rule: the
// wrapping difference a-b is read as a signed number of the same width.
// The order matches real elapsed time only while the instants being
// compared are less than HalfRange apart. Keep outstanding deadlines
// inside that window; nothing here detects a violation.
package monotonic

import "strconv"

// Width is the set of counter register widths a clock can be backed by.
type Width interface {
	~uint16 | ~uint32
}

// Instant is a point in time measured by a counter of width W.
type Instant[W Width] struct {
	raw W
}

// Zero returns the instant with raw sample 0.
func Zero[W Width]() Instant[W] {
	return Instant[W]{}
}

// FromCounter packages a counter reading taken outside a Clock, such as a
// sample reported over a serial link.
func FromCounter[W Width](raw W) Instant[W] {
	return Instant[W]{raw: raw}
}

// Raw returns the counter sample.
func (i Instant[W]) Raw() W {
	return i.raw
}

// DurationSince returns the ticks elapsed from earlier to i. The result is
// the cyclic distance, correct across a wrap as long as less than one
// full counter period passed.
func (i Instant[W]) DurationSince(earlier Instant[W]) Duration {
	return Duration(i.raw - earlier.raw)
}

// Sub is DurationSince.
func (i Instant[W]) Sub(earlier Instant[W]) Duration {
	return i.DurationSince(earlier)
}

// Elapsed returns the ticks elapsed since i according to c.
func (i Instant[W]) Elapsed(c Clock[W]) Duration {
	return c.Now().DurationSince(i)
}

// Add returns i+d. The tick count is truncated to W and the sum wraps.
func (i Instant[W]) Add(d Duration) Instant[W] {
	return Instant[W]{raw: i.raw + W(d)}
}

// SubDuration returns i-d. The tick count is truncated to W and the
// difference wraps.
func (i Instant[W]) SubDuration(d Duration) Instant[W] {
	return Instant[W]{raw: i.raw - W(d)}
}

// Compare returns -1 if i is before other, +1 if after and 0 if equal.
//
// Instants HalfRange or more apart compare in a fixed but meaningless
// order. A difference of exactly HalfRange reads as "before".
func (i Instant[W]) Compare(other Instant[W]) int {
	diff := i.raw - other.raw
	switch {
	case diff == 0:
		return 0
	case diff&signBit[W]() != 0:
		return -1
	default:
		return 1
	}
}

// Before reports whether i is earlier than other.
func (i Instant[W]) Before(other Instant[W]) bool {
	return i.Compare(other) < 0
}

// After reports whether i is later than other.
func (i Instant[W]) After(other Instant[W]) bool {
	return i.Compare(other) > 0
}

// Equal reports whether i and other hold the same sample.
func (i Instant[W]) Equal(other Instant[W]) bool {
	return i.raw == other.raw
}

// Distance returns the shorter cyclic distance between i and other.
func (i Instant[W]) Distance(other Instant[W]) Duration {
	if i.Before(other) {
		return other.DurationSince(i)
	}
	return i.DurationSince(other)
}

// Within reports whether i and other are at most limit ticks apart.
func (i Instant[W]) Within(other Instant[W], limit Duration) bool {
	return i.Distance(other) <= limit
}

func (i Instant[W]) String() string {
	return "Instant(" + strconv.FormatUint(uint64(i.raw), 10) + ")"
}

// Bits returns the counter width in bits.
func Bits[W Width]() uint {
	n := uint(0)
	for v := ^W(0); v != 0; v >>= 1 {
		n++
	}
	return n
}

// HalfRange returns half the counter period. Two instants can only be
// ordered reliably while they are closer than this.
func HalfRange[W Width]() Duration {
	return Duration(signBit[W]())
}

func signBit[W Width]() W {
	return ^W(0)>>1 + 1
}

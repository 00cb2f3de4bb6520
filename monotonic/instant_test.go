package monotonic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidthHelpers(t *testing.T) {
	require.Equal(t, uint(16), Bits[uint16]())
	require.Equal(t, uint(32), Bits[uint32]())
	require.Equal(t, Duration(1<<15), HalfRange[uint16]())
	require.Equal(t, Duration(1<<31), HalfRange[uint32]())
}

func TestDurationSince16(t *testing.T) {
	require := require.New(t)

	require.Equal(Duration(10), FromCounter[uint16](65530).DurationSince(FromCounter[uint16](65520)))
	// 5 + 65536 - 65530
	require.Equal(Duration(11), FromCounter[uint16](5).DurationSince(FromCounter[uint16](65530)))
	require.Equal(Duration(11), FromCounter[uint16](5).Sub(FromCounter[uint16](65530)))
	require.True(FromCounter[uint16](65530).Before(FromCounter[uint16](5)))
	require.True(FromCounter[uint16](5).After(FromCounter[uint16](65530)))
}

func TestDurationSince32(t *testing.T) {
	require := require.New(t)

	late := FromCounter[uint32](3)
	early := FromCounter[uint32](0xFFFFFFF0)
	require.Equal(Duration(0x13), late.DurationSince(early))
	require.True(early.Before(late))
	require.Equal(Duration(0xFFFFFFED), early.DurationSince(late))
}

func TestCompare(t *testing.T) {
	testCases := []struct {
		name string
		a, b uint16
		want int
	}{
		{"equal", 100, 100, 0},
		{"plain before", 100, 200, -1},
		{"plain after", 200, 100, 1},
		{"across wrap", 65535, 0, -1},
		{"after wrap", 0, 65535, 1},
		{"just under half range", 0, 32767, -1},
		{"exactly half range", 32768, 0, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := FromCounter(tc.a), FromCounter(tc.b)
			require.Equal(t, tc.want, a.Compare(b))
			require.Equal(t, tc.want < 0, a.Before(b))
			require.Equal(t, tc.want > 0, a.After(b))
			require.Equal(t, tc.want == 0, a.Equal(b))
		})
	}
}

// Within half the range, ordering follows the true signed distance.
func TestOrderingMatchesElapsed(t *testing.T) {
	for base := 0; base < 1<<16; base += 251 {
		a := FromCounter(uint16(base))
		for delta := -32767; delta <= 32767; delta += 97 {
			b := a.Add(Duration(uint16(int16(delta))))
			got := a.Compare(b)
			switch {
			case delta > 0:
				require.Equal(t, -1, got, "base=%d delta=%d", base, delta)
			case delta < 0:
				require.Equal(t, 1, got, "base=%d delta=%d", base, delta)
			default:
				require.Equal(t, 0, got)
			}
		}
	}
}

func TestOrderingIsStrictWeakWithinHalfRange(t *testing.T) {
	// Any window narrower than half the range, placed across the wrap.
	samples := []uint16{60000, 61000, 65535, 0, 1, 500, 20000}
	for _, x := range samples {
		a := FromCounter(x)
		require.Equal(t, 0, a.Compare(a))
		for _, y := range samples {
			b := FromCounter(y)
			require.Equal(t, -a.Compare(b), b.Compare(a), "antisymmetry %d %d", x, y)
			for _, z := range samples {
				c := FromCounter(z)
				if a.Before(b) && b.Before(c) {
					require.True(t, a.Before(c), "transitivity %d %d %d", x, y, z)
				}
			}
		}
	}
}

// Instants further apart than half the range compare against intuition:
// 40000 ticks after 0 reads as being before it, and ordering stops being
// transitive. This is inherent to a bare free-running counter.
func TestOrderingBeyondHalfRange(t *testing.T) {
	require := require.New(t)

	a := FromCounter[uint16](0)
	c := FromCounter[uint16](40000)
	require.True(c.Before(a), "40000 ticks later reads as earlier")

	b := FromCounter[uint16](20000)
	require.True(a.Before(b))
	require.True(b.Before(c))
	require.False(a.Before(c), "transitivity does not hold across half range")
}

func TestInstantDurationRoundTrip(t *testing.T) {
	durations := []Duration{0, 1, 10, 1000, 32767, 32768, 65535, 65536, 70000, 0xFFFFFFFF}
	for raw := 0; raw < 1<<16; raw += 4099 {
		i := FromCounter(uint16(raw))
		for _, d := range durations {
			require.Equal(t, i, i.Add(d).SubDuration(d), "raw=%d d=%d", raw, d)
			if d < HalfRange[uint16]() {
				require.Equal(t, d, i.Add(d).Sub(i))
			}
		}
	}

	for _, raw := range []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF} {
		i := FromCounter(raw)
		for _, d := range durations {
			require.Equal(t, i, i.Add(d).SubDuration(d))
			if d < HalfRange[uint32]() {
				require.Equal(t, d, i.Add(d).Sub(i))
			}
		}
	}
}

func TestAddNarrowsToWidth(t *testing.T) {
	i := FromCounter[uint16](100)
	require.Equal(t, uint16(100), i.Add(Duration(1<<16)).Raw())
	require.Equal(t, uint16(99), i.Add(Duration(0xFFFFFFFF)).Raw())
	require.Equal(t, uint16(65535), Zero[uint16]().SubDuration(1).Raw())
}

func TestDistanceAndWithin(t *testing.T) {
	a := FromCounter[uint16](65530)
	b := FromCounter[uint16](4)
	require.Equal(t, Duration(10), a.Distance(b))
	require.Equal(t, Duration(10), b.Distance(a))
	require.True(t, a.Within(b, 10))
	require.False(t, a.Within(b, 9))
}

func TestInstantString(t *testing.T) {
	require.Equal(t, "Instant(65530)", FromCounter[uint16](65530).String())
	require.Equal(t, "Instant(0)", Zero[uint32]().String())
}

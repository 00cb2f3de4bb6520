package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExclusiveNests(t *testing.T) {
	require := require.New(t)
	require.Equal(0, Held())

	var outer, inner CriticalSection
	Exclusive(func(cs CriticalSection) {
		outer = cs
		require.Equal(1, Held())
		Exclusive(func(cs CriticalSection) {
			inner = cs
			require.Equal(2, Held())
		})
		require.Equal(1, Held())
	})

	require.Equal(0, Held())
	require.NotNil(outer)
	require.NotNil(inner)
}

func TestExclusiveRestoresOnPanic(t *testing.T) {
	require.Panics(t, func() {
		Exclusive(func(CriticalSection) {
			panic("boom")
		})
	})
	require.Equal(t, 0, Held())
}

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebugAsyncDeliversThroughWriter(t *testing.T) {
	got := make(chan string, 4)
	SetDebugWriter(func(s string) { got <- s })
	defer SetDebugWriter(func(string) {})

	InitAsyncDebug()
	DebugAsync("[USB] write stalled, output reset")

	select {
	case msg := <-got:
		require.Equal(t, "[USB] write stalled, output reset", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

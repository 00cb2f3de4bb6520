// Package irq provides scoped critical sections for code that shares state
// with interrupt handlers.
package irq

import "sync/atomic"

// CriticalSection is proof that the holder runs with interrupts disabled.
// Values are only handed out by Exclusive.
type CriticalSection interface {
	held()
}

type section struct{}

func (*section) held() {}

var (
	token = &section{}
	depth atomic.Int32
)

// Exclusive runs fn with interrupts disabled and restores the previous
// interrupt state when fn returns. Calls nest.
func Exclusive(fn func(cs CriticalSection)) {
	state := disableInterrupts()
	depth.Add(1)
	defer func() {
		depth.Add(-1)
		restoreInterrupts(state)
	}()
	fn(token)
}

// Held reports how many critical sections are currently open.
func Held() int {
	return int(depth.Load())
}

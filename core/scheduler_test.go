package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"monotick/monotonic"
	"monotick/sim"
)

func newSimScheduler(t *testing.T, start uint16) (*Scheduler[uint16], *sim.Counter[uint16]) {
	t.Helper()
	ClearTimingRing()
	counter := sim.NewCounter[uint16](start)
	src := monotonic.NewSource[uint16]("TIM3", counter, monotonic.Ratio1to1)
	src.Start()
	return NewScheduler[uint16](src), counter
}

func TestSchedulerOrdersAcrossWrap(t *testing.T) {
	require := require.New(t)
	sched, counter := newSimScheduler(t, 65500)

	var order []uint8
	record := func(tm *Timer[uint16]) uint8 {
		order = append(order, tm.ID)
		return SF_DONE
	}

	// 1 wakes after the wrap, 2 before it. Raw comparison would get this
	// backwards.
	t1 := &Timer[uint16]{ID: 1, Handler: record}
	t2 := &Timer[uint16]{ID: 2, Handler: record}
	require.NoError(sched.ScheduleAfter(t1, 60))
	require.NoError(sched.ScheduleAfter(t2, 20))
	require.Equal(uint16(24), t1.WakeTime.Raw())
	require.Equal(2, sched.Pending())

	next, ok := sched.Next()
	require.True(ok)
	require.Equal(t2.WakeTime, next)

	require.Equal(0, sched.Dispatch())

	counter.Advance(20)
	require.Equal(1, sched.Dispatch())
	require.Equal([]uint8{2}, order)

	counter.Advance(39)
	require.Equal(0, sched.Dispatch())

	counter.Advance(1)
	require.Equal(uint16(24), counter.Read())
	require.Equal(1, sched.Dispatch())
	require.Equal([]uint8{2, 1}, order)
	require.Equal(0, sched.Pending())

	_, ok = sched.Next()
	require.False(ok)
}

func TestSchedulerEqualWakeTimesAreFIFO(t *testing.T) {
	sched, counter := newSimScheduler(t, 0)

	var order []uint8
	for id := uint8(1); id <= 3; id++ {
		tm := Once[uint16](id, func(monotonic.Instant[uint16]) {})
		inner := tm.Handler
		tm.Handler = func(tm *Timer[uint16]) uint8 {
			order = append(order, tm.ID)
			return inner(tm)
		}
		require.NoError(t, sched.ScheduleAfter(tm, 100))
	}

	counter.Advance(100)
	require.Equal(t, 3, sched.Dispatch())
	require.Equal(t, []uint8{1, 2, 3}, order)
}

func TestSchedulerRejectsFarDeadlines(t *testing.T) {
	sched, _ := newSimScheduler(t, 0)
	tm := &Timer[uint16]{ID: 9, Handler: func(*Timer[uint16]) uint8 { return SF_DONE }}

	require.ErrorIs(t, sched.ScheduleAfter(tm, monotonic.HalfRange[uint16]()), ErrDeadlineTooFar)
	require.Equal(t, 0, sched.Pending())
	require.NoError(t, sched.ScheduleAfter(tm, monotonic.HalfRange[uint16]()-1))

	events := TimingEvents()
	require.Equal(t, uint8(EvtDeadlineTooFar), events[0].EventType)
	require.Equal(t, uint8(9), events[0].ID)
}

func TestSchedulerLateTimerFiresNextDispatch(t *testing.T) {
	sched, counter := newSimScheduler(t, 1000)

	fired := 0
	tm := &Timer[uint16]{ID: 4, Handler: func(*Timer[uint16]) uint8 {
		fired++
		return SF_DONE
	}}
	tm.WakeTime = sched.Now().SubDuration(10)
	sched.Schedule(tm)

	counter.Advance(1)
	require.Equal(t, 1, sched.Dispatch())
	require.Equal(t, 1, fired)

	events := TimingEvents()
	require.Equal(t, uint8(EvtTimerPast), events[0].EventType)
	require.Equal(t, uint32(10), events[0].Value2)
	require.Equal(t, uint8(EvtTimerFire), events[1].EventType)
	require.Equal(t, uint32(11), events[1].Value2)
}

func TestSchedulerLateTimerAheadOfFarDeadline(t *testing.T) {
	require := require.New(t)
	sched, counter := newSimScheduler(t, 1000)

	var order []uint8
	record := func(tm *Timer[uint16]) uint8 {
		order = append(order, tm.ID)
		return SF_DONE
	}

	// The two wake times are more than half a period apart, so comparing
	// them directly would put the late timer last.
	far := &Timer[uint16]{ID: 1, Handler: record}
	require.NoError(sched.ScheduleAfter(far, 32000))
	late := &Timer[uint16]{ID: 2, Handler: record}
	late.WakeTime = sched.Now().SubDuration(1000)
	sched.Schedule(late)

	next, ok := sched.Next()
	require.True(ok)
	require.Equal(late.WakeTime, next)

	counter.Advance(1)
	require.Equal(1, sched.Dispatch())
	require.Equal([]uint8{2}, order)
	require.Equal(1, sched.Pending())

	counter.Advance(31999)
	require.Equal(1, sched.Dispatch())
	require.Equal([]uint8{2, 1}, order)
}

func TestScheduleMovesPendingTimer(t *testing.T) {
	require := require.New(t)
	sched, counter := newSimScheduler(t, 0)

	var order []uint8
	record := func(tm *Timer[uint16]) uint8 {
		order = append(order, tm.ID)
		return SF_DONE
	}

	a := &Timer[uint16]{ID: 1, Handler: record}
	b := &Timer[uint16]{ID: 2, Handler: record}
	require.NoError(sched.ScheduleAfter(a, 10))
	require.NoError(sched.ScheduleAfter(b, 20))
	require.NoError(sched.ScheduleAfter(a, 30))
	require.Equal(2, sched.Pending())

	counter.Advance(40)
	require.Equal(2, sched.Dispatch())
	require.Equal([]uint8{2, 1}, order)
	require.Equal(0, sched.Pending())
}

func TestPeriodicDoesNotDrift(t *testing.T) {
	sched, counter := newSimScheduler(t, 65000)

	var due []uint16
	blink := Periodic[uint16](1, 1000, func(at monotonic.Instant[uint16]) {
		due = append(due, at.Raw())
	})
	require.NoError(t, sched.ScheduleAfter(blink, 1000))

	// Dispatch late each time; the schedule stays on the 1000-tick grid.
	for i := 0; i < 3; i++ {
		counter.Advance(1000 + 7)
		require.Equal(t, 1, sched.Dispatch())
	}
	require.Equal(t, []uint16{464, 1464, 2464}, due)
	require.Equal(t, 1, sched.Pending())
}

func TestRescheduledIntoPastWaitsForNextDispatch(t *testing.T) {
	sched, counter := newSimScheduler(t, 0)

	runs := 0
	tm := &Timer[uint16]{ID: 2, Handler: func(tm *Timer[uint16]) uint8 {
		runs++
		return SF_RESCHEDULE
	}}
	require.NoError(t, sched.ScheduleAfter(tm, 5))

	counter.Advance(5)
	require.Equal(t, 1, sched.Dispatch())
	require.Equal(t, 1, sched.Dispatch())
	require.Equal(t, 2, runs)
}

func TestCancel(t *testing.T) {
	sched, counter := newSimScheduler(t, 0)

	fired := false
	a := Once[uint16](1, func(monotonic.Instant[uint16]) { fired = true })
	b := Once[uint16](2, func(monotonic.Instant[uint16]) {})
	require.NoError(t, sched.ScheduleAfter(a, 10))
	require.NoError(t, sched.ScheduleAfter(b, 20))

	require.True(t, sched.Cancel(a))
	require.False(t, sched.Cancel(a))
	require.Equal(t, 1, sched.Pending())

	counter.Advance(30)
	require.Equal(t, 1, sched.Dispatch())
	require.False(t, fired)
}

func TestResetClockKeepsRemainingDelay(t *testing.T) {
	require := require.New(t)
	sched, counter := newSimScheduler(t, 40000)

	soon := Once[uint16](1, func(monotonic.Instant[uint16]) {})
	later := Once[uint16](2, func(monotonic.Instant[uint16]) {})
	overdue := Once[uint16](3, func(monotonic.Instant[uint16]) {})
	require.NoError(sched.ScheduleAfter(soon, 100))
	require.NoError(sched.ScheduleAfter(later, 3000))
	overdue.WakeTime = sched.Now().SubDuration(50)
	sched.Schedule(overdue)

	sched.ResetClock()
	require.Equal(uint16(0), counter.Read())
	require.Equal(1, counter.Resets())
	require.Equal(uint16(0), overdue.WakeTime.Raw())
	require.Equal(uint16(100), soon.WakeTime.Raw())
	require.Equal(uint16(3000), later.WakeTime.Raw())

	require.Equal(1, sched.Dispatch())
	counter.Advance(100)
	require.Equal(1, sched.Dispatch())
	require.Equal(1, sched.Pending())
}

func TestDumpTimingRing(t *testing.T) {
	sched, _ := newSimScheduler(t, 7)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	tm := Once[uint16](5, func(monotonic.Instant[uint16]) {})
	require.NoError(t, sched.ScheduleAfter(tm, 3))
	DumpTimingRing()

	require.Equal(t, []string{
		"[TIMING] === Timing Ring Dump ===",
		"[TIMING] TIMER_SCHED id=5 clock=7 v1=10 v2=0",
		"[TIMING] === End Dump ===",
	}, lines)
}

func TestUtoa(t *testing.T) {
	for _, tc := range []struct {
		in   uint32
		want string
	}{
		{0, "0"},
		{7, "7"},
		{65535, "65535"},
		{4294967295, "4294967295"},
	} {
		require.Equal(t, tc.want, utoa(tc.in))
	}
}

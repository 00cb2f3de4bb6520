package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"monotick/core"
	hostlog "monotick/host/log"
	"monotick/host/monitor"
	"monotick/host/serial"
	"monotick/monotonic"
	"monotick/protocol"
	"monotick/sim"
)

type simulateFlags struct {
	Start    uint16
	Interval time.Duration
	Step     uint32
	Blink    uint32
	Report   uint32
	Duration time.Duration
}

func defaultSimulateFlags() simulateFlags {
	return simulateFlags{
		Interval: time.Millisecond,
		Step:     1,
		Blink:    1000,
		Report:   250,
		Duration: 5 * time.Second,
	}
}

func newSimulateCommand(root *Config) *cobra.Command {
	flags := defaultSimulateFlags()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated 16-bit clock source through the monitor",
		Long: `simulate drives a 16-bit counter from the host clock, runs a scheduler
with a blink task and a sample reporter on it, and feeds the reported
frames to the monitor. The default rate of one tick per millisecond wraps
the counter about every 65 seconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := root.LogLevel
			if level == "" {
				level = "NOTICE"
			}
			backend, err := hostlog.New(root.LogFile, level, false)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.Duration)
			defer cancel()

			st, err := runSimulation(ctx, backend, flags)
			logStats(backend.GetLogger("tickmon"), st)
			if err != nil {
				return err
			}
			if n := st.Violations(); n != 0 {
				return fmt.Errorf("%d monotonicity violations", n)
			}
			return nil
		},
	}

	cmd.Flags().Uint16Var(&flags.Start, "start", flags.Start, "initial raw counter value")
	cmd.Flags().DurationVar(&flags.Interval, "interval", flags.Interval, "real time per counter step")
	cmd.Flags().Uint32Var(&flags.Step, "step", flags.Step, "ticks per counter step")
	cmd.Flags().Uint32Var(&flags.Blink, "blink", flags.Blink, "blink period in ticks")
	cmd.Flags().Uint32Var(&flags.Report, "report", flags.Report, "sample report period in ticks")
	cmd.Flags().DurationVar(&flags.Duration, "duration", flags.Duration, "how long to run")
	return cmd
}

// runSimulation runs until ctx is done and returns the monitor statistics.
var errInterval = errors.New("interval must be positive")

func runSimulation(ctx context.Context, backend *hostlog.Backend, flags simulateFlags) (monitor.Stats, error) {
	const sourceID = 0

	if flags.Interval <= 0 {
		return monitor.Stats{}, fmt.Errorf("%w: %v", errInterval, flags.Interval)
	}

	log := backend.GetLogger("sim")
	half := monotonic.HalfRange[uint16]()
	if monotonic.FromTicks(flags.Blink) >= half || monotonic.FromTicks(flags.Report) >= half {
		return monitor.Stats{}, core.ErrDeadlineTooFar
	}

	counter := sim.NewCounter[uint16](flags.Start)
	src := monotonic.NewSource[uint16]("sim/TIM3", counter, monotonic.Ratio1to1)
	src.Start()

	port := serial.NewPipe()
	mon := monitor.New(backend.GetLogger("monitor"), true, monitor.Source{
		ID:     sourceID,
		Name:   src.Name(),
		Width:  16,
		MaxGap: monotonic.FromTicks(flags.Report * 4),
	})

	monDone := make(chan error, 1)
	go func() { monDone <- mon.Run(ctx, port) }()

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	ticker := &sim.Ticker[uint16]{Counter: counter, Interval: flags.Interval, Step: flags.Step}
	go ticker.Run(tickCtx)

	core.SetDebugWriter(func(s string) { log.Debug(s) })
	sched := core.NewScheduler[uint16](src)

	led := false
	blink := core.Periodic[uint16](1, monotonic.FromTicks(flags.Blink), func(due monotonic.Instant[uint16]) {
		led = !led
		log.Infof("blink led=%v due=%d", led, due.Raw())
	})

	out := protocol.NewScratchOutput()
	enc := protocol.NewEncoder(out)
	out.Output([]byte{protocol.MessageValueSync})
	var writeErr error
	report := core.Periodic[uint16](2, monotonic.FromTicks(flags.Report), func(monotonic.Instant[uint16]) {
		enc.EncodeSample(protocol.Sample{Source: sourceID, Width: 16, Raw: uint32(src.Now().Raw())})
		if _, err := port.Write(out.Result()); err != nil && !errors.Is(err, serial.ErrClosed) && writeErr == nil {
			writeErr = err
		}
		out.Reset()
	})

	if err := sched.ScheduleAfter(blink, monotonic.FromTicks(flags.Blink)); err != nil {
		return monitor.Stats{}, err
	}
	if err := sched.ScheduleAfter(report, monotonic.FromTicks(flags.Report)); err != nil {
		return monitor.Stats{}, err
	}

	poll := time.NewTicker(time.Millisecond)
	defer poll.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-poll.C:
			sched.Dispatch()
		}
	}

	core.DumpTimingRing()
	err := <-monDone
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err == nil {
		err = writeErr
	}
	return mon.Stats(), err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/op/go-logging.v1"

	"monotick/host/config"
	hostlog "monotick/host/log"
	"monotick/host/monitor"
	"monotick/host/serial"
)

type monitorFlags struct {
	ConfigFile    string
	Device        string
	StatsInterval time.Duration
	Strict        bool
}

func newMonitorCommand(root *Config) *cobra.Command {
	var flags monitorFlags

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor a device over a serial port",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.ConfigFile, "config", "f", "tickmon.toml",
		"path to the configuration file (TOML format)")
	cmd.Flags().StringVarP(&flags.Device, "device", "d", "",
		"serial device; overrides the config file")
	cmd.Flags().DurationVar(&flags.StatsInterval, "stats-interval", 10*time.Second,
		"how often to log per-source statistics, 0 to disable")
	cmd.Flags().BoolVar(&flags.Strict, "strict", true,
		"drop samples from sources missing from the config file")
	return cmd
}

func runMonitor(ctx context.Context, root *Config, flags monitorFlags) error {
	cfg, err := config.LoadFile(flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config file '%v': %w", flags.ConfigFile, err)
	}
	if flags.Device != "" {
		cfg.Serial.Device = flags.Device
	}

	level := cfg.Logging.Level
	if root.LogLevel != "" {
		level = root.LogLevel
	}
	logFile := cfg.Logging.File
	if root.LogFile != "" {
		logFile = root.LogFile
	}
	backend, err := hostlog.New(logFile, level, cfg.Logging.Disable)
	if err != nil {
		return err
	}
	defer backend.Close()
	log := backend.GetLogger("tickmon")

	port, err := serial.Open(cfg.Serial.PortConfig())
	if err != nil {
		return err
	}
	if err := port.Flush(); err != nil {
		log.Warningf("flush %s: %v", cfg.Serial.Device, err)
	}
	log.Noticef("monitoring %d sources on %s", len(cfg.Sources), cfg.Serial.Device)

	mon := monitor.New(backend.GetLogger("monitor"), flags.Strict, monitor.SourcesFromConfig(cfg)...)
	if flags.StatsInterval > 0 {
		go reportStats(ctx, log, mon, flags.StatsInterval)
	}

	err = mon.Run(ctx, port)
	logStats(log, mon.Stats())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func reportStats(ctx context.Context, log *logging.Logger, mon *monitor.Monitor, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			logStats(log, mon.Stats())
		}
	}
}

func logStats(log *logging.Logger, st monitor.Stats) {
	for _, src := range st.Sources {
		log.Noticef("%s: samples=%d elapsed=%d wraps=%d stalls=%d late=%d ambiguous=%d violations=%d",
			src.Name, src.Samples, src.Elapsed, src.Wraps, src.Stalls, src.Late, src.Ambiguous, src.Violations)
	}
	log.Noticef("frames=%d resyncs=%d bad=%d seq-gaps=%d unexpected=%d",
		st.Decoder.Frames, st.Decoder.Resyncs, st.Decoder.BadFrame, st.SeqGaps, st.Unexpected)
}

// Package monitor checks the sample stream of a device for monotonic,
// wraparound-correct counter behaviour.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"monotick/host/config"
	"monotick/monotonic"
	"monotick/protocol"
)

// Source describes a clock source expected in the stream.
type Source struct {
	ID     uint8
	Name   string
	Width  uint8              // 16 or 32
	MaxGap monotonic.Duration // 0 disables the late-sample check
}

// SourcesFromConfig maps validated configuration to monitor sources.
func SourcesFromConfig(cfg *config.Config) []Source {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, Source{
			ID:     s.ID,
			Name:   s.Name,
			Width:  s.Peripheral().Width,
			MaxGap: monotonic.FromTicks(s.MaxGapTicks),
		})
	}
	return sources
}

// SourceStats counts what was seen on one source.
type SourceStats struct {
	Source
	Samples    uint64
	LastRaw    uint32
	Elapsed    uint64 // sum of forward steps in ticks
	Wraps      uint32
	Stalls     uint32
	Late       uint32
	Ambiguous  uint32
	Violations uint32
}

// Stats is a snapshot of the monitor counters.
type Stats struct {
	Sources    []SourceStats
	Decoder    protocol.DecoderStats
	SeqGaps    uint32
	BadWidth   uint32
	Unexpected uint32 // samples from unconfigured sources
}

// Violations sums backward steps over all sources.
func (s Stats) Violations() uint32 {
	var n uint32
	for _, src := range s.Sources {
		n += src.Violations
	}
	return n
}

type sourceState struct {
	stats   SourceStats
	tracker tracker
}

// Monitor consumes samples and keeps per-source statistics.
type Monitor struct {
	sync.Mutex

	log     *logging.Logger
	sources map[uint8]*sourceState
	order   []uint8
	strict  bool

	decoder *protocol.Decoder
	seq     uint8
	haveSeq bool

	seqGaps    uint32
	badWidth   uint32
	unexpected uint32
}

// New creates a monitor for sources. When strict is false, samples from
// unknown sources are tracked using the width in the frame.
func New(log *logging.Logger, strict bool, sources ...Source) *Monitor {
	m := &Monitor{
		log:     log,
		sources: make(map[uint8]*sourceState),
		strict:  strict,
		decoder: protocol.NewDecoder(),
	}
	for _, s := range sources {
		m.add(s)
	}
	return m
}

func (m *Monitor) add(s Source) *sourceState {
	if s.Name == "" {
		s.Name = fmt.Sprintf("source%d", s.ID)
	}
	st := &sourceState{
		stats:   SourceStats{Source: s},
		tracker: newTracker(s.Width),
	}
	m.sources[s.ID] = st
	m.order = append(m.order, s.ID)
	return st
}

// Observe processes one decoded sample.
func (m *Monitor) Observe(s protocol.Sample) {
	m.Lock()
	defer m.Unlock()

	m.observe(s)
}

func (m *Monitor) observe(s protocol.Sample) {
	m.checkSeq(s.Seq)

	st, ok := m.sources[s.Source]
	if !ok {
		m.unexpected++
		if m.strict {
			m.log.Warningf("sample from unconfigured source %d dropped", s.Source)
			return
		}
		m.log.Noticef("tracking new %d-bit source %d", s.Width, s.Source)
		st = m.add(Source{ID: s.Source, Width: s.Width})
	}

	stats := &st.stats
	if s.Width != stats.Width {
		m.badWidth++
		m.log.Errorf("%s: %d-bit sample, expected %d-bit", stats.Name, s.Width, stats.Width)
		return
	}

	kind, d, wrapped := st.tracker.observe(s.Raw)
	stats.Samples++
	prev := stats.LastRaw
	stats.LastRaw = s.Raw

	switch kind {
	case stepForward:
		stats.Elapsed += uint64(d)
		if wrapped {
			stats.Wraps++
			m.log.Debugf("%s: wrapped %d -> %d", stats.Name, prev, s.Raw)
		}
		if stats.MaxGap != 0 && d > stats.MaxGap {
			stats.Late++
			m.log.Warningf("%s: %d ticks between samples exceeds %d", stats.Name, d.Ticks(), stats.MaxGap.Ticks())
		}
	case stepStalled:
		stats.Stalls++
		m.log.Debugf("%s: counter stalled at %d", stats.Name, s.Raw)
	case stepAmbiguous:
		stats.Ambiguous++
		m.log.Warningf("%s: frames lost and gap %d -> %d is half a period or more; ordering unknown", stats.Name, prev, s.Raw)
	case stepBackward:
		stats.Violations++
		m.log.Errorf("%s: counter went back %d ticks (%d -> %d)", stats.Name, d.Ticks(), prev, s.Raw)
	}
}

// checkSeq follows the 4-bit frame sequence. A gap means frames were
// lost, so the next step on every source may span an unknown time.
func (m *Monitor) checkSeq(seq uint8) {
	if m.haveSeq && seq != (m.seq+1)&protocol.MessageSeqMask {
		m.seqGaps++
		m.log.Infof("frame sequence gap: %d -> %d", m.seq, seq)
		for _, st := range m.sources {
			st.tracker.lost()
		}
	}
	m.seq = seq
	m.haveSeq = true
}

// Resync forgets the previous sample of every source, e.g. after the
// device was reset.
func (m *Monitor) Resync() {
	m.Lock()
	defer m.Unlock()

	for _, st := range m.sources {
		st.tracker.reset()
	}
	m.haveSeq = false
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	m.Lock()
	defer m.Unlock()

	s := Stats{
		Sources:    make([]SourceStats, 0, len(m.order)),
		Decoder:    m.decoder.Stats(),
		SeqGaps:    m.seqGaps,
		BadWidth:   m.badWidth,
		Unexpected: m.unexpected,
	}
	for _, id := range m.order {
		s.Sources = append(s.Sources, m.sources[id].stats)
	}
	return s
}

// Receive decodes every complete frame in input.
func (m *Monitor) Receive(input protocol.InputBuffer) {
	m.Lock()
	defer m.Unlock()

	m.decoder.Receive(input, m.observe)
}

// Run reads frames from r until ctx is done or r fails. r is closed when
// ctx is cancelled so a blocked read returns. io.EOF is a read timeout
// on a serial port and is not fatal.
func (m *Monitor) Run(ctx context.Context, r io.ReadCloser) error {
	stop := context.AfterFunc(ctx, func() {
		r.Close()
	})
	defer stop()

	fifo := protocol.NewFifoBuffer(4 * protocol.MessageMax)
	buf := make([]byte, protocol.MessageMax)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for written := 0; written < n; {
				w := fifo.Write(buf[written:n])
				written += w
				m.Receive(fifo)
				if w == 0 && fifo.Free() == 0 {
					// Stream is not framing; drop what is buffered.
					fifo.Reset()
				}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("monitor: read failed: %w", err)
		}
	}
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeAll(samples ...Sample) []byte {
	out := NewScratchOutput()
	enc := NewEncoder(out)
	for _, s := range samples {
		enc.EncodeSample(s)
	}
	return append([]byte(nil), out.Result()...)
}

func collect(d *Decoder, in InputBuffer) []Sample {
	var got []Sample
	d.Receive(in, func(s Sample) { got = append(got, s) })
	return got
}

func TestSampleRoundTrip(t *testing.T) {
	samples := []Sample{
		{Source: 0, Width: 16, Raw: 65530},
		{Source: 0, Width: 16, Raw: 5},
		{Source: 2, Width: 32, Raw: 0xFFFFFFF0},
		{Source: 2, Width: 32, Raw: 0x80000000},
	}
	stream := append([]byte{MessageValueSync}, encodeAll(samples...)...)

	dec := NewDecoder()
	in := NewSliceInputBuffer(stream)
	got := collect(dec, in)

	require.Len(t, got, len(samples))
	for i, s := range got {
		require.Equal(t, uint8(i), s.Seq)
		s.Seq = 0
		require.Equal(t, samples[i], s)
	}
	require.Equal(t, 0, in.Available())
	require.Equal(t, DecoderStats{Frames: 4}, dec.Stats())
}

func TestFrameLayout(t *testing.T) {
	frame := encodeAll(Sample{Source: 1, Width: 16, Raw: 10})
	// len, seq, source, width, raw, crc hi, crc lo, sync
	require.Len(t, frame, 8)
	require.Equal(t, byte(8), frame[MessagePositionLen])
	require.Equal(t, byte(MessageDest), frame[MessagePositionSeq])
	require.Equal(t, []byte{1, 16, 10}, frame[2:5])
	require.Equal(t, byte(MessageValueSync), frame[7])

	crc := CRC16(frame[:5])
	require.Equal(t, byte(crc>>8), frame[5])
	require.Equal(t, byte(crc), frame[6])
}

func TestSequenceWraps(t *testing.T) {
	var samples []Sample
	for i := 0; i < 18; i++ {
		samples = append(samples, Sample{Width: 32, Raw: uint32(i)})
	}
	stream := append([]byte{MessageValueSync}, encodeAll(samples...)...)

	got := collect(NewDecoder(), NewSliceInputBuffer(stream))
	require.Len(t, got, 18)
	require.Equal(t, uint8(15), got[15].Seq)
	require.Equal(t, uint8(0), got[16].Seq)
	require.Equal(t, uint8(1), got[17].Seq)
}

func TestDecoderWaitsForPartialFrame(t *testing.T) {
	stream := append([]byte{MessageValueSync}, encodeAll(
		Sample{Width: 16, Raw: 1},
		Sample{Width: 16, Raw: 2},
	)...)

	fifo := NewFifoBuffer(64)
	dec := NewDecoder()

	fifo.Write(stream[:12])
	got := collect(dec, fifo)
	require.Len(t, got, 1)
	require.Equal(t, uint32(1), got[0].Raw)
	require.Equal(t, 3, fifo.Available(), "partial frame stays buffered")

	fifo.Write(stream[12:])
	got = collect(dec, fifo)
	require.Len(t, got, 1)
	require.Equal(t, uint32(2), got[0].Raw)
	require.Equal(t, 0, fifo.Available())
}

func TestDecoderSkipsGarbageBeforeSync(t *testing.T) {
	stream := append([]byte{0x01, 0x55, 0x10}, MessageValueSync)
	stream = append(stream, encodeAll(Sample{Source: 3, Width: 32, Raw: 42})...)

	got := collect(NewDecoder(), NewSliceInputBuffer(stream))
	require.Len(t, got, 1)
	require.Equal(t, uint8(3), got[0].Source)
	require.Equal(t, uint32(42), got[0].Raw)
}

func TestDecoderResyncsAfterCorruption(t *testing.T) {
	good := encodeAll(Sample{Width: 16, Raw: 100}, Sample{Width: 16, Raw: 200}, Sample{Width: 16, Raw: 300})
	frameLen := int(good[0])
	corrupt := append([]byte(nil), good...)
	corrupt[frameLen+3]++ // damage the second frame's payload

	dec := NewDecoder()
	got := collect(dec, NewSliceInputBuffer(append([]byte{MessageValueSync}, corrupt...)))

	require.Len(t, got, 2)
	require.Equal(t, uint32(100), got[0].Raw)
	require.Equal(t, uint32(300), got[1].Raw)
	require.Equal(t, uint32(1), dec.Stats().Resyncs)
}

func TestDecoderRejectsBadPayload(t *testing.T) {
	// CRC-valid frame claiming a 24-bit counter
	out := NewScratchOutput()
	out.Output([]byte{0, MessageDest})
	EncodeVLQUint(out, 0)
	EncodeVLQUint(out, 24)
	EncodeVLQUint(out, 7)
	out.Update(0, uint8(out.CurPosition()+MessageTrailerSize))
	crc := CRC16(out.Result())
	out.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})

	dec := NewDecoder()
	got := collect(dec, NewSliceInputBuffer(append([]byte{MessageValueSync}, out.Result()...)))
	require.Empty(t, got)
	require.Equal(t, uint32(1), dec.Stats().BadFrame)
}

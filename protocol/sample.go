package protocol

import (
	"bytes"
	"errors"
)

// ErrBadFrame is reported for frames that pass CRC but carry an
// undecodable payload.
var ErrBadFrame = errors.New("malformed sample frame")

// Encoder writes sample frames into an output buffer.
type Encoder struct {
	output OutputBuffer
	seq    uint8
}

// NewEncoder creates an encoder writing to output.
func NewEncoder(output OutputBuffer) *Encoder {
	return &Encoder{output: output}
}

// EncodeSample appends one frame carrying s. s.Seq is ignored; the
// encoder numbers frames itself.
func (e *Encoder) EncodeSample(s Sample) {
	cursor := e.output.CurPosition()

	// length is patched once the payload size is known
	e.output.Output([]byte{0, MessageDest | e.seq})
	EncodeVLQUint(e.output, uint32(s.Source))
	EncodeVLQUint(e.output, uint32(s.Width))
	EncodeVLQUint(e.output, s.Raw)

	written := len(e.output.DataSince(cursor))
	e.output.Update(cursor+MessagePositionLen, uint8(written+MessageTrailerSize))

	crc := CRC16(e.output.DataSince(cursor))
	e.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc),
		MessageValueSync,
	})

	e.seq = (e.seq + 1) & MessageSeqMask
}

// DecoderStats counts what the decoder discarded.
type DecoderStats struct {
	Frames   uint32 // valid frames delivered
	Resyncs  uint32 // times the stream lost framing
	BadFrame uint32 // CRC-valid frames with a bad payload
}

// Decoder splits a byte stream into samples.
type Decoder struct {
	synchronized bool
	stats        DecoderStats
}

// NewDecoder creates a decoder. It starts unsynchronized and discards
// bytes up to the first sync byte, since a host usually attaches
// mid-stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Stats returns the decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Receive decodes every complete frame in input, calls fn for each sample
// and pops the consumed bytes. An incomplete trailing frame stays in
// input for the next call.
func (d *Decoder) Receive(input InputBuffer, fn func(Sample)) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		s, err := decodeSample(payload)
		if err != nil {
			d.stats.BadFrame++
			continue
		}
		s.Seq = seq & MessageSeqMask
		d.stats.Frames++
		fn(s)
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}

func decodeSample(payload []byte) (Sample, error) {
	var vals [3]uint32
	for i := range vals {
		v, err := DecodeVLQUint(&payload)
		if err != nil {
			return Sample{}, err
		}
		vals[i] = v
	}
	if len(payload) != 0 || vals[0] > 0xFF || (vals[1] != 16 && vals[1] != 32) {
		return Sample{}, ErrBadFrame
	}
	if vals[1] == 16 && vals[2] > 0xFFFF {
		return Sample{}, ErrBadFrame
	}
	return Sample{Source: uint8(vals[0]), Width: uint8(vals[1]), Raw: vals[2]}, nil
}

//go:build js && wasm

package main

import (
	"encoding/hex"
	"syscall/js"

	"monotick/monotonic"
	"monotick/protocol"
)

// Browser-side decoder for tickmon sample streams read over WebSerial.
// The decoder keeps its sync state across calls.
var decoder = protocol.NewDecoder()

func main() {
	js.Global().Set("monotickWasm", js.ValueOf(map[string]interface{}{
		"encodeVLQ":     js.FuncOf(encodeVLQWrapper),
		"decodeVLQ":     js.FuncOf(decodeVLQWrapper),
		"crc16":         js.FuncOf(crc16Wrapper),
		"encodeSample":  js.FuncOf(encodeSampleWrapper),
		"decodeFrames":  js.FuncOf(decodeFramesWrapper),
		"compare":       js.FuncOf(compareWrapper),
		"durationSince": js.FuncOf(durationSinceWrapper),
		"version":       protocol.Version,
	}))

	// Keep the program running
	select {}
}

// encodeVLQWrapper encodes a signed integer to VLQ format
// Args: value (int32)
// Returns: hex string
func encodeVLQWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing value argument")
	}

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(output, int32(args[0].Int()))
	return js.ValueOf(hex.EncodeToString(output.Result()))
}

// decodeVLQWrapper decodes a VLQ from hex string
// Args: hexString (string)
// Returns: {value: number, consumed: number, error: string}
func decodeVLQWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult(0, 0, "missing hex string argument")
	}

	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeResult(0, 0, "invalid hex string: "+err.Error())
	}

	rest := data
	value, err := protocol.DecodeVLQInt(&rest)
	if err != nil {
		return makeResult(0, 0, err.Error())
	}
	return makeResult(int(value), len(data)-len(rest), "")
}

// crc16Wrapper calculates CRC16 checksum
// Args: hexString (string)
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}

	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// encodeSampleWrapper builds one frame, for driving the decoder from a page
// Args: source, width, raw
// Returns: hex string of the frame
func encodeSampleWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf("error: missing arguments")
	}

	output := protocol.NewScratchOutput()
	protocol.NewEncoder(output).EncodeSample(protocol.Sample{
		Source: uint8(args[0].Int()),
		Width:  uint8(args[1].Int()),
		Raw:    uint32(args[2].Float()),
	})
	return js.ValueOf(hex.EncodeToString(output.Result()))
}

// decodeFramesWrapper decodes a chunk of the byte stream. Bytes of an
// incomplete trailing frame are returned so the page can prepend them to
// the next chunk.
// Args: hexString (string)
// Returns: {samples: [{seq, source, width, raw}], rest: string (hex), frames, resyncs}
func decodeFramesWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeErr("missing hex string argument")
	}

	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeErr("invalid hex string: " + err.Error())
	}

	input := protocol.NewSliceInputBuffer(data)
	samples := []interface{}{}
	decoder.Receive(input, func(s protocol.Sample) {
		samples = append(samples, map[string]interface{}{
			"seq":    int(s.Seq),
			"source": int(s.Source),
			"width":  int(s.Width),
			"raw":    float64(s.Raw),
		})
	})

	stats := decoder.Stats()
	return js.ValueOf(map[string]interface{}{
		"samples": samples,
		"rest":    hex.EncodeToString(input.Data()),
		"frames":  int(stats.Frames),
		"resyncs": int(stats.Resyncs),
	})
}

// compareWrapper orders two counter samples with wraparound
// Args: width (16|32), a, b
// Returns: -1, 0 or 1
func compareWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErr("missing arguments")
	}

	a, b := uint32(args[1].Float()), uint32(args[2].Float())
	if args[0].Int() == 16 {
		return js.ValueOf(monotonic.FromCounter(uint16(a)).Compare(monotonic.FromCounter(uint16(b))))
	}
	return js.ValueOf(monotonic.FromCounter(a).Compare(monotonic.FromCounter(b)))
}

// durationSinceWrapper returns the ticks from earlier to later
// Args: width (16|32), later, earlier
// Returns: number
func durationSinceWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErr("missing arguments")
	}

	later, earlier := uint32(args[1].Float()), uint32(args[2].Float())
	var d monotonic.Duration
	if args[0].Int() == 16 {
		d = monotonic.FromCounter(uint16(later)).DurationSince(monotonic.FromCounter(uint16(earlier)))
	} else {
		d = monotonic.FromCounter(later).DurationSince(monotonic.FromCounter(earlier))
	}
	return js.ValueOf(float64(d.Ticks()))
}

// Helper to create result objects
func makeResult(value int, consumed int, errMsg string) js.Value {
	result := make(map[string]interface{})
	result["value"] = value
	result["consumed"] = consumed
	if errMsg != "" {
		result["error"] = errMsg
	}
	return js.ValueOf(result)
}

func makeErr(errMsg string) js.Value {
	return js.ValueOf(map[string]interface{}{"error": errMsg})
}

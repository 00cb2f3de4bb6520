package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 95, 96, -32, -33,
		127, -127, 128, -128,
		1000, -1000,
		65535, -65535,
		1000000, -1000000,
		1<<31 - 1, -1 << 31,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode left %d bytes for value %d", len(data), expected)
		}
	}
}

func TestVLQCounterSamples(t *testing.T) {
	// raw samples of both counter widths, including the wrap points
	testCases := []struct {
		value uint32
		size  int
	}{
		{0, 1},
		{95, 1},
		{96, 2},
		{65535, 3},
		{65536, 3},
		{0x7FFFFFFF, 5},
		{0x80000000, 5},
		{0xFFFFFFFF, 1}, // encodes as -1
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, tc.value)
		encoded := output.Result()
		if len(encoded) != tc.size {
			t.Errorf("value %d: expected %d bytes, got %d", tc.value, tc.size, len(encoded))
		}

		data := encoded
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("value %d: %v", tc.value, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("VLQ mismatch: expected %d, got %d", tc.value, decoded)
		}
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // continuation bit with nothing after it
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	data = nil
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall on empty input, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}

func TestCRC16(t *testing.T) {
	if got := CRC16(nil); got != 0xFFFF {
		t.Errorf("CRC16 of empty input: expected 0xFFFF, got 0x%04X", got)
	}
	// CRC-16/MCRF4XX check value
	if got := CRC16([]byte("123456789")); got != 0x6F91 {
		t.Errorf("CRC16 check value: expected 0x6F91, got 0x%04X", got)
	}
	if CRC16([]byte{1, 2, 3}) == CRC16([]byte{1, 2, 4}) {
		t.Error("CRC16 collision on single-bit change")
	}
}

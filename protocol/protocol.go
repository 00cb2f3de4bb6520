// Package protocol frames counter samples for transport from firmware to a
// host over a byte stream.
//
// A frame is laid out as
//
//	[len][seq][payload...][crc hi][crc lo][0x7E]
//
// len counts the whole frame. seq carries 0x10 in its high bits and a
// 4-bit rolling sequence number. The payload is three VLQ integers:
// source id, counter width in bits and the raw counter sample.
package protocol

// Version of the sample stream format
const Version = "1"

// Framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the scratch buffer size; several frames may be
	// batched before a flush.
	MessageMax = 512
)

// Sample is one counter reading reported by the firmware.
type Sample struct {
	Seq    uint8 // 4-bit frame sequence
	Source uint8 // which clock source on the device
	Width  uint8 // counter width in bits
	Raw    uint32
}

// CRC16 calculates the CCITT checksum used in the frame trailer
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

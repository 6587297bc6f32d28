package internal

/*
  0                   1                   2                   3
  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
 +-+-+-+-+-------+-+-------------+-------------------------------+
 |F|R|R|R| opcode|M| Payload len |    Extended payload length    |
 |I|S|S|S|  (4)  |A|     (7)     |     (16, if payload len==126) |
 |N|V|V|V|       |S|             |                               |
 | |1|2|3|       |K|             |                               |
 +-+-+-+-+-------+-+-------------+-------------------------------+
 |Masking-key, if MASK set to 1                                  |
 +---------------------------------------------------------------+
 :                     Payload Data ...                          :
 +---------------------------------------------------------------+

 The 64 bit extended length (payload len==127) is not supported.
*/

const (
	BaseHeaderSize = 2
	ExtLength16    = 2
	MaskKeySize    = 4
	// MaxHeaderSize covers base header, 16 bit extended length and masking key.
	MaxHeaderSize = BaseHeaderSize + ExtLength16 + MaskKeySize

	// 0-125, first 7 bits represent length as is
	MaxShortPayload = 125
	// 7 bits = 126, next 16 bits represent length
	LengthField16 = 126
	// 7 bits = 127, next 64 bits represent length
	LengthField64 = 127
	// largest payload representable without the 64 bit form
	MaxPayload = 1<<16 - 1
)

const (
	finBit     = 0b1_000_0000
	rsv1Bit    = 0b0_100_0000
	rsv2Bit    = 0b0_010_0000
	rsv3Bit    = 0b0_001_0000
	opcodeBits = 0b0_000_1111
	maskBit    = 0b1_000_0000
	lengthBits = 0b0_111_1111
)

type FrameHeader struct {
	IsFinalFrame bool
	// 1 bit
	RSV1 uint8
	// 1 bit
	RSV2 uint8
	// 1 bit
	RSV3 uint8
	// 4 bits
	Opcode Opcode
	// 1 bit
	IsMasked bool
	// raw 7 bit length field, 0-127
	LengthField uint8
	// resolved length, from LengthField or the 16 bit extension
	PayloadLength uint16
	// 0 or 4 bytes
	MaskingKey MaskKey
}

// EncodedSize returns the number of bytes a frame with n payload bytes occupies on the wire.
func EncodedSize(n int, masked bool) int {
	size := BaseHeaderSize + n
	if n > MaxShortPayload {
		size += ExtLength16
	}
	if masked {
		size += MaskKeySize
	}
	return size
}

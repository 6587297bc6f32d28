package internal

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Source is the read half of a byte-stream transport. Available reports how many
// bytes can be read right now without blocking.
type Source interface {
	Available() int
	ReadByte() (byte, error)
}

// Filler is implemented by sources that can wait a bounded time for bytes still
// in flight. Fill returns the number of bytes available afterwards, which may be
// less than n.
type Filler interface {
	Fill(n int) int
}

// Require reports how many bytes src has available, giving a Filler source the
// chance to receive up to n bytes first.
func Require(src Source, n int) int {
	avail := src.Available()
	if avail >= n {
		return avail
	}
	if f, ok := src.(Filler); ok {
		return f.Fill(n)
	}
	return avail
}

// DecodeHeader reads the base header, the optional 16 bit extended length and the
// optional masking key from src. It never reads past what src reports as available.
func DecodeHeader(src Source) (FrameHeader, error) {
	f := FrameHeader{}

	var fixed [BaseHeaderSize]byte
	err := readFull(src, fixed[:])
	if err != nil {
		return f, fmt.Errorf("failed to read first 2 essential bytes of the frame: [%w]", err)
	}
	b0, b1 := fixed[0], fixed[1]

	f.IsFinalFrame = b0&finBit == finBit
	f.RSV1 = b0 & rsv1Bit >> 6
	f.RSV2 = b0 & rsv2Bit >> 5
	f.RSV3 = b0 & rsv3Bit >> 4
	f.Opcode = Opcode(b0 & opcodeBits)

	f.IsMasked = b1&maskBit == maskBit
	f.LengthField = b1 & lengthBits
	f.PayloadLength = uint16(f.LengthField)

	switch f.LengthField {
	case LengthField16:
		var ext [ExtLength16]byte
		err = readFull(src, ext[:])
		if err != nil {
			return f, fmt.Errorf("payload length 126 signaled that next 16 bits must be actual length, but failed to read them: [%w]", err)
		}
		f.PayloadLength = binary.BigEndian.Uint16(ext[:])
	case LengthField64:
		return f, fmt.Errorf("payload length 127 signaled a 64 bit length: [%w]", ErrUnsupportedLength)
	}

	if f.IsMasked {
		if avail := Require(src, MaskKeySize); avail < MaskKeySize {
			return f, fmt.Errorf("mask bit set but only %d bytes available: [%w]", avail, ErrMissingMaskKey)
		}
		err = readFull(src, f.MaskingKey[:])
		if err != nil {
			return f, fmt.Errorf("mask bit signaled that next 32 bits must have masking key, but failed to read them: [%w]",
				errors.Join(err, ErrMissingMaskKey))
		}
	}

	return f, nil
}

// DecodePayload reads f.PayloadLength bytes into dst, unmasking them when the frame is masked.
// It stops early with ErrTruncatedRead if src runs out of bytes, and with ErrPayloadTooLarge
// once dst is full but the frame declares more. In that case the excess is discarded
// as far as src can deliver it, so the next header starts on a frame boundary.
func DecodePayload(src Source, f FrameHeader, dst []byte) (int, error) {
	declared := int(f.PayloadLength)
	limit := min(declared, len(dst))

	for n := 0; n < limit; n++ {
		if Require(src, 1) == 0 {
			return n, fmt.Errorf("frame declared %d payload bytes, transport ran dry after %d: [%w]",
				declared, n, ErrTruncatedRead)
		}
		b, err := src.ReadByte()
		if err != nil {
			return n, fmt.Errorf("failed to read payload byte %d: [%w]", n, errors.Join(err, ErrTruncatedRead))
		}
		if f.IsMasked {
			b ^= f.MaskingKey[n%4]
		}
		dst[n] = b
	}

	if declared > len(dst) {
		excess := declared - limit
		skipped := discard(src, excess)
		if skipped < excess {
			return limit, fmt.Errorf("frame declared %d payload bytes, capacity is %d, %d excess bytes still unread: [%w]",
				declared, len(dst), excess-skipped, errors.Join(ErrPayloadTooLarge, ErrTruncatedRead))
		}
		return limit, fmt.Errorf("frame declared %d payload bytes, capacity is %d: [%w]",
			declared, len(dst), ErrPayloadTooLarge)
	}

	return declared, nil
}

// Encode writes a final frame carrying payload into dst and returns the frame size.
// A non-nil key sets the MASK bit, writes the key after the length and masks the payload.
func Encode(dst []byte, opcode Opcode, payload []byte, key *MaskKey) (int, error) {
	if len(payload) > MaxPayload {
		return 0, fmt.Errorf("payload of %d bytes needs a 64 bit length: [%w]", len(payload), ErrUnsupportedLength)
	}

	size := EncodedSize(len(payload), key != nil)
	if size > len(dst) {
		return 0, fmt.Errorf("frame of %d bytes does not fit buffer of %d: [%w]", size, len(dst), ErrPayloadTooLarge)
	}

	dst[0] = finBit | byte(opcode)&opcodeBits

	var b1 byte
	if key != nil {
		b1 = maskBit
	}

	offset := BaseHeaderSize
	if len(payload) <= MaxShortPayload {
		dst[1] = b1 | byte(len(payload))
	} else {
		dst[1] = b1 | LengthField16
		binary.BigEndian.PutUint16(dst[offset:], uint16(len(payload)))
		offset += ExtLength16
	}

	if key != nil {
		copy(dst[offset:], key[:])
		offset += MaskKeySize
	}

	if len(payload) > 0 {
		n := copy(dst[offset:], payload)
		if key != nil {
			Mask(dst[offset:offset+n], *key)
		}
		offset += n
	}

	return offset, nil
}

// discard skips up to n bytes of src and returns how many were skipped.
func discard(src Source, n int) int {
	skipped := 0
	for skipped < n {
		avail := Require(src, n-skipped)
		if avail == 0 {
			break
		}
		m := min(avail, n-skipped)
		for i := 0; i < m; i++ {
			_, err := src.ReadByte()
			if err != nil {
				return skipped
			}
			skipped++
		}
	}
	return skipped
}

func readFull(src Source, dst []byte) error {
	if avail := Require(src, len(dst)); avail < len(dst) {
		return fmt.Errorf("need %d bytes, %d available: [%w]", len(dst), avail, ErrTruncatedRead)
	}
	for i := range dst {
		b, err := src.ReadByte()
		if err != nil {
			return errors.Join(err, ErrTruncatedRead)
		}
		dst[i] = b
	}
	return nil
}

package internal

// MaskKey is the 4-byte XOR key that follows the length field of a masked frame.
type MaskKey [4]byte

func Mask(bytes []byte, key MaskKey) {
	MaskOffset(bytes, key, 0)
}

// MaskOffset masks bytes as if they started at position offset of the payload.
// Applying it twice with the same key and offset restores the input.
func MaskOffset(bytes []byte, key MaskKey, offset int) {
	for i, b := range bytes {
		pos := i + offset
		bytes[i] = b ^ key[pos%4]
	}
}

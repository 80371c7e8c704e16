package wsframe

// MaskBytes applies XOR masking to data in place per RFC 6455, section 5.3.
// pos is the offset into the 4-byte mask cycle to start at (0 for the first
// byte of a payload); it returns the cycle position advanced by len(data),
// which lets a caller mask a payload delivered across several calls.
func MaskBytes(key [4]byte, pos int, data []byte) int {
	for i := range data {
		data[i] ^= key[(pos+i)%4]
	}
	return (pos + len(data)) % 4
}

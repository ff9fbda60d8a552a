package common

// WipeByteArray overwrites b with zeros. Used for key material that should
// not linger in memory after it has been parsed or written out. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

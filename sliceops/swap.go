// Package sliceops holds byte slice helpers for converting between the
// little-endian wire order and the big-endian order of the crypto
// primitives.
package sliceops

// SwapBuf returns a reversed copy of in.
func SwapBuf(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[len(in)-1-i] = b
	}
	return out
}


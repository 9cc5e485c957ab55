package utils

import "hash/fnv"

// HashStrings hashes the parts in order. Each part is followed by a zero
// byte so ("ab","c") and ("a","bc") differ.
func HashStrings(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

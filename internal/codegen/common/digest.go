package common

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// DigestPrefix names the hash in rendered digests.
const DigestPrefix = "blake2b-256:"

// Digest hashes the generator inputs. Parts are length-prefixed so moving
// bytes between the grammar and the type table changes the result.
func Digest(parts ...[]byte) string {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(p)
	}
	return DigestPrefix + hex.EncodeToString(h.Sum(nil))
}

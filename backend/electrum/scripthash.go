package electrum

import (
	"crypto/sha256"
	"encoding/hex"
)

// scripthash computes the Electrum protocol's scripthash: SHA256(script)
// reversed to little-endian, hex encoded.
func scripthash(script []byte) string {
	h := sha256.Sum256(script)
	return hex.EncodeToString(reverse(h[:]))
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

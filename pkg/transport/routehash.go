package transport

import (
	"encoding/hex"

	"github.com/opencontainers/go-digest"
)

// routeDigest returns the first 4 raw bytes of the SHA-256 digest of name.
func routeDigest(name string) [4]byte {
	hexDigest := digest.FromString(name).Hex()

	var out [4]byte
	decoded, err := hex.DecodeString(hexDigest[:8])
	if err != nil {
		// digest.Hex() is always valid lowercase hex; this cannot happen.
		panic("transport: malformed digest hex: " + err.Error())
	}
	copy(out[:], decoded)
	return out
}

package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SHA256sum returns the hex-encoded SHA-256 digest of text.
func SHA256sum(text string) string {
	return SHA256sumBytes([]byte(text))
}

// SHA256sumBytes returns the hex-encoded SHA-256 digest of data. Drawing
// uploads are identified by this value when their digest is checked.
func SHA256sumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FastHash is a non-cryptographic hash used to derive store keys from client
// identifiers so that raw addresses never end up in a shared backend.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}

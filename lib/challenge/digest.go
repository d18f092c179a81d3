package challenge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/TecharoHQ/glimpse/internal"
)

// Digest authenticates an answer: the lowercase hex HMAC-SHA256, keyed with
// the challenge's secret key string, of "nonce|answer|clientTS".
func Digest(key, nonce, answer string, clientTS int64) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(nonce))
	mac.Write([]byte{'|'})
	mac.Write([]byte(answer))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(clientTS, 10)))

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyDigest recomputes the digest and compares it with got in constant
// time. The comparison is on the encoded text, so a digest that differs only
// in letter case does not verify.
func VerifyDigest(key, nonce, answer string, clientTS int64, got string) bool {
	want := Digest(key, nonce, answer, clientTS)
	return hmac.Equal([]byte(want), []byte(got))
}

// ImageAnswer is the answer string a drawing submission is authenticated
// with: the hex SHA-256 of the uploaded bytes.
func ImageAnswer(data []byte) string {
	return internal.SHA256sumBytes(data)
}

package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// UserKey derives a stable, non-reversible user identifier from a verified
// email address. The raw email still travels alongside it where needed.
func UserKey(email string) string {
	hash := sha256.Sum256([]byte(email))
	return "u_" + hex.EncodeToString(hash[:6])
}

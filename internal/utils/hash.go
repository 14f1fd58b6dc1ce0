package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CalculateHash returns hex HMAC-SHA256 of body keyed with key.
func CalculateHash(body []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHash compares a received signature with the expected one in constant time.
func VerifyHash(body []byte, key, signature string) bool {
	expected := CalculateHash(body, key)
	return hmac.Equal([]byte(expected), []byte(signature))
}

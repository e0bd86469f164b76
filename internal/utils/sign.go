package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadSignature is returned when a signed value was tampered with
var ErrBadSignature = errors.New("invalid signature")

// GenerateHMAC generates a URL-safe HMAC-SHA256 of data
func GenerateHMAC(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Sign encodes value and appends its HMAC so it can travel in a cookie
func Sign(value, secret string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(value))
	return payload + "." + GenerateHMAC(payload, secret)
}

// Verify checks a value produced by Sign and returns the original value
func Verify(signed, secret string) (string, error) {
	payload, mac, ok := strings.Cut(signed, ".")
	if !ok {
		return "", ErrBadSignature
	}
	if !hmac.Equal([]byte(mac), []byte(GenerateHMAC(payload, secret))) {
		return "", ErrBadSignature
	}
	value, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrBadSignature
	}
	return string(value), nil
}

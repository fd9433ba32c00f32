package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex returns the lowercase hex SHA-256 digest of input.
func Sha256Hex(input string) string {
	return hexDigest([]byte(input))
}

// ETag returns a strong entity tag for body.
func ETag(body []byte) string {
	return `"` + hexDigest(body) + `"`
}

// ETagMatches reports whether an If-None-Match header value covers etag.
// Weak validators compare equal to their strong counterpart.
func ETagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

func hexDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

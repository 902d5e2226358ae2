package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

const refreshSecretLen = 32

// NewRefreshSecret returns a random URL-safe refresh token and its storage hash.
func NewRefreshSecret() (plain, hash string, err error) {
	b, err := RandBytes(refreshSecretLen)
	if err != nil {
		return "", "", err
	}
	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, HashToken(plain), nil
}

// HashToken returns the sha256 digest of a token, base64url-encoded.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const (
	// ClientKeyPrefix marks keys safe to embed in browser and mobile clients.
	ClientKeyPrefix = "c_"
	// ServerKeyPrefix marks keys for trusted server-side SDKs.
	ServerKeyPrefix = "s_"

	sdkKeySecretBytes = 24
)

// HashSDKKey hashes a raw SDK key using the same strategy as key creation.
func HashSDKKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateSDKKey returns a new random SDK key and its stored hash.
func GenerateSDKKey(prefix string) (string, string, error) {
	secret := make([]byte, sdkKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	plain := prefix + base64.RawURLEncoding.EncodeToString(secret)
	return plain, HashSDKKey(plain), nil
}

package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainStore     = "treeup/store/v1"
	DomainStatement = "treeup/statement/v1"
)

// Digest computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonically marshals v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, data), nil
}

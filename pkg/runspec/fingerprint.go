package runspec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint hashes the compact JSON rendering of a document. Two
// documents that differ only in YAML key order, comments or formatting
// share a fingerprint.
func Fingerprint(d *Document) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint run config: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ShortFingerprint trims a fingerprint to the 12 leading hex characters
// shown in CLI output and run listings.
func ShortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

package blob

import (
	"crypto/sha256"
	"encoding/hex"
)

// Identity computes the content address of a fragment: the hex SHA-256
// over the fragment label concatenated with the content bytes. Stable
// across runs and platforms for identical inputs.
func Identity(label, content string) string {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

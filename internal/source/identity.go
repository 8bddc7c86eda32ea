package source

import (
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// FileIdentity derives a stable key from the absolute path of a file
func FileIdentity(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return digest("file:" + path)
}

// NamedIdentity derives a stable key for an in-memory or named source
func NamedIdentity(name string) string {
	return digest("name:" + name)
}

// StreamIdentity returns a fresh key for an anonymous live stream
func StreamIdentity() string {
	return "stream-" + uuid.NewString()
}

func digest(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Store manages chart artifact files addressed by a path relative to a
// single artifact root.
type Store interface {
	Write(ctx context.Context, relPath string, content []byte) error
	Read(ctx context.Context, relPath string) ([]byte, error)
	Exists(relPath string) bool
	Delete(ctx context.Context, relPath string) error
	URL(relPath string) string
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// Filename returns the deterministic artifact filename for a chart key and
// format extension. The name carries a hash of the raw key, so two distinct
// keys never share a file even when sanitization or truncation makes their
// readable prefixes coincide.
func Filename(chartKey, ext string) string {
	sum := sha256.Sum256([]byte(chartKey))
	safe := unsafeFilenameChars.ReplaceAllString(chartKey, "_")
	if len(safe) > 120 {
		safe = safe[:120]
	}
	return safe + "-" + hex.EncodeToString(sum[:5]) + "." + ext
}

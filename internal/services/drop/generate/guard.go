package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Guard enforces uniqueness within a run. Combination keys are checked before
// compositing so known duplicates never reach the renderer; image hashes
// catch different combinations that render identical pixels. Token names are
// claimed before their metadata is written.
type Guard struct {
	keys   map[string]struct{}
	hashes map[string]string
	tokens map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{
		keys:   make(map[string]struct{}),
		hashes: make(map[string]string),
		tokens: make(map[string]struct{}),
	}
}

// ClaimToken records name and reports false if it was already claimed.
func (g *Guard) ClaimToken(name string) bool {
	if _, ok := g.tokens[name]; ok {
		return false
	}
	g.tokens[name] = struct{}{}
	return true
}

// SeenKey reports whether key already produced an accepted asset.
func (g *Guard) SeenKey(key string) bool {
	_, ok := g.keys[key]
	return ok
}

// Duplicate returns the path of the accepted image sharing sum, if any.
func (g *Guard) Duplicate(sum string) (string, bool) {
	path, ok := g.hashes[sum]
	return path, ok
}

// Accept records an accepted asset. An empty key or sum is not recorded.
func (g *Guard) Accept(key, sum, path string) {
	if key != "" {
		g.keys[key] = struct{}{}
	}
	if sum != "" {
		g.hashes[sum] = path
	}
}

// Len is the number of distinct accepted images.
func (g *Guard) Len() int { return len(g.hashes) }

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package compose

import (
	"fmt"
	"image"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultCacheBytes bounds the decoded-image cache.
const DefaultCacheBytes = 512 << 20

// ImageCache keeps decoded layer images in memory. A drop reuses the same few
// dozen layer images across thousands of composites.
type ImageCache struct {
	cache *ristretto.Cache[string, image.Image]
}

// NewImageCache returns a cache bounded to maxBytes of decoded pixels.
func NewImageCache(maxBytes int64) (*ImageCache, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, image.Image]{
		NumCounters: 10000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &ImageCache{cache: cache}, nil
}

// Get returns the decoded image for path; ok reports a hit.
func (c *ImageCache) Get(path string) (image.Image, bool) {
	return c.cache.Get(path)
}

// Set stores img, costed by its decoded RGBA size.
func (c *ImageCache) Set(path string, img image.Image) {
	b := img.Bounds()
	cost := int64(b.Dx()) * int64(b.Dy()) * 4
	if cost <= 0 {
		cost = 1
	}
	c.cache.Set(path, img, cost)
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *ImageCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/raine/lease-to-own/internal/storage"
	"github.com/rs/zerolog/log"
)

// VisionCacheStore persists provider responses for image-bearing requests.
type VisionCacheStore interface {
	GetVisionCache(key string) (*storage.VisionCacheEntry, error)
	SetVisionCache(key string, entry *storage.VisionCacheEntry) error
}

// CachedProvider wraps a Provider with SQLite caching of vision requests.
// Text-only requests always go to the inner provider.
type CachedProvider struct {
	inner Provider
	store VisionCacheStore
}

// NewCachedProvider creates a cached provider.
func NewCachedProvider(inner Provider, store VisionCacheStore) *CachedProvider {
	return &CachedProvider{inner: inner, store: store}
}

// requestKey creates a SHA256 hash from the prompt and image data.
// Includes length prefix for each part to prevent boundary collisions.
func requestKey(req Request) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(req.Prompt)))
	h.Write([]byte(req.Prompt))
	for _, img := range req.Images {
		binary.Write(h, binary.LittleEndian, int64(len(img.Data)))
		h.Write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generate implements Provider with caching for image requests.
func (c *CachedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Images) == 0 || c.store == nil {
		return c.inner.Generate(ctx, req)
	}

	key := requestKey(req)

	cached, err := c.store.GetVisionCache(key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check vision cache")
	} else if cached != nil {
		log.Debug().Str("hash", key[:16]).Msg("vision cache hit")
		// Zero usage for cached result
		return &Response{Text: cached.Text, Model: cached.Model}, nil
	}

	resp, err := c.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := &storage.VisionCacheEntry{Text: resp.Text, Model: resp.Model}
	if err := c.store.SetVisionCache(key, entry); err != nil {
		log.Warn().Err(err).Msg("failed to cache vision result")
	} else {
		log.Debug().Str("hash", key[:16]).Msg("cached vision result")
	}

	return resp, nil
}

// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Embedder converts text to a vector of Dimension() floats.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	EmbeddingCacheHit()
	EmbeddingCacheMiss()
}

// Cached memoizes an Embedder by the md5 of the input text.
// Empty input returns a zero vector without calling the provider.
type Cached struct {
	next     Embedder
	cache    *lru.Cache[string, []float32]
	observer CacheObserver
	logger   *zap.Logger
}

// NewCached wraps next with an LRU cache of size entries.
func NewCached(next Embedder, size int, observer CacheObserver, logger *zap.Logger) (*Cached, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, observer: observer, logger: logger.Named("embedding")}, nil
}

func (c *Cached) Dimension() int { return c.next.Dimension() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.Dimension()), nil
	}

	key := hashText(text)
	if v, ok := c.cache.Get(key); ok {
		if c.observer != nil {
			c.observer.EmbeddingCacheHit()
		}
		return v, nil
	}
	if c.observer != nil {
		c.observer.EmbeddingCacheMiss()
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != c.Dimension() {
		c.logger.Warn("embedding dimension mismatch",
			zap.Int("expected", c.Dimension()),
			zap.Int("got", len(v)),
		)
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge drops every cached vector.
func (c *Cached) Purge() { c.cache.Purge() }

// EmbedOrZero never fails: provider errors degrade to a zero vector.
func EmbedOrZero(ctx context.Context, e Embedder, text string, logger *zap.Logger) []float32 {
	v, err := e.Embed(ctx, text)
	if err != nil {
		if logger != nil {
			logger.Warn("embedding failed, using zero vector", zap.Error(err))
		}
		return make([]float32, e.Dimension())
	}
	return v
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

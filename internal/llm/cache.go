package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// Cache stores identifications by input hash.
type Cache interface {
	GetLLMCache(inputHash string) (*storage.LLMCacheEntry, error)
	SetLLMCache(inputHash string, entry *storage.LLMCacheEntry) error
}

// CachedGenerator wraps a QueryGenerator with SQLite caching.
type CachedGenerator struct {
	inner QueryGenerator
	store Cache
}

// NewCachedGenerator creates a cached generator.
func NewCachedGenerator(inner QueryGenerator, store Cache) *CachedGenerator {
	return &CachedGenerator{inner: inner, store: store}
}

func hashInput(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// GenerateSearchQuery implements QueryGenerator with caching.
func (c *CachedGenerator) GenerateSearchQuery(ctx context.Context, it item.Item) (*Result, error) {
	input := BuildInput(it)
	if strings.TrimSpace(input) == "" {
		return nil, ErrNoInput
	}
	hash := hashInput(input)

	if c.store != nil {
		cached, err := c.store.GetLLMCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check llm cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("llm cache hit")
			metrics.LLMRequests.WithLabelValues("cache_hit").Inc()
			return &Result{
				ProductType:  cached.ProductType,
				Brand:        cached.Brand,
				Model:        cached.Model,
				Attributes:   cached.Attributes,
				GoogleQuery:  cached.GoogleQuery,
				AmazonQuery:  cached.AmazonQuery,
				Insufficient: cached.Insufficient,
			}, nil
		}
	}

	result, err := c.inner.GenerateSearchQuery(ctx, it)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		entry := &storage.LLMCacheEntry{
			ProductType:  result.ProductType,
			Brand:        result.Brand,
			Model:        result.Model,
			Attributes:   result.Attributes,
			GoogleQuery:  result.GoogleQuery,
			AmazonQuery:  result.AmazonQuery,
			Insufficient: result.Insufficient,
		}
		if err := c.store.SetLLMCache(hash, entry); err != nil {
			log.Warn().Err(err).Msg("failed to cache llm result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached llm result")
		}
	}

	return result, nil
}

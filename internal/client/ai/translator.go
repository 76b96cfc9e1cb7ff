package ai

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"groupcart/pkg/log"
)

// Translator turns Hindi text into English
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// HTTPTranslator translation collaborator client
type HTTPTranslator struct {
	*client
	url string
}

// NewHTTPTranslator creates a translator client posting to url
func NewHTTPTranslator(url string, opts Options) *HTTPTranslator {
	return &HTTPTranslator{client: newClient(opts), url: url}
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

// Translate returns the English rendering of text
func (t *HTTPTranslator) Translate(ctx context.Context, text string) (string, error) {
	var resp translateResponse
	if err := t.post(ctx, ServiceTranslator, t.url, translateRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Translation, nil
}

// CachedTranslator memoises translations in a local bigcache
type CachedTranslator struct {
	next  Translator
	cache *bigcache.BigCache
}

// NewCachedTranslator wraps next with a cache holding entries for ttl
func NewCachedTranslator(next Translator, ttl time.Duration, maxMB int) (*CachedTranslator, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation cache: %w", err)
	}
	return &CachedTranslator{next: next, cache: cache}, nil
}

// Translate serves from cache, filling it on a miss. Empty translations are
// not cached.
func (c *CachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	key := cacheKey(text)
	if hit, err := c.cache.Get(key); err == nil {
		return string(hit), nil
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.WithError(err).Warn("Translation cache read failed")
	}

	translation, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if translation != "" {
		if err := c.cache.Set(key, []byte(translation)); err != nil {
			log.WithError(err).Warn("Translation cache write failed")
		}
	}
	return translation, nil
}

// Len number of cached translations
func (c *CachedTranslator) Len() int {
	return c.cache.Len()
}

// Close releases the cache
func (c *CachedTranslator) Close() error {
	return c.cache.Close()
}

func cacheKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

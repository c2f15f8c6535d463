// Package gateway decides between serving a cached image and generating a
// new one on a miss.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"svgcache-api/internal/generator"
	"svgcache-api/internal/imagecache"
	"svgcache-api/internal/metrics"
	"svgcache-api/internal/tracing"
)

const svgPrefix = "<svg"

// ErrNotFound is returned by Resolve and Lookup when no entry exists.
var ErrNotFound = imagecache.ErrNotFound

// CachedImage is a stored entry. Body never changes once written.
type CachedImage struct {
	Key  string
	Body []byte
}

type Gateway struct {
	store  imagecache.Store
	gen    generator.Generator
	secret string

	sfGroup singleflight.Group // one generation per key in flight
}

// New returns a Gateway. An empty secret leaves generation open.
func New(store imagecache.Store, gen generator.Generator, secret string) *Gateway {
	return &Gateway{
		store:  store,
		gen:    gen,
		secret: secret,
	}
}

// RequiresKey reports whether generation is gated by a secret.
func (g *Gateway) RequiresKey() bool {
	return g.secret != ""
}

// Resolve derives the key for raw and returns the cached entry if present.
// It never checks the secret and never generates.
func (g *Gateway) Resolve(ctx context.Context, raw string) (*CachedImage, error) {
	key, err := deriveKey(raw)
	if err != nil {
		return nil, err
	}
	return g.Lookup(ctx, key)
}

// Lookup fetches an entry by an already derived key. Strings that could not
// be keys are reported as not found without touching the store.
func (g *Gateway) Lookup(ctx context.Context, key string) (*CachedImage, error) {
	if !imagecache.ValidKey(key) {
		return nil, ErrNotFound
	}
	body, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &CachedImage{Key: key, Body: body}, nil
}

// Ensure makes sure an entry exists for raw and returns its public location.
// On a miss the supplied secret is checked, then the generator runs once per
// key no matter how many callers miss concurrently.
func (g *Gateway) Ensure(ctx context.Context, raw, supplied string) (loc string, err error) {
	ctx, span := tracing.Start(ctx, "gateway.ensure")
	defer func() { tracing.End(span, err) }()

	key, err := deriveKey(raw)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("svg.key", key))

	ok, err := g.store.Has(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", key, err)
	}
	span.SetAttributes(attribute.Bool("svg.cache_hit", ok))
	if ok {
		slog.Debug("Cache hit", "key", key)
		return imagecache.Location(key), nil
	}

	if !g.authorized(supplied) {
		return "", &Error{Kind: KindUnauthorized}
	}

	// Callers that join a flight must not lose the result when the
	// originating request goes away.
	flightCtx := context.WithoutCancel(ctx)
	_, err, shared := g.sfGroup.Do(key, func() (any, error) {
		return nil, g.generate(flightCtx, key)
	})
	if shared {
		metrics.SharedGenerations.Inc()
		span.SetAttributes(attribute.Bool("svg.shared_generation", true))
	}
	if err != nil {
		return "", err
	}
	return imagecache.Location(key), nil
}

func (g *Gateway) authorized(supplied string) bool {
	if g.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(g.secret)) == 1
}

func (g *Gateway) generate(ctx context.Context, key string) error {
	// A flight for this key may have finished between our miss and now.
	if ok, err := g.store.Has(ctx, key); err == nil && ok {
		return nil
	}

	slog.Info("Cache miss, generating", "key", key)
	content, err := g.gen.Generate(ctx, key, generator.Options{})
	if err != nil {
		if errors.Is(err, generator.ErrNoToolCall) || errors.Is(err, generator.ErrDecode) {
			metrics.GenerationsTotal.WithLabelValues("invalid_content").Inc()
			return &Error{Kind: KindInvalidContent, Err: err}
		}
		metrics.GenerationsTotal.WithLabelValues("upstream_error").Inc()
		return &Error{Kind: KindUpstream, Err: err}
	}

	if !strings.HasPrefix(content, svgPrefix) {
		metrics.GenerationsTotal.WithLabelValues("invalid_content").Inc()
		slog.Warn("Generated content rejected", "key", key, "bytes", len(content))
		return &Error{Kind: KindInvalidContent, Content: &content}
	}

	if err := g.store.Put(ctx, key, []byte(content)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	metrics.GenerationsTotal.WithLabelValues("ok").Inc()
	slog.Info("Cached generated image", "key", key, "bytes", len(content))
	return nil
}

func deriveKey(raw string) (string, error) {
	key, err := imagecache.Key(raw)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, imagecache.ErrKeyTooShort):
		return "", &Error{Kind: KindKeyTooShort, Err: err}
	case errors.Is(err, imagecache.ErrKeyTooLong):
		return "", &Error{Kind: KindKeyTooLong, Err: err}
	default:
		return "", &Error{Kind: KindInvalidInput, Err: err}
	}
}

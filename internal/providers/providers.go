package providers

import (
	"context"
	"strings"
	"time"
)

// Locator resolves a location code (US ZIP) to a localized,
// human-readable list of nearby PrEP care providers.
type Locator interface {
	Lookup(ctx context.Context, locationCode, language string) (string, error)
}

// Config selects the locator backend and its cache.
type Config struct {
	Mode      string // auto | http | mock
	LookupURL string
	CacheMode string // auto | redis | memory
	CacheTTL  time.Duration
	RedisAddr string
}

// New builds the locator selected by cfg.Mode and wraps it in a
// result cache. Mode auto picks http when a lookup URL is configured.
func New(cfg Config) (Locator, error) {
	var base Locator
	switch cfg.Mode {
	case "http":
		loc, err := NewHTTPLocator(cfg.LookupURL)
		if err != nil {
			return nil, err
		}
		base = loc
	case "mock":
		base = NewMockLocator()
	case "", "auto":
		if strings.TrimSpace(cfg.LookupURL) != "" {
			loc, err := NewHTTPLocator(cfg.LookupURL)
			if err != nil {
				return nil, err
			}
			base = loc
		} else {
			base = NewMockLocator()
		}
	default:
		return nil, errUnknownMode(cfg.Mode)
	}

	cache, err := newCache(cfg)
	if err != nil {
		return nil, err
	}
	return NewCached(base, cache), nil
}

type errUnknownMode string

func (e errUnknownMode) Error() string {
	return "providers: unknown locator mode " + string(e)
}

package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Oracle answers free-text questions. The orchestration core treats it as
// an opaque request/response collaborator with no visible side effects.
type Oracle interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Config controls oracle construction.
type Config struct {
	Mode    string
	HTTPURL string
}

// New builds an Oracle from the configured mode. "auto" prefers the HTTP
// backend when a URL is configured and falls back to the mock.
func New(cfg Config) (Oracle, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPOracle(cfg.HTTPURL), nil
		}
		return NewMockOracle(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("oracle HTTP url is required for http mode")
		}
		return NewHTTPOracle(cfg.HTTPURL), nil
	case "mock":
		return NewMockOracle(), nil
	default:
		return nil, fmt.Errorf("unsupported oracle mode %q", cfg.Mode)
	}
}

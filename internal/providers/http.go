package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/chia/internal/reliability"
)

// HTTPLocator queries an external provider directory over HTTP.
type HTTPLocator struct {
	url    string
	client *http.Client
}

func NewHTTPLocator(url string) (*HTTPLocator, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("providers: http locator requires a lookup URL")
	}
	return &HTTPLocator{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type lookupRequest struct {
	LocationCode string `json:"location_code"`
	Language     string `json:"language"`
}

type lookupResponse struct {
	Providers string `json:"providers"`
}

func (l *HTTPLocator) Lookup(ctx context.Context, locationCode, language string) (string, error) {
	result, err := l.lookup(ctx, locationCode, language)
	if err == nil {
		return result, nil
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) && reliability.IsRetryableHTTPStatus(statusErr.code) {
		select {
		case <-time.After(reliability.ExponentialBackoff(1, 200*time.Millisecond, time.Second)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return l.lookup(ctx, locationCode, language)
	}
	return "", err
}

func (l *HTTPLocator) lookup(ctx context.Context, locationCode, language string) (string, error) {
	body, err := json.Marshal(lookupRequest{LocationCode: locationCode, Language: language})
	if err != nil {
		return "", fmt.Errorf("encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider lookup: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read lookup response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	var parsed lookupResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Providers == "" {
		// Directories that return plain text are accepted as-is.
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return "", errors.New("providers: empty lookup response")
		}
		return text, nil
	}
	return parsed.Providers, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider lookup failed with status %d", e.code)
}

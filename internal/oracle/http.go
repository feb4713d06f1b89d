package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/chia/internal/reliability"
)

// HTTPOracle forwards questions to an answer-generation HTTP endpoint.
type HTTPOracle struct {
	url    string
	client *http.Client
}

func NewHTTPOracle(url string) *HTTPOracle {
	return &HTTPOracle{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (o *HTTPOracle) Ask(ctx context.Context, question string) (string, error) {
	// One retry on a retryable status; anything more risks duplicate
	// side effects upstream.
	answer, status, err := o.ask(ctx, question)
	if err != nil && status != 0 && reliability.IsRetryableHTTPStatus(status) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(reliability.ExponentialBackoff(1, 200*time.Millisecond, time.Second)):
		}
		answer, _, err = o.ask(ctx, question)
	}
	return answer, err
}

func (o *HTTPOracle) ask(ctx context.Context, question string) (string, int, error) {
	payload, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", res.StatusCode, fmt.Errorf("oracle http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	var obj askResponse
	if err := json.Unmarshal(body, &obj); err != nil {
		// Plain text bodies are accepted as answers.
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", 0, fmt.Errorf("empty oracle response")
		}
		return text, 0, nil
	}
	return strings.TrimSpace(obj.Answer), 0, nil
}

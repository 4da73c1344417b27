// Package sentiment classifies free-text feedback into a tone by calling an
// external model API. The service is treated as a capability that can be
// unavailable; callers decide what an unavailable classifier means for them.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"evalo-backend/internal/models"

	"github.com/tidwall/gjson"
)

// ErrUnavailable is returned when the classification service is unreachable,
// answers with a non-2xx status, or returns a body we cannot interpret.
var ErrUnavailable = errors.New("sentiment service unavailable")

// Classifier assigns a tone to a piece of feedback text.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Tone, error)
}

// HTTPClassifier calls the external sentiment API over HTTP.
type HTTPClassifier struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewHTTPClassifier(apiURL, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text     string `json:"text"`
	Detailed bool   `json:"detailed,omitempty"`
}

// Classify sends the text to the model API and returns the tone label from
// its response.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (models.Tone, error) {
	body, err := c.post(ctx, classifyRequest{Text: text})
	if err != nil {
		return "", err
	}

	tone := models.Tone(gjson.GetBytes(body, "tone").String())
	if !tone.Valid() {
		return "", fmt.Errorf("%w: unrecognized tone in response", ErrUnavailable)
	}
	return tone, nil
}

// ClassifyRaw returns the model API's response verbatim. Used by the
// dashboard's sentiment proxy endpoint, which passes scores and detail
// through to the client untouched.
func (c *HTTPClassifier) ClassifyRaw(ctx context.Context, text string, detailed bool) ([]byte, error) {
	return c.post(ctx, classifyRequest{Text: text, Detailed: detailed})
}

func (c *HTTPClassifier) post(ctx context.Context, payload classifyRequest) ([]byte, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("%w: no API URL configured", ErrUnavailable)
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return body, nil
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each pipeline call.
	DefaultTimeout = 30 * time.Second

	// DefaultTopK and DefaultMinSimilarity are the answer-call retrieval
	// defaults when the caller passes zero values.
	DefaultTopK          = 8
	DefaultMinSimilarity = 0.3
)

// Client is a strict-contract HTTP client for the internal retrieval
// pipeline service. It performs no retries; retry policy belongs to the
// caller's transport. Every response is shape-validated before use; the
// service is internal but its output becomes public-facing factual claims.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a pipeline client. timeout <= 0 uses DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type embedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// EmbedQuery embeds free text through POST /v1/chat/embed-query. An empty or
// non-numeric vector in the response is a hard error.
func (c *Client) EmbedQuery(ctx context.Context, text, model string) (*EmbedResult, error) {
	var result EmbedResult
	if err := c.post(ctx, "/v1/chat/embed-query", embedRequest{Text: text, Model: model}, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("pipeline embed-query returned an empty embedding")
	}
	for i, v := range result.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("pipeline embed-query returned non-finite value at index %d", i)
		}
	}
	if result.Dimensions == 0 {
		result.Dimensions = len(result.Embedding)
	}
	return &result, nil
}

// ChatAnswer generates an answer through POST /v1/chat/answer. A 2xx response
// with an empty answer string is a hard error, never coerced into a blank
// answer.
func (c *Client) ChatAnswer(ctx context.Context, req AnswerRequest) (*ChatAnswer, error) {
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.MinSimilarity <= 0 {
		req.MinSimilarity = DefaultMinSimilarity
	}

	var result ChatAnswer
	if err := c.post(ctx, "/v1/chat/answer", req, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.Answer) == "" {
		return nil, fmt.Errorf("pipeline answer response has an empty answer")
	}
	return &result, nil
}

// errorBody is the pipeline's error envelope on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pipeline request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pipeline request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := upstreamDetail(resp.Body)
		if detail == "" {
			return fmt.Errorf("pipeline %s returned status %d", path, resp.StatusCode)
		}
		return fmt.Errorf("pipeline %s returned status %d: %s", path, resp.StatusCode, detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pipeline %s response: %w", path, err)
	}
	return nil
}

func upstreamDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(raw))
}

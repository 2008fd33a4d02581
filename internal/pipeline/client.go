package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/util"
)

const dispatchTimeout = 10 * time.Second

// SignatureHeader carries the HMAC of the request body, so the pipeline can
// authenticate us the same way we authenticate its callbacks.
const SignatureHeader = "X-Pipeline-Signature"

// Client forwards content requests to the external automation pipeline over
// HTTP. The pipeline answers asynchronously via the callback endpoint.
type Client struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		client: &http.Client{
			Timeout: dispatchTimeout,
		},
	}
}

func (c *Client) Dispatch(ctx context.Context, req model.DispatchRequest) error {
	if c.baseURL == "" {
		return fmt.Errorf("pipeline URL not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set(SignatureHeader, util.HmacSHA256(c.secret, string(body)))
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("correlationId", req.CorrelationID).
			Dur("elapsed", elapsed).
			Msg("pipeline dispatch error")
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("correlationId", req.CorrelationID).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("pipeline dispatch rejected")
		return fmt.Errorf("dispatch failed with status %d", resp.StatusCode)
	}

	log.Debug().
		Str("correlationId", req.CorrelationID).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("pipeline dispatch accepted")

	return nil
}

type computeRequest struct {
	Kind model.ContentKind `json:"kind"`
	Tag  string            `json:"tag,omitempty"`
}

type computeResponse struct {
	Content string `json:"content"`
}

// Compute asks the pipeline's synchronous endpoint for content. Used by the
// REST content surface; the chat path goes through Dispatch and a callback.
func (c *Client) Compute(ctx context.Context, kind model.ContentKind, tag string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("pipeline URL not configured")
	}

	body, err := json.Marshal(computeRequest{Kind: kind, Tag: tag})
	if err != nil {
		return "", fmt.Errorf("marshal compute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set(SignatureHeader, util.HmacSHA256(c.secret, string(body)))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("compute request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("compute failed with status %d", resp.StatusCode)
	}

	var out computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode compute response: %w", err)
	}
	return out.Content, nil
}

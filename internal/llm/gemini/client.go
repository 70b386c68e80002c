package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/llm"
)

// GenerateContent implements llm.Extractor against the multimodal
// generateContent endpoint. It performs exactly one outbound call per request:
// no retry, no backoff, no rate limiting. The raw response body is returned
// verbatim for the decoder.
func (c *Client) GenerateContent(ctx context.Context, prompt string, payload llm.ImagePayload) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]any{
					{"text": prompt},
					{"inline_data": map[string]any{
						"mime_type": payload.MIMEType,
						"data":      payload.Data,
					}},
				},
			},
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, c.cfg.Model, url.QueryEscape(c.cfg.APIKey))

	c.log.Info("llm.generate.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"image_b64_len", len(payload.Data),
		"mime_type", payload.MIMEType,
	)

	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.generate.transport_error",
			"req_id", rid, "error", err, "status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return raw, common.NewAppError(common.CodeTransportError, "multimodal generation call failed", err)
	}

	c.log.Info("llm.generate.response",
		"req_id", rid,
		"status", status,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Warn("llm.generate.body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, truncate(string(raw), 2<<10))
	}
	return raw, resp.StatusCode, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

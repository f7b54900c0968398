// Package llm wraps the Gemini API behind a small text-generation interface.
// The model backend is treated as an untrusted, fallible collaborator: every
// call is timeout-bound and retried a bounded number of times before being
// reported as unavailable.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

// Part is an optional binary attachment (audio clip, receipt photo) sent
// alongside the prompt.
type Part struct {
	MIMEType string
	Data     []byte
}

// TextGenerator produces a text completion for a prompt. Implementations
// return core.ErrModelUnavailable when the backend cannot be reached within
// the configured bounds.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, parts ...Part) (string, error)
}

type Client struct {
	client     *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	log        *log.Logger
}

// NewClient creates a Gemini-backed generator. The API key is read from the
// environment by the genai SDK (GEMINI_API_KEY / GOOGLE_API_KEY).
func NewClient(ctx context.Context, model string, timeout time.Duration, maxRetries int, logger *log.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:     gc,
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        logger.WithComponent(log.ComponentLLM),
	}, nil
}

// GenerateText sends the prompt (plus any inline parts) to the model and
// returns the completion text. Transport failures and per-call timeouts are
// retried with exponential backoff up to the configured attempt bound, then
// surfaced as core.ErrModelUnavailable. Requests the API rejects outright
// (bad payload, unsupported media type) are not retried and come back as the
// API error itself, so adapters can map them to their own domain errors.
func (c *Client) GenerateText(ctx context.Context, prompt string, parts ...Part) (string, error) {
	genParts := []*genai.Part{{Text: prompt}}
	for _, p := range parts {
		genParts = append(genParts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: genParts}}

	var text string
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, nil)
		if err != nil {
			c.log.WarnContext(ctx, "model call failed",
				log.FieldModel, c.model,
				log.FieldAttempt, attempt,
				log.FieldError, err)
			if isRejection(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = resp.Text()
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		if isRejection(err) {
			return "", fmt.Errorf("model rejected request: %w", err)
		}
		return "", fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty model response", core.ErrMalformedModelOutput)
	}
	return text, nil
}

// isRejection reports whether the API refused the request itself, as opposed
// to failing transiently. Timeouts (408) and rate limits (429) stay
// retryable; other 4xx codes will fail identically on every attempt.
func isRejection(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusTooManyRequests {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500
}

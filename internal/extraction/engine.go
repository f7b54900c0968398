// Package extraction turns free-form expense descriptions into structured
// drafts by prompting a language model and validating whatever comes back.
package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

// Engine is the extraction engine. It is stateless and safe for concurrent
// use; the only side effect of Extract is the model call itself.
type Engine struct {
	gen          llm.TextGenerator
	homeCurrency string
	maxRetries   int
	log          *log.Logger
}

func NewEngine(gen llm.TextGenerator, homeCurrency string, maxRetries int, logger *log.Logger) *Engine {
	return &Engine{
		gen:          gen,
		homeCurrency: homeCurrency,
		maxRetries:   maxRetries,
		log:          logger.WithComponent(log.ComponentExtraction),
	}
}

// Extract normalizes text into an expense draft. refDate is the "today"
// against which relative date phrases are resolved and the default date.
//
// Malformed or amount-less model responses are retried with a restated
// instruction up to the configured bound; the last typed error wins.
// core.ErrModelUnavailable propagates immediately since the llm client has
// already exhausted its own transport retries.
func (e *Engine) Extract(ctx context.Context, text string, refDate time.Time) (core.Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Draft{}, core.ErrEmptyText
	}

	ref := core.DateOf(refDate)
	prompt := extractionPrompt(text, ref)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		p := prompt
		if attempt > 0 {
			p = prompt + reprompt
		}

		raw, err := e.gen.GenerateText(ctx, p)
		if err != nil {
			if errors.Is(err, core.ErrMalformedModelOutput) {
				lastErr = err
				continue
			}
			return core.Draft{}, err
		}

		draft, err := parseModelOutput(raw, ref, e.homeCurrency)
		if err != nil {
			e.log.WarnContext(ctx, "unusable model response",
				log.FieldAttempt, attempt+1,
				log.FieldError, err)
			lastErr = err
			continue
		}

		draft.RawText = text
		if err := draft.Validate(); err != nil {
			lastErr = err
			continue
		}

		e.log.DebugContext(ctx, "expense extracted",
			log.FieldCategory, draft.Category,
			log.FieldCurrency, draft.Currency,
			log.FieldAmountCents, draft.Amount.Cents)
		return draft, nil
	}

	if lastErr == nil {
		lastErr = core.ErrMalformedModelOutput
	}
	return core.Draft{}, lastErr
}

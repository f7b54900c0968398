// Package ocr adapts receipt and screenshot images into plain text via the
// vision capability of the model backend. The adapter is optional: surfaces
// hold a possibly-nil *Reader and report core.ErrOCRUnavailable when it is
// absent, so text-only input keeps working.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

const readPrompt = "Read all visible text from the attached image of a receipt or purchase screenshot. " +
	"Return ONLY the extracted text lines as plain text, preserving amounts and dates exactly as printed. " +
	"No commentary, no formatting."

type Reader struct {
	gen llm.TextGenerator
	log *log.Logger
}

func NewReader(gen llm.TextGenerator, logger *log.Logger) *Reader {
	return &Reader{
		gen: gen,
		log: logger.WithComponent(log.ComponentOCR),
	}
}

// Text extracts printed text from an image. A nil receiver means the feature
// is not configured and returns core.ErrOCRUnavailable rather than a failure.
func (r *Reader) Text(ctx context.Context, image []byte, mimeType string) (string, error) {
	if r == nil {
		return "", core.ErrOCRUnavailable
	}
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", core.ErrEmptyText)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	text, err := r.gen.GenerateText(ctx, readPrompt, llm.Part{MIMEType: mimeType, Data: image})
	if err != nil {
		if errors.Is(err, core.ErrModelUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("read image text: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text found in image", core.ErrMalformedModelOutput)
	}

	r.log.DebugContext(ctx, "image text extracted", "text_len", len(text))
	return text, nil
}

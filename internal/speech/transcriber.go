// Package speech adapts audio clips into plain text for the extraction
// engine. The current implementation delegates transcription to the same
// multimodal model backend used for extraction.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

const transcribePrompt = "Transcribe the attached audio recording of a spoken expense note. " +
	"Return ONLY the spoken words as plain text, with no commentary, labels, or quotation marks."

type Transcriber struct {
	gen llm.TextGenerator
	log *log.Logger
}

func NewTranscriber(gen llm.TextGenerator, logger *log.Logger) *Transcriber {
	return &Transcriber{
		gen: gen,
		log: logger.WithComponent(log.ComponentSpeech),
	}
}

// Transcribe converts audio bytes to plain text. Unsupported formats, empty
// audio, and empty transcripts all surface as core.ErrTranscriptionFailed;
// core.ErrModelUnavailable passes through untouched so callers can
// distinguish a transient backend outage from a bad recording.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", core.ErrTranscriptionFailed)
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	text, err := t.gen.GenerateText(ctx, transcribePrompt, llm.Part{MIMEType: mimeType, Data: audio})
	if err != nil {
		if errors.Is(err, core.ErrModelUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", core.ErrTranscriptionFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", core.ErrTranscriptionFailed)
	}

	t.log.DebugContext(ctx, "audio transcribed", "transcript_len", len(text))
	return text, nil
}

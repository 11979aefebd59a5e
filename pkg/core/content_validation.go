package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxNeuronContentBytes bounds a neuron's raw text payload
// before ingest; larger payloads are the caller's to pre-split.
const DefaultMaxNeuronContentBytes = 64 * 1024

// validateContent checks a neuron's raw text before it enters the
// ingest pipeline: non-empty after trimming, valid UTF-8 (the chunker
// splits on rune boundaries), and within the engine's configured byte
// limit. The limit is per-Engine (Config.MaxNeuronContentBytes); there
// is no process-wide knob.
func validateContent(text string, maxBytes int64) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidContent
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidContent)
	}
	if int64(len(text)) > maxBytes {
		return fmt.Errorf("%w: %d bytes over the %d limit", ErrContentTooLarge, len(text), maxBytes)
	}
	return nil
}

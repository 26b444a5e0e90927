// Package voice wraps the external speech vendors behind narrow interfaces.
// Nothing in here makes call-flow decisions; TTS/STT are thin integrations.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrSynthesis        = errors.New("voice: synthesis failed")
	ErrRecognition      = errors.New("voice: recognition failed")
	ErrBadAudioEncoding = errors.New("voice: invalid base64 audio data")
)

// Synthesizer converts text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// TranscribeEncoded decodes base64 audio and transcribes it. Webhook payloads
// carry audio base64-encoded; a decode failure is reported distinctly from a
// vendor recognition failure.
func TranscribeEncoded(ctx context.Context, t Transcriber, encoded string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadAudioEncoding, err)
	}
	return t.Transcribe(ctx, audio)
}

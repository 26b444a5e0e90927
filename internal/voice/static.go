package voice

import "context"

// StaticSynthesizer returns fixed bytes. Used in simulation mode and tests.
type StaticSynthesizer struct {
	Audio []byte
	Err   error
}

func (s StaticSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Audio != nil {
		return s.Audio, nil
	}
	return []byte("simulated-audio:" + text), nil
}

// StaticTranscriber returns a fixed transcript. Used in simulation mode and tests.
type StaticTranscriber struct {
	Text string
	Err  error
}

func (t StaticTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}

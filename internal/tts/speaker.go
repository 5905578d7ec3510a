package tts

import (
	"context"
	"sync"
)

// Synthesizer streams 48 kHz 16-bit little-endian mono PCM for a text.
type Synthesizer interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// PCMSink consumes raw PCM for playback. Reset drops whatever is queued so
// a new utterance can start immediately.
type PCMSink interface {
	WritePCM(data []byte) error
	Reset() error
}

// Speaker turns text into audible speech through a Synthesizer and a
// PCMSink. Only one utterance is ever audible: Speak cancels whatever was
// playing before starting the new text.
type Speaker struct {
	synth Synthesizer
	sink  PCMSink

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSpeaker(synth Synthesizer, sink PCMSink) *Speaker {
	return &Speaker{synth: synth, sink: sink}
}

// Speak synthesizes and plays text, blocking until playback finishes, the
// context is done, or a newer Speak supersedes it. A superseded or canceled
// utterance is not an error.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	_ = s.sink.Reset()

	pcmCh, errCh := s.synth.StreamPCM48k(ctx, text)
	for {
		select {
		case <-ctx.Done():
			_ = s.sink.Reset()
			return nil
		case chunk, ok := <-pcmCh:
			if !ok {
				// stream finished; surface a synth error if one is pending
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			if err := s.sink.WritePCM(chunk); err != nil {
				return err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}

// Cancel stops the current utterance, if any, and flushes queued audio.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	_ = s.sink.Reset()
}

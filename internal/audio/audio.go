// Package audio owns the PortAudio devices: microphone capture feeding the
// transcriber and speaker playback for synthesized speech.
package audio

import (
	"context"
	"encoding/binary"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	captureSampleRate  = 16000
	playbackSampleRate = 48000
	channels           = 1
	framesPerBuffer    = 1024
)

// Init must be called once before any capture or playback.
func Init() error {
	log.Println("initializing PortAudio")
	return portaudio.Initialize()
}

// Shutdown releases PortAudio. Call after all streams are closed.
func Shutdown() {
	if err := portaudio.Terminate(); err != nil {
		log.Printf("error terminating PortAudio: %v", err)
	}
}

// StartMicCapture reads from the default microphone and hands 16 kHz mono
// s16le PCM frames to send until ctx is done. send is called on the capture
// goroutine; it must not block for long.
func StartMicCapture(ctx context.Context, send func(pcm []byte) error) error {
	buffer := make([]int16, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(channels, 0, captureSampleRate, len(buffer), &buffer)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return err
	}
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := stream.Read(); err != nil {
			log.Printf("mic read error: %v", err)
			return err
		}
		if err := send(int16SliceToBytes(buffer)); err != nil {
			log.Printf("mic frame dropped: %v", err)
		}
	}
}

// Player plays 48 kHz mono s16le PCM on the default output device. It
// implements the speaker's sink. Reset aborts whatever is still buffered in
// the device so a new utterance starts without leftover audio.
type Player struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
}

func NewPlayer() *Player {
	return &Player{buffer: make([]int16, framesPerBuffer)}
}

func (p *Player) WritePCM(data []byte) error {
	samples := bytesToInt16Slice(data)
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		stream, err := portaudio.OpenDefaultStream(0, channels, playbackSampleRate, len(p.buffer), &p.buffer)
		if err != nil {
			return err
		}
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			return err
		}
		p.stream = stream
	}

	offset := 0
	for offset < len(samples) {
		n := copy(p.buffer, samples[offset:])
		offset += n
		// pad the final partial frame with silence
		for i := n; i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		if err := p.stream.Write(); err != nil {
			// underflow between chunks is expected on a live stream
			if err == portaudio.OutputUnderflowed {
				continue
			}
			return err
		}
	}
	return nil
}

// Reset aborts playback and drops the open stream. The next WritePCM opens
// a fresh one.
func (p *Player) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	err := p.stream.Abort()
	_ = p.stream.Close()
	p.stream = nil
	return err
}

// Close stops playback for good.
func (p *Player) Close() error {
	return p.Reset()
}

func int16SliceToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func bytesToInt16Slice(data []byte) []int16 {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

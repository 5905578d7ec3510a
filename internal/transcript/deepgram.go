package transcript

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// SILENCE_THRESHOLD is the base inactivity window required before we consider an utterance complete.
// Keep conservative to avoid cutting user mid-sentence.
const SILENCE_THRESHOLD = 700 * time.Millisecond

// CONTINUATION_EXTENSION extends the threshold when the last word implies
// the speaker will continue (e.g. "and", "or", "to").
const CONTINUATION_EXTENSION = 1200 * time.Millisecond

// STABILIZATION_GRACE absorbs late ASR updates after the silence threshold
// is crossed, before finalizing.
const STABILIZATION_GRACE = 250 * time.Millisecond

// keepAliveInterval keeps the Deepgram socket open while the mic is muted.
const keepAliveInterval = 5 * time.Second

// DeepgramService streams microphone PCM to Deepgram's live transcription
// API and turns the result stream into discrete utterances. Partial text is
// published on Transcripts for display; a complete utterance is published on
// Finalized either when Deepgram endpoints the speech, when the silence
// timer fires, or when listening stops with text still accumulated.
type DeepgramService struct {
	apiKey      string
	model       string
	conn        *websocket.Conn
	transcripts chan string
	finalizeCh  chan string
	audioData   chan []byte
	stopCh      chan struct{}
	mu          sync.RWMutex
	connected   bool

	// utterance accumulation
	accMu     sync.Mutex
	listening bool
	// segments holds is_final result texts for the current utterance;
	// partial holds the still-changing tail segment.
	segments       []string
	partial        string
	lastUpdateTime time.Time
	// resettable timer to detect end-of-utterance based on inactivity
	silenceTimer *time.Timer
	// last time we detected non-silent voice energy in the incoming PCM
	lastVoiceTime time.Time
}

// Deepgram live API message shapes (the fields we use).
type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	SpeechFinal bool `json:"speech_final"`
}

type metadataMessage struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration"`
}

// NewDeepgramService creates a live transcription client. model may be empty
// to use nova-2-general.
func NewDeepgramService(apiKey, model string) *DeepgramService {
	if model == "" {
		model = "nova-2-general"
	}
	return &DeepgramService{
		apiKey:      apiKey,
		model:       model,
		transcripts: make(chan string, 100),
		finalizeCh:  make(chan string, 10),
		audioData:   make(chan []byte, 1000),
		stopCh:      make(chan struct{}),
	}
}

// Transcripts returns the channel of live partial transcript previews.
func (s *DeepgramService) Transcripts() <-chan string { return s.transcripts }

// Finalized returns the channel signaling end-of-utterance with the full text.
func (s *DeepgramService) Finalized() <-chan string { return s.finalizeCh }

// Connect establishes the WebSocket connection to Deepgram.
func (s *DeepgramService) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	if s.apiKey == "" {
		return fmt.Errorf("Deepgram API key is empty")
	}

	params := url.Values{}
	params.Set("model", s.model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", "16000")
	params.Set("channels", "1")
	params.Set("interim_results", "true")
	params.Set("punctuate", "true")

	wsURL := fmt.Sprintf("wss://api.deepgram.com/v1/listen?%s", params.Encode())

	headers := map[string][]string{
		"Authorization": {"Token " + s.apiKey},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	log.Printf("Connecting to Deepgram at: %s", wsURL)
	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("Deepgram connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.lastUpdateTime = time.Now()
	s.lastVoiceTime = time.Now()

	go s.handleMessages()
	go s.sendAudioData()
	go s.keepAlive()

	log.Println("Successfully connected to Deepgram streaming service")
	return nil
}

// StartListening opens the mic gate. Audio queued while the gate is closed
// is dropped, so transcription only reflects what the user said while
// listening was on.
func (s *DeepgramService) StartListening() error {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return fmt.Errorf("not connected to Deepgram")
	}
	s.accMu.Lock()
	s.listening = true
	s.segments = nil
	s.partial = ""
	s.lastUpdateTime = time.Now()
	s.lastVoiceTime = time.Now()
	s.accMu.Unlock()
	return nil
}

// StopListening closes the mic gate and flushes any accumulated text as one
// final utterance.
func (s *DeepgramService) StopListening() {
	s.accMu.Lock()
	if !s.listening {
		s.accMu.Unlock()
		return
	}
	s.listening = false
	if s.silenceTimer != nil {
		_ = s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	text := s.collectUtteranceLocked()
	s.accMu.Unlock()
	s.deliverFinal(text)
}

// Listening reports whether the mic gate is open.
func (s *DeepgramService) Listening() bool {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	return s.listening
}

// SendAudio queues PCM to be sent to Deepgram. Frames arriving while the
// mic gate is closed are discarded.
func (s *DeepgramService) SendAudio(audioData []byte) error {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return fmt.Errorf("not connected to Deepgram")
	}
	if !s.Listening() {
		return nil
	}
	// Simple RMS scan to track voice activity for the silence timer.
	s.detectVoiceActivity(audioData)
	select {
	case s.audioData <- audioData:
		return nil
	default:
		log.Println("Audio buffer full, dropping packet")
		return nil
	}
}

// detectVoiceActivity updates lastVoiceTime if the PCM buffer carries voice
// energy above a threshold. Expects 16-bit little-endian mono at 16 kHz.
func (s *DeepgramService) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 { // larger chunks get sampled sparsely
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	rms := math.Sqrt(sumSquares / float64(count))
	const voiceRMS = 250.0
	if rms >= voiceRMS {
		s.accMu.Lock()
		s.lastVoiceTime = time.Now()
		s.accMu.Unlock()
	}
}

// RecentlyDetectedVoice reports whether voice energy was observed within the window.
func (s *DeepgramService) RecentlyDetectedVoice(window time.Duration) bool {
	s.accMu.Lock()
	last := s.lastVoiceTime
	s.accMu.Unlock()
	return time.Since(last) <= window
}

// Close closes the connection and cleans up resources.
func (s *DeepgramService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	if s.silenceTimer != nil {
		_ = s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	if s.conn != nil {
		closeMsg := map[string]string{"type": "CloseStream"}
		_ = s.conn.WriteJSON(closeMsg)
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	close(s.audioData)
	close(s.transcripts)
	close(s.finalizeCh)
	log.Println("Deepgram connection closed")
	return nil
}

// handleMessages processes incoming WebSocket messages.
func (s *DeepgramService) handleMessages() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in handleMessages: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Error reading message: %v", err)
				return
			}
			s.processMessage(message)
		}
	}
}

func (s *DeepgramService) processMessage(message []byte) {
	var baseMsg map[string]interface{}
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	msgType, ok := baseMsg["type"].(string)
	if !ok {
		log.Printf("Message missing type field")
		return
	}
	switch msgType {
	case "Results":
		var msg resultMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling Results message: %v", err)
			return
		}
		s.processResult(msg)
	case "Metadata":
		var msg metadataMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling Metadata message: %v", err)
			return
		}
		log.Printf("Deepgram stream ended: request=%s duration=%.2fs", msg.RequestID, msg.Duration)
	case "UtteranceEnd", "SpeechStarted":
		// informational only; endpointing is handled via speech_final
	case "Error":
		log.Printf("Deepgram error: %s", string(message))
	default:
		log.Printf("Unknown message type: %s", msgType)
	}
}

// processResult folds one Results message into the current utterance.
// Interim results replace the partial tail; is_final results are appended
// as committed segments. speech_final finalizes the utterance immediately,
// otherwise the silence timer decides.
func (s *DeepgramService) processResult(msg resultMessage) {
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	text := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)

	s.accMu.Lock()
	if !s.listening {
		s.accMu.Unlock()
		return
	}
	if msg.IsFinal {
		if text != "" {
			s.segments = append(s.segments, text)
		}
		s.partial = ""
	} else {
		s.partial = text
	}
	preview := s.previewLocked()
	if text != "" {
		s.lastUpdateTime = time.Now()
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(SILENCE_THRESHOLD, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(SILENCE_THRESHOLD)
		}
	}
	var done string
	if msg.SpeechFinal {
		done = s.collectUtteranceLocked()
		if s.silenceTimer != nil {
			_ = s.silenceTimer.Stop()
			s.silenceTimer = nil
		}
	}
	s.accMu.Unlock()

	if preview != "" {
		// stream the growing preview for UI; dropping is fine here
		select {
		case s.transcripts <- preview:
		default:
		}
	}
	s.deliverFinal(done)
}

// previewLocked joins committed segments and the live partial. accMu held.
func (s *DeepgramService) previewLocked() string {
	parts := s.segments
	if s.partial != "" {
		parts = append(append([]string{}, s.segments...), s.partial)
	}
	return strings.Join(parts, " ")
}

// collectUtteranceLocked drains the accumulated utterance. accMu held.
func (s *DeepgramService) collectUtteranceLocked() string {
	text := s.previewLocked()
	s.segments = nil
	s.partial = ""
	return strings.TrimSpace(text)
}

// finalizeDueToSilence is invoked after SILENCE_THRESHOLD of inactivity.
func (s *DeepgramService) finalizeDueToSilence() {
	// If we're shutting down, do nothing to avoid sends on closed channels
	select {
	case <-s.stopCh:
		return
	default:
	}

	// First pass check
	s.accMu.Lock()
	if !s.listening {
		s.accMu.Unlock()
		return
	}
	now := time.Now()
	// Extend the threshold for continuation-like endings
	threshold := SILENCE_THRESHOLD
	if isContinuationLikely(s.previewLocked()) {
		threshold += CONTINUATION_EXTENSION
	}
	sinceText := now.Sub(s.lastUpdateTime)
	sinceVoice := now.Sub(s.lastVoiceTime)
	if sinceText < threshold || sinceVoice < threshold {
		// Not enough inactivity; reschedule for the remaining window
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		s.accMu.Unlock()
		return
	}

	// Snapshot and release the lock to wait for stabilization
	lastUpdateAt := s.lastUpdateTime
	s.accMu.Unlock()

	// Grace period to catch late transcript updates
	time.Sleep(STABILIZATION_GRACE)

	// Second pass validation after grace
	s.accMu.Lock()
	if !s.listening {
		s.accMu.Unlock()
		return
	}
	if s.lastUpdateTime.After(lastUpdateAt) {
		// A late update arrived during grace; push the timer forward
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(SILENCE_THRESHOLD, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(SILENCE_THRESHOLD)
		}
		s.accMu.Unlock()
		return
	}
	text := s.collectUtteranceLocked()
	s.accMu.Unlock()

	s.deliverFinal(text)
}

// deliverFinal pushes one completed utterance downstream without dropping,
// so no word the user spoke is ever lost.
func (s *DeepgramService) deliverFinal(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	select {
	case <-s.stopCh:
	case s.finalizeCh <- text:
	}
}

// isContinuationLikely returns true if the last meaningful word indicates the
// speaker is likely to continue (conjunctions, prepositions, fillers).
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	// Coordinating conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	// Subordinating conjunctions / conditionals
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	// Discourse markers / fillers
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	// Prepositions that are awkward sentence endings; await continuation
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}

// sendAudioData sends queued audio frames over the socket.
func (s *DeepgramService) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in sendAudioData: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case audioData, ok := <-s.audioData:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, audioData); err != nil {
					log.Printf("Error sending audio data: %v", err)
					return
				}
			}
		}
	}
}

// keepAlive pings Deepgram while no audio is flowing so the stream is not
// closed between utterances.
func (s *DeepgramService) keepAlive() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteJSON(map[string]string{"type": "KeepAlive"}); err != nil {
				log.Printf("Error sending keepalive: %v", err)
				return
			}
		}
	}
}

package transcript

import (
	"encoding/binary"
	"testing"
	"time"
)

func resultMsg(text string, isFinal, speechFinal bool) resultMessage {
	var msg resultMessage
	msg.Type = "Results"
	msg.IsFinal = isFinal
	msg.SpeechFinal = speechFinal
	msg.Channel.Alternatives = []struct {
		Transcript string `json:"transcript"`
	}{{Transcript: text}}
	return msg
}

func TestProcessResult_AccumulatesSegmentsAndFinalizesOnSpeechFinal(t *testing.T) {
	s := NewDeepgramService("test", "")
	s.accMu.Lock()
	s.listening = true
	s.accMu.Unlock()

	s.processResult(resultMsg("update the", false, false))
	select {
	case got := <-s.transcripts:
		if got != "update the" {
			t.Fatalf("preview = %q, want %q", got, "update the")
		}
	default:
		t.Fatalf("expected a partial preview")
	}

	s.processResult(resultMsg("update the email field", true, false))
	s.processResult(resultMsg("to alice at example dot com", true, true))

	select {
	case got := <-s.finalizeCh:
		want := "update the email field to alice at example dot com"
		if got != want {
			t.Fatalf("finalized = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a finalized utterance")
	}

	s.accMu.Lock()
	leftover := s.previewLocked()
	s.accMu.Unlock()
	if leftover != "" {
		t.Fatalf("expected accumulation cleared after finalize, got %q", leftover)
	}
}

func TestProcessResult_DroppedWhileNotListening(t *testing.T) {
	s := NewDeepgramService("test", "")
	s.processResult(resultMsg("should be ignored", true, true))
	select {
	case got := <-s.finalizeCh:
		t.Fatalf("unexpected finalized utterance %q", got)
	default:
	}
}

func TestStopListening_FlushesAccumulatedText(t *testing.T) {
	s := NewDeepgramService("test", "")
	s.accMu.Lock()
	s.listening = true
	s.accMu.Unlock()

	s.processResult(resultMsg("analyze this page", true, false))
	s.StopListening()

	if s.Listening() {
		t.Fatalf("expected listening off after stop")
	}
	select {
	case got := <-s.finalizeCh:
		if got != "analyze this page" {
			t.Fatalf("flushed = %q, want %q", got, "analyze this page")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected stop to flush the pending utterance")
	}

	// A second stop must not emit again.
	s.StopListening()
	select {
	case got := <-s.finalizeCh:
		t.Fatalf("unexpected second utterance %q", got)
	default:
	}
}

func TestDetectVoiceActivity_SetsLastVoiceOnLoudFrame(t *testing.T) {
	s := NewDeepgramService("test", "")
	// craft a loud 10ms frame
	samples := make([]byte, 160*2)
	for i := 0; i < 160; i++ {
		binary.LittleEndian.PutUint16(samples[i*2:(i+1)*2], 3000)
	}
	before := s.RecentlyDetectedVoice(0)
	s.detectVoiceActivity(samples)
	after := s.RecentlyDetectedVoice(0)
	if before && !after {
		t.Fatalf("expected voice detection change")
	}
}

func TestHelpers_LastWordAndContinuation(t *testing.T) {
	if lastWord("") != "" {
		t.Fatalf("lastWord empty mismatch")
	}
	if lastWord("hi there!") != "there" {
		t.Fatalf("lastWord basic mismatch")
	}
	if !isContinuationLikely("we should and") {
		t.Fatalf("expected continuation likely when last word is 'and'")
	}
	if isContinuationLikely("complete sentence.") {
		t.Fatalf("did not expect continuation likely")
	}
}

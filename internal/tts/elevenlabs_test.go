package tts

import "testing"

func TestElevenLabs_RequestBodyCarriesSpeakingRate(t *testing.T) {
	e := NewElevenLabsClient("key", "voice", 0.9)
	body := e.requestBody("hello")
	settings, ok := body["voice_settings"].(map[string]any)
	if !ok {
		t.Fatalf("missing voice_settings: %+v", body)
	}
	if got := settings["speed"]; got != 0.9 {
		t.Fatalf("speed = %v, want 0.9", got)
	}
	if body["text"] != "hello" {
		t.Fatalf("text = %v", body["text"])
	}
}

func TestElevenLabs_ZeroRateFallsBackToNaturalPace(t *testing.T) {
	e := NewElevenLabsClient("key", "voice", 0)
	settings := e.requestBody("hi")["voice_settings"].(map[string]any)
	if got := settings["speed"]; got != 1.0 {
		t.Fatalf("speed = %v, want 1.0", got)
	}
}

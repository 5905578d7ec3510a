package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Fillora backend API
	APIBaseURL string

	// Speech
	DeepgramKey       string
	STTModel          string
	TTSProvider       string // "deepgram" or "elevenlabs"
	TTSModel          string
	SpeechRate        float64
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Browser
	DevToolsURL string
	Headless    bool

	CredentialsPath string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	apiBase := os.Getenv("FILLORA_API_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8000"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - voice input and output will not work")
	}

	sttModel := os.Getenv("DEEPGRAM_STT_MODEL")
	if sttModel == "" {
		sttModel = "nova-2-general"
	}

	ttsProvider := os.Getenv("TTS_PROVIDER")
	if ttsProvider == "" {
		ttsProvider = "deepgram"
	}
	ttsModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if ttsModel == "" {
		ttsModel = "aura-2-thalia-en"
	}

	speechRate := 0.9
	if v := os.Getenv("SPEECH_RATE"); v != "" {
		if rate, perr := strconv.ParseFloat(v, 64); perr == nil && rate > 0 {
			speechRate = rate
		} else {
			log.Printf("Warning: invalid SPEECH_RATE %q - using %.1f", v, speechRate)
		}
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if ttsProvider == "elevenlabs" && (elevenKey == "" || voiceID == "") {
		log.Println("Warning: ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set - speech output will not work")
	}

	devtoolsURL := os.Getenv("CHROME_DEVTOOLS_URL")
	headless := os.Getenv("CHROME_HEADLESS") == "true"

	credPath := os.Getenv("CREDENTIALS_PATH")
	if credPath == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			home = "."
		}
		credPath = filepath.Join(home, ".fillora", "credentials.json")
	}

	log.Printf("config: HTTP_ADDRESS=%s FILLORA_API_URL=%s", addr, apiBase)
	return Config{
		HTTPAddress:       addr,
		APIBaseURL:        apiBase,
		DeepgramKey:       deepgramKey,
		STTModel:          sttModel,
		TTSProvider:       ttsProvider,
		TTSModel:          ttsModel,
		SpeechRate:        speechRate,
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		DevToolsURL:       devtoolsURL,
		Headless:          headless,
		CredentialsPath:   credPath,
	}
}

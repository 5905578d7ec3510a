package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raorajnish/Fillora-Kaizen/internal/agent"
	"github.com/raorajnish/Fillora-Kaizen/internal/audio"
	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
	"github.com/raorajnish/Fillora-Kaizen/internal/bridge"
	"github.com/raorajnish/Fillora-Kaizen/internal/config"
	"github.com/raorajnish/Fillora-Kaizen/internal/httpserver"
	"github.com/raorajnish/Fillora-Kaizen/internal/store"
	"github.com/raorajnish/Fillora-Kaizen/internal/transcript"
	"github.com/raorajnish/Fillora-Kaizen/internal/tts"
)

// credentialWipe clears both the persisted credentials and the in-memory
// token on logout.
type credentialWipe struct {
	store *store.Store
	api   *backend.Client
}

func (c credentialWipe) Clear() error {
	c.api.ClearCredentials()
	return c.store.Clear()
}

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	credStore := store.New(cfg.CredentialsPath)
	api := backend.NewClient(cfg.APIBaseURL)
	if creds, err := credStore.Load(); err != nil {
		log.Printf("credentials load failed: %v", err)
	} else if creds.Active() {
		api.SetCredentials(creds.AuthToken, creds.User)
		log.Printf("restored session for %s", creds.User.Email)
	}

	audioOK := true
	if err := audio.Init(); err != nil {
		log.Printf("Warning: audio init failed, voice output disabled: %v", err)
		audioOK = false
	} else {
		defer audio.Shutdown()
	}

	var speaker agent.Speaker
	if audioOK {
		var synth tts.Synthesizer
		if cfg.TTSProvider == "elevenlabs" {
			synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.SpeechRate)
		} else {
			synth = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.TTSModel)
		}
		speaker = tts.NewSpeaker(synth, audio.NewPlayer())
	}

	transcriber := transcript.NewDeepgramService(cfg.DeepgramKey, cfg.STTModel)

	pageBridge, err := bridge.NewChromeBridge(cfg.DevToolsURL, cfg.Headless)
	if err != nil {
		log.Fatalf("browser bridge: %v", err)
	}
	defer pageBridge.Close()

	hub := httpserver.NewHub()
	sess := agent.NewSession(transcriber, speaker, pageBridge, api, credentialWipe{store: credStore, api: api},
		hub.PublishMessage, hub.PublishTranscript)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	stopSession, err := sess.Start(runCtx)
	if err != nil {
		log.Fatalf("session start: %v", err)
	}
	defer stopSession()

	if audioOK {
		go func() {
			if err := audio.StartMicCapture(runCtx, transcriber.SendAudio); err != nil {
				log.Printf("mic capture stopped: %v", err)
			}
		}()
	}

	srv := httpserver.New(sess, api, credStore, hub)

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- srv.Start(cfg.HTTPAddress)
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	runCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := transcriber.Close(); err != nil {
		log.Printf("transcriber close failed: %v", err)
	}
}

package agent

import (
	"errors"

	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

// Failure taxonomy. Everything here is recoverable: failures are reported as
// one spoken+displayed message and the user retries with a new utterance or
// button press. There are no automatic retries.
var (
	// ErrAuthMissing means no stored token; the caller routes to login.
	ErrAuthMissing = errors.New("no stored credentials")

	// ErrSpeechUnsupported means the speech engine is unavailable. Voice is
	// disabled; the text path keeps working.
	ErrSpeechUnsupported = errors.New("speech engine unavailable")

	// ErrAnalyzeFailed covers page capture and analysis call failures.
	ErrAnalyzeFailed = errors.New("page analysis failed")

	// ErrFillFailed covers DOM mutation and fill persistence failures.
	ErrFillFailed = errors.New("form fill failed")

	// ErrFieldInputUnparsed re-exports the extractor's signal so callers can
	// match the whole taxonomy from this package.
	ErrFieldInputUnparsed = command.ErrFieldInputUnparsed

	// ErrNetwork is the generic backend failure.
	ErrNetwork = errors.New("network request failed")
)

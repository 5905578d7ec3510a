package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrFieldInputUnparsed means a deferred field-input utterance resolved
// neither a field name nor a value. The caller must re-prompt the user
// rather than silently discard the utterance.
var ErrFieldInputUnparsed = errors.New("could not parse field name and value from input")

var (
	updateInputRe = regexp.MustCompile(`(?i)\b(?:update|change|modify)\s+(?:the\s+)?([a-zA-Z][\w ]*?)\s+(?:to|with|as)\s+(.+)$`)
	createInputRe = regexp.MustCompile(`(?i)\b(?:create|add|new)\s+(?:field\s+)?([a-zA-Z][\w ]*?)\s+(?:with value|as|to)\s+(.+)$`)
)

// fieldVocabulary is the fixed fallback vocabulary. Scan order matters: the
// first name that appears in the utterance wins, even when a later one would
// be a longer match.
var fieldVocabulary = []string{
	"email", "name", "phone", "address", "city",
	"state", "zip", "country", "username", "password",
}

// valueMarkers introduce the value after a vocabulary field name.
var valueMarkers = map[string]bool{"is": true, "to": true, "with": true, "as": true}

// fallbackValueWords caps the value length when no marker word follows the
// field name.
const fallbackValueWords = 5

// ExtractFieldInput parses the utterance that follows an update/create
// prompt. It tries the explicit "<verb> <field> <marker> <value>" patterns
// first and falls back to a vocabulary scan. Op is OpAuto on the fallback
// path; the caller resolves it from the active editing mode.
func ExtractFieldInput(utterance string) (FieldInput, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return FieldInput{}, ErrFieldInputUnparsed
	}

	if m := updateInputRe.FindStringSubmatch(text); m != nil {
		return FieldInput{Op: OpUpdate, Name: normalizeFieldName(m[1]), Value: trimValue(m[2])}, nil
	}
	if m := createInputRe.FindStringSubmatch(text); m != nil {
		return FieldInput{Op: OpCreate, Name: normalizeFieldName(m[1]), Value: trimValue(m[2])}, nil
	}

	lower := strings.ToLower(text)
	for _, name := range fieldVocabulary {
		idx := strings.Index(lower, name)
		if idx < 0 {
			continue
		}
		value := extractVocabularyValue(text[idx+len(name):])
		if value == "" {
			return FieldInput{}, ErrFieldInputUnparsed
		}
		return FieldInput{Op: OpAuto, Name: name, Value: value}, nil
	}

	return FieldInput{}, ErrFieldInputUnparsed
}

// extractVocabularyValue pulls the value from the text trailing a vocabulary
// hit: everything after an is/to/with/as marker up to a trailing "and" (or
// end of string), or failing a marker, the next few words.
func extractVocabularyValue(rest string) string {
	words := strings.Fields(rest)
	if len(words) == 0 {
		return ""
	}

	if valueMarkers[strings.ToLower(words[0])] {
		words = words[1:]
		if end := indexOfWord(words, "and"); end >= 0 {
			words = words[:end]
		}
		return strings.Join(words, " ")
	}

	if end := indexOfWord(words, "and"); end >= 0 {
		words = words[:end]
	}
	if len(words) > fallbackValueWords {
		words = words[:fallbackValueWords]
	}
	return strings.Join(words, " ")
}

func indexOfWord(words []string, target string) int {
	for i, w := range words {
		if strings.EqualFold(w, target) {
			return i
		}
	}
	return -1
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func trimValue(v string) string {
	return strings.TrimSpace(v)
}

// SynthesizeSelector builds the default attribute-matching query for a field
// that analysis did not give an explicit selector.
func SynthesizeSelector(name string) string {
	return fmt.Sprintf(`[name=%q], #%s, input[name*=%q i]`, name, name, name)
}

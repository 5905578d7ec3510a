// Package command turns finalized utterances into structured intents and
// field edits. The field extractor is a known-incomplete heuristic parser
// built on regexes and a fixed field vocabulary, not full NLU.
package command

import "strings"

// Parse classifies one utterance. First match wins; the rule order below is
// the tie-break policy, so e.g. "fill form" always classifies as analyze-page
// while "fill it" requires the field editor to be visible.
func Parse(utterance string, ctx Context) ParsedCommand {
	text := strings.ToLower(strings.TrimSpace(utterance))

	switch {
	case text == "":
		return ParsedCommand{Intent: IntentNoop}

	case strings.Contains(text, "analyze"),
		strings.Contains(text, "scrape"),
		strings.Contains(text, "fill") && strings.Contains(text, "form"):
		return ParsedCommand{Intent: IntentAnalyzePage}

	case ctx.FieldEditorVisible && containsAny(text, "update", "change", "modify"):
		// Field name and value arrive in a subsequent utterance.
		return ParsedCommand{Intent: IntentUpdateField}

	case ctx.FieldEditorVisible && containsAny(text, "create", "add", "new field"):
		return ParsedCommand{Intent: IntentCreateField}

	case ctx.FieldEditorVisible && containsAny(text, "fill form", "fill it", "proceed"):
		return ParsedCommand{Intent: IntentFillForm}

	case containsAny(text, "logout", "sign out"):
		return ParsedCommand{Intent: IntentLogout}

	case strings.Contains(text, "no") && containsAny(text, "else", "more"):
		return ParsedCommand{Intent: IntentEndConversation}

	case !ctx.FieldEditorVisible:
		return ParsedCommand{Intent: IntentGeneralChat}

	default:
		return ParsedCommand{Intent: IntentNoop}
	}
}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

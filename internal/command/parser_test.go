package command

import "testing"

func TestParse_ClassificationOrder(t *testing.T) {
	editor := Context{FieldEditorVisible: true}
	plain := Context{}

	cases := []struct {
		name string
		text string
		ctx  Context
		want Intent
	}{
		{"analyze keyword", "analyze this page", plain, IntentAnalyzePage},
		{"scrape keyword", "please scrape it", plain, IntentAnalyzePage},
		{"fill and form beats fill-form rule", "fill the form", editor, IntentAnalyzePage},
		{"update with editor", "update the email", editor, IntentUpdateField},
		{"change with editor", "I want to change something", editor, IntentUpdateField},
		{"modify with editor", "modify it please", editor, IntentUpdateField},
		{"update without editor is chat", "update the email", plain, IntentGeneralChat},
		{"create with editor", "create a field", editor, IntentCreateField},
		{"add with editor", "add something", editor, IntentCreateField},
		{"fill it with editor", "fill it", editor, IntentFillForm},
		{"proceed with editor", "proceed", editor, IntentFillForm},
		{"fill it without editor is chat", "fill it", plain, IntentGeneralChat},
		{"logout", "please logout", plain, IntentLogout},
		{"sign out", "sign out now", plain, IntentLogout},
		{"logout wins over chat with editor", "logout", editor, IntentLogout},
		{"no more", "no, nothing more", plain, IntentEndConversation},
		{"no else", "no, nothing else thanks", plain, IntentEndConversation},
		{"general chat", "what is the weather", plain, IntentGeneralChat},
		{"unmatched with editor is noop", "hello there", editor, IntentNoop},
		{"empty is noop", "   ", plain, IntentNoop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text, tc.ctx)
			if got.Intent != tc.want {
				t.Fatalf("Parse(%q, %+v) = %s, want %s", tc.text, tc.ctx, got.Intent, tc.want)
			}
		})
	}
}

func TestParse_IsPure(t *testing.T) {
	ctx := Context{FieldEditorVisible: true}
	first := Parse("update the address", ctx)
	for i := 0; i < 3; i++ {
		if got := Parse("update the address", ctx); got != first {
			t.Fatalf("Parse is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestParse_TopLevelNeverExtractsFields(t *testing.T) {
	got := Parse("update email to john@example.com", Context{FieldEditorVisible: true})
	if got.Intent != IntentUpdateField {
		t.Fatalf("intent = %s, want %s", got.Intent, IntentUpdateField)
	}
	if got.FieldName != "" || got.FieldValue != "" {
		t.Fatalf("top-level parse must defer field extraction, got %+v", got)
	}
}

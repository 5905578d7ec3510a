package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"

	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

func TestPickPageTarget_SkipsNonPageSurfaces(t *testing.T) {
	infos := []*target.Info{
		{Type: "service_worker", URL: "https://example.com/sw.js"},
		{Type: "page", URL: "devtools://devtools/bundled/inspector.html"},
		{Type: "page", URL: "chrome-extension://abc/popup.html"},
		{Type: "page", URL: "https://example.com/signup"},
		{Type: "page", URL: "https://other.test/"},
	}
	got := pickPageTarget(infos)
	if got == nil {
		t.Fatalf("expected a target")
	}
	if got.URL != "https://example.com/signup" {
		t.Fatalf("picked %q, want the first real page", got.URL)
	}
}

func TestPickPageTarget_NoPages(t *testing.T) {
	infos := []*target.Info{
		{Type: "background_page", URL: "chrome-extension://abc/bg.html"},
	}
	if got := pickPageTarget(infos); got != nil {
		t.Fatalf("expected nil, got %q", got.URL)
	}
}

func TestFillTargets_DropsEmptyValues(t *testing.T) {
	fields := []command.FormField{
		{Name: "email", Selector: `[name="email"]`, Value: "j@example.com"},
		{Name: "phone", Selector: `[name="phone"]`, Value: ""},
		{Name: "city", Value: "Berlin"},
	}
	got := fillTargets(fields)
	if len(got) != 2 {
		t.Fatalf("kept %d fields, want 2", len(got))
	}
	for _, f := range got {
		if f.Value == "" {
			t.Fatalf("empty-valued field %q survived filtering", f.Name)
		}
	}
}

func TestFill_AllEmptyValuesIsNoop(t *testing.T) {
	// No browser attached: Fill must return before touching Chrome when
	// every field is valueless.
	b := &ChromeBridge{}
	err := b.Fill(context.Background(), []command.FormField{
		{Name: "phone", Selector: `[name="phone"]`, Value: ""},
		{Name: "zip", Value: ""},
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
}

func TestFillScript_SkipsValuelessElements(t *testing.T) {
	// The in-page script is the last line of defense: a resolved element
	// with an empty value must not be written to or receive events.
	if !strings.Contains(fillScriptTemplate, "if (!el || !f.value) continue;") {
		t.Fatalf("fill script lost the empty-value guard:\n%s", fillScriptTemplate)
	}
	setterIdx := strings.Index(fillScriptTemplate, "desc.set.call")
	guardIdx := strings.Index(fillScriptTemplate, "!f.value")
	if guardIdx == -1 || setterIdx == -1 || guardIdx > setterIdx {
		t.Fatalf("empty-value guard must precede the value setter")
	}
}

func TestFillScript_EmbedsFieldsAsJSON(t *testing.T) {
	fields := []command.FormField{
		{Name: "email", Selector: `[name="email"]`, Value: `a"b@example.com`, Type: "email"},
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	script := fmt.Sprintf(fillScriptTemplate, payload)
	if !strings.Contains(script, `a\"b@example.com`) {
		t.Fatalf("expected JSON-escaped value in script:\n%s", script)
	}
	if strings.Contains(script, "%s") {
		t.Fatalf("placeholder not substituted")
	}
	// the payload must still parse back as the same fields
	start := strings.Index(script, "const fields = ") + len("const fields = ")
	end := strings.Index(script[start:], ";\n")
	var back []command.FormField
	if err := json.Unmarshal([]byte(script[start:start+end]), &back); err != nil {
		t.Fatalf("embedded payload is not valid JSON: %v", err)
	}
	if back[0].Value != fields[0].Value {
		t.Fatalf("value = %q, want %q", back[0].Value, fields[0].Value)
	}
}

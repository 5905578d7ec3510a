package command

// Intent is the classified purpose of one finalized utterance.
type Intent string

const (
	IntentAnalyzePage     Intent = "analyze-page"
	IntentUpdateField     Intent = "update-field"
	IntentCreateField     Intent = "create-field"
	IntentFillForm        Intent = "fill-form"
	IntentLogout          Intent = "logout"
	IntentEndConversation Intent = "end-conversation"
	IntentGeneralChat     Intent = "general-chat"
	IntentNoop            Intent = "noop"
)

// Context carries the UI state the classifier needs. Parsing is a pure
// function of the utterance and this context.
type Context struct {
	InEditMode         bool
	FieldEditorVisible bool
}

// ParsedCommand is the result of classifying one utterance.
// FieldName/FieldValue are only set by the deferred field-input extractor,
// never by top-level classification.
type ParsedCommand struct {
	Intent       Intent
	FieldName    string
	FieldValue   string
	SelectorHint string
}

// FieldOp distinguishes the two field-edit operations.
type FieldOp string

const (
	// OpAuto means the utterance did not name the operation explicitly;
	// the caller resolves it from the current editing mode.
	OpAuto   FieldOp = "auto"
	OpUpdate FieldOp = "update"
	OpCreate FieldOp = "create"
)

// FieldInput is the parsed (field, value) pair from a deferred field-input
// utterance.
type FieldInput struct {
	Op    FieldOp
	Name  string
	Value string
}

// FormField is one detected form field, as returned by page analysis.
type FormField struct {
	Name     string `json:"name"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Type     string `json:"type,omitempty"`
}

// FormData is a detected form and its values. Field order is the analysis
// order; duplicates are allowed and shadow earlier entries at lookup time.
type FormData struct {
	URL    string      `json:"url"`
	Fields []FormField `json:"fields"`
}

package domain

// Part type tags keyed on by the renderer. These strings are wire contract:
// changing them breaks every deployed card renderer.
const (
	PartText           = "text"
	PartDataSourceGrid = "data-source-grid"
	PartPeopleGrid     = "data-people-grid"
	PartToolsGrid      = "data-tools-grid"
	PartPoliciesGrid   = "data-policies-grid"
	PartCollectionGrid = "data-collection-grid"
	PartSuggestions    = "data-suggestions"
)

// Part is one renderable unit streamed to the client during a chat turn.
// Parts are immutable once emitted and individually addressable by ID so a
// client can deduplicate on reconnect.
type Part struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data any    `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

// TextPart wraps assistant prose in a Part.
func TextPart(id, text string) Part {
	return Part{Type: PartText, ID: id, Text: text}
}

// CardPart wraps typed card data in a Part.
func CardPart(partType, id string, data any) Part {
	return Part{Type: partType, ID: id, Data: data}
}

// SuggestionsData is the payload of a data-suggestions part. The renderer
// shows match confidence and the matched field next to each card.
type SuggestionsData struct {
	Query       string       `json:"query"`
	Suggestions []Suggestion `json:"suggestions"`
	FuzzyMatch  bool         `json:"fuzzy_match"`
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
	"github.com/meridian-data/datamart/internal/usecase/query"
)

// scriptedCompletion replays a fixed sequence of completion rounds and
// records every conversation it was called with.
type scriptedCompletion struct {
	script []Completion
	err    error
	calls  [][]Message
	tools  [][]ToolDefinition
}

func (c *scriptedCompletion) Complete(_ context.Context, messages []Message, tools []ToolDefinition) (Completion, error) {
	c.calls = append(c.calls, messages)
	c.tools = append(c.tools, tools)
	if c.err != nil {
		return Completion{}, c.err
	}
	idx := len(c.calls) - 1
	if idx >= len(c.script) {
		return Completion{Content: "done"}, nil
	}
	return c.script[idx], nil
}

type fakeSearcher struct {
	resp domain.SearchResponse
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ domain.SearchQuery) (domain.SearchResponse, error) {
	return f.resp, f.err
}

type fakeRecords struct {
	dsResult  query.DataSourceResult
	dsErr     error
	peopleRes []domain.PersonRecord
	peopleErr error
	byName    map[string][]domain.PersonRecord
	lookups   []string
	peopleQs  []people.Params
	dsQs      []datasource.Params
}

func (f *fakeRecords) DataSources(_ context.Context, p datasource.Params) (query.DataSourceResult, error) {
	f.dsQs = append(f.dsQs, p)
	return f.dsResult, f.dsErr
}

func (f *fakeRecords) People(_ context.Context, p people.Params) ([]domain.PersonRecord, error) {
	f.peopleQs = append(f.peopleQs, p)
	return f.peopleRes, f.peopleErr
}

func (f *fakeRecords) PersonByName(_ context.Context, name string) ([]domain.PersonRecord, error) {
	f.lookups = append(f.lookups, name)
	return f.byName[name], nil
}

type recordingEmitter struct {
	parts []domain.Part
	err   error
}

func (e *recordingEmitter) Emit(p domain.Part) error {
	if e.err != nil {
		return e.err
	}
	e.parts = append(e.parts, p)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("part-%d", n)
	}
}

func userTurn(text string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: text}}}
}

func toolCall(name, args string) ToolCall {
	return ToolCall{ID: "call-" + name, Name: name, Arguments: args}
}

func toolResultFor(t *testing.T, messages []Message, callName string) string {
	t.Helper()
	for _, m := range messages {
		if m.Role == RoleTool && m.Name == callName {
			return m.Content
		}
	}
	t.Fatalf("no tool result for %s in conversation", callName)
	return ""
}

func newService(c CompletionClient, s SemanticSearcher, r RecordQuerier) *Service {
	return New(c, s, r, zap.NewNop()).WithIDGenerator(sequentialIDs())
}

func TestTurn_InvalidRequest(t *testing.T) {
	svc := newService(&scriptedCompletion{}, &fakeSearcher{}, &fakeRecords{})

	err := svc.Turn(context.Background(), Request{}, &recordingEmitter{})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for empty conversation, got %v", err)
	}

	err = svc.Turn(context.Background(), Request{Messages: []Message{{Role: RoleAssistant, Content: "hi"}}}, &recordingEmitter{})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for non-user last message, got %v", err)
	}
}

func TestTurn_PlainAnswerWithoutTools(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{{Content: "Hello!"}}}
	svc := newService(completion, &fakeSearcher{}, &fakeRecords{})
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("hi"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(em.parts) != 1 || em.parts[0].Type != domain.PartText || em.parts[0].Text != "Hello!" {
		t.Errorf("expected single text part, got %+v", em.parts)
	}
}

func TestTurn_TypedToolRejectedBeforeSemanticSearch(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolQueryDataSources, `{"search":"fx"}`)}},
		{Content: "final"},
	}}
	records := &fakeRecords{}
	svc := newService(completion, &fakeSearcher{}, records)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("find fx data"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records.dsQs) != 0 {
		t.Errorf("adapter must not execute before semantic_search, got %d queries", len(records.dsQs))
	}
	result := toolResultFor(t, completion.calls[1], toolQueryDataSources)
	if !strings.Contains(result, "semantic_search must be called") {
		t.Errorf("expected ordering rejection in tool result, got %q", result)
	}
	// Turn still completes with prose.
	if len(em.parts) != 1 || em.parts[0].Type != domain.PartText {
		t.Errorf("expected turn to continue to final text, got %+v", em.parts)
	}
}

func TestTurn_DataSourceFlowWithOwnerFanOut(t *testing.T) {
	// Three records, two distinct owners, one owner unknown to the people
	// store. Expect one data-source-grid and exactly one people grid.
	dsRecords := []domain.DataSourceRecord{
		{ID: "1", Title: "Player Telemetry", DataOwner: "Dana Reyes"},
		{ID: "2", Title: "Match History", DataOwner: "Alex Kim"},
		{ID: "3", Title: "Session Events", DataOwner: "Dana Reyes"},
	}
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"telemetry"}`)}},
		{ToolCalls: []ToolCall{toolCall(toolQueryDataSources, `{"search":"telemetry"}`)}},
		{Content: "Here is what I found."},
	}}
	searcher := &fakeSearcher{resp: domain.SearchResponse{
		Results:    []domain.ContentItem{{ContentID: "1", ContentType: domain.ContentTypeDataSources, Score: 0.9}},
		TotalFound: 1,
	}}
	records := &fakeRecords{
		dsResult: query.DataSourceResult{Data: dsRecords},
		byName: map[string][]domain.PersonRecord{
			"Dana Reyes": {{ID: "p1", Name: "Dana Reyes"}},
		},
	}
	svc := newService(completion, searcher, records)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("telemetry datasets"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := partTypes(em.parts)
	want := []string{domain.PartDataSourceGrid, domain.PartPeopleGrid, domain.PartText}
	if len(types) != len(want) {
		t.Fatalf("expected parts %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected parts %v, got %v", want, types)
		}
	}

	// Distinct owners, sorted before lookup.
	if len(records.lookups) != 2 || records.lookups[0] != "Alex Kim" || records.lookups[1] != "Dana Reyes" {
		t.Errorf("expected sorted distinct owner lookups, got %v", records.lookups)
	}
}

func TestTurn_CardsPrecedeProse(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"q"}`)}},
		{ToolCalls: []ToolCall{toolCall(toolQueryPeople, `{"search":"analytics"}`)}},
		{Content: "summary"},
	}}
	records := &fakeRecords{peopleRes: []domain.PersonRecord{{ID: "p1", Name: "Sam Ortiz"}}}
	svc := newService(completion, &fakeSearcher{}, records)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("who does analytics"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := partTypes(em.parts)
	lastIdx := len(types) - 1
	if types[lastIdx] != domain.PartText {
		t.Fatalf("expected prose last, got %v", types)
	}
	for _, tp := range types[:lastIdx] {
		if tp == domain.PartText {
			t.Errorf("text part emitted before cards: %v", types)
		}
	}
}

func TestTurn_SuggestionFallbackPart(t *testing.T) {
	suggestions := []domain.Suggestion{{
		DataSourceRecord: domain.DataSourceRecord{ID: "1", Title: "Operation Killshot Preorder Analytics"},
		Similarity:       0.43,
		MatchType:        domain.MatchTitle,
	}}
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"Opration Kilshot"}`)}},
		{ToolCalls: []ToolCall{toolCall(toolQueryDataSources, `{"search":"Opration Kilshot"}`)}},
		{Content: "No exact match, but close ones exist."},
	}}
	records := &fakeRecords{dsResult: query.DataSourceResult{Suggestions: suggestions}}
	svc := newService(completion, &fakeSearcher{}, records)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("Opration Kilshot"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found *domain.Part
	for i := range em.parts {
		if em.parts[i].Type == domain.PartSuggestions {
			found = &em.parts[i]
		}
	}
	if found == nil {
		t.Fatalf("expected data-suggestions part, got %v", partTypes(em.parts))
	}
	data, ok := found.Data.(domain.SuggestionsData)
	if !ok {
		t.Fatalf("unexpected suggestions payload type %T", found.Data)
	}
	if !data.FuzzyMatch || len(data.Suggestions) != 1 || data.Query != "Opration Kilshot" {
		t.Errorf("unexpected suggestions payload: %+v", data)
	}
}

func TestTurn_PersonIndicatorRedirect(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"who is the churn analyst"}`)}},
		{ToolCalls: []ToolCall{toolCall(toolQueryDataSources, `{"search":"who is the churn analyst"}`)}},
		{Content: "final"},
	}}
	records := &fakeRecords{peopleRes: []domain.PersonRecord{{ID: "p1", Name: "Ira Volkov"}}}
	svc := newService(completion, &fakeSearcher{}, records)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("who is the churn analyst"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records.dsQs) != 0 {
		t.Errorf("data source adapter must be bypassed on redirect, got %d queries", len(records.dsQs))
	}
	if len(records.peopleQs) != 1 || records.peopleQs[0].Search != "who is the churn analyst" {
		t.Errorf("expected redirected people query, got %+v", records.peopleQs)
	}
	types := partTypes(em.parts)
	if len(types) == 0 || types[0] != domain.PartPeopleGrid {
		t.Errorf("expected people grid from redirect, got %v", types)
	}
}

func TestTurn_DirectGridsFromSemanticResults(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"retention"}`)}},
		{Content: "see the cards"},
	}}
	searcher := &fakeSearcher{resp: domain.SearchResponse{
		Results: []domain.ContentItem{
			{ContentID: "t1", ContentType: domain.ContentTypeTools, Score: 0.8},
			{ContentID: "pol1", ContentType: domain.ContentTypePolicies, Score: 0.7},
			{ContentID: "c1", ContentType: domain.ContentTypeCollections, Score: 0.6},
		},
		TotalFound: 3,
	}}
	svc := newService(completion, searcher, &fakeRecords{})
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("retention policy and tools"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := partTypes(em.parts)
	want := []string{domain.PartToolsGrid, domain.PartPoliciesGrid, domain.PartCollectionGrid, domain.PartText}
	if len(types) != len(want) {
		t.Fatalf("expected parts %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected parts %v, got %v", want, types)
		}
	}
}

func TestTurn_ToolErrorDoesNotAbortTurn(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"q"}`)}},
		{Content: "could not find anything"},
	}}
	searcher := &fakeSearcher{err: errors.New("index down")}
	svc := newService(completion, searcher, &fakeRecords{})
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("q"), em); err != nil {
		t.Fatalf("tool failure must not abort the turn: %v", err)
	}

	result := toolResultFor(t, completion.calls[1], toolSemanticSearch)
	if result != "Failed to search content" {
		t.Errorf("expected human-readable tool error, got %q", result)
	}
	if len(em.parts) != 1 || em.parts[0].Type != domain.PartText {
		t.Errorf("expected final text despite tool error, got %v", partTypes(em.parts))
	}
}

func TestTurn_MalformedToolArguments(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{
		{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `not json`)}},
		{Content: "final"},
	}}
	searcher := &fakeSearcher{}
	svc := newService(completion, searcher, &fakeRecords{})

	if err := svc.Turn(context.Background(), userTurn("q"), &recordingEmitter{}); err != nil {
		t.Fatalf("malformed tool input must not abort the turn: %v", err)
	}
	result := toolResultFor(t, completion.calls[1], toolSemanticSearch)
	if !strings.Contains(result, "Invalid") {
		t.Errorf("expected argument rejection in tool result, got %q", result)
	}
}

func TestTurn_RoundBudgetForcesFinalAnswer(t *testing.T) {
	// Completion keeps asking for tools forever; the cap must cut it off and
	// force one final round without tools.
	loop := Completion{ToolCalls: []ToolCall{toolCall(toolSemanticSearch, `{"query":"q"}`)}}
	completion := &scriptedCompletion{script: []Completion{loop, loop, loop, loop, loop, {Content: "forced final"}}}
	svc := newService(completion, &fakeSearcher{}, &fakeRecords{}).WithMaxToolRounds(5)
	em := &recordingEmitter{}

	if err := svc.Turn(context.Background(), userTurn("q"), em); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completion.calls) != 6 {
		t.Fatalf("expected 5 tool rounds plus forced final, got %d calls", len(completion.calls))
	}
	if completion.tools[5] != nil {
		t.Errorf("forced final round must offer no tools")
	}
	if len(em.parts) != 1 || em.parts[0].Text != "forced final" {
		t.Errorf("expected forced final text, got %+v", em.parts)
	}
}

func TestTurn_CompletionFailureIsTurnFatal(t *testing.T) {
	completionErr := errors.New("provider unreachable")
	svc := newService(&scriptedCompletion{err: completionErr}, &fakeSearcher{}, &fakeRecords{})

	err := svc.Turn(context.Background(), userTurn("q"), &recordingEmitter{})
	if !errors.Is(err, completionErr) {
		t.Errorf("expected completion error to surface, got %v", err)
	}
}

func TestTurn_EmitterFailureIsTurnFatal(t *testing.T) {
	completion := &scriptedCompletion{script: []Completion{{Content: "hi"}}}
	svc := newService(completion, &fakeSearcher{}, &fakeRecords{})
	emErr := errors.New("client gone")

	err := svc.Turn(context.Background(), userTurn("q"), &recordingEmitter{err: emErr})
	if !errors.Is(err, emErr) {
		t.Errorf("expected emitter error to surface, got %v", err)
	}
}

func partTypes(parts []domain.Part) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Type)
	}
	return out
}

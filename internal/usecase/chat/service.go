// Package chat implements the tool orchestrator behind the chat endpoint.
// It drives the completion service through a bounded number of tool rounds,
// executes tool calls against the search and record services, and streams
// typed UI parts to the caller as tools complete. Card parts always reach the
// stream before the final prose of the turn.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/metrics"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
)

// DefaultMaxToolRounds caps tool-invocation rounds per turn. The cap is the
// only runaway prevention between the completion service and the tool set.
const DefaultMaxToolRounds = 5

const systemPrompt = `You are the assistant of an internal data marketplace. You help users find
data sources, people, tools, policies and curated collections.

Rules:
- Always call semantic_search first to find out which content types are
  relevant. Typed query tools are rejected until semantic_search has run.
- After semantic_search, call query_data_sources or query_people only for the
  content types it reported.
- Result cards are shown to the user automatically when tools succeed. Do not
  repeat card contents in prose; summarize and point at the cards instead.
- If nothing matched, say so plainly and mention close matches if any were
  suggested.`

// Request is one chat turn: the conversation so far, last message from the
// user.
type Request struct {
	Messages []Message
}

// Service orchestrates one chat turn.
type Service struct {
	completion CompletionClient
	search     SemanticSearcher
	records    RecordQuerier
	maxRounds  int
	newID      func() string
	logger     *zap.Logger
}

// New creates the chat orchestrator.
func New(completion CompletionClient, search SemanticSearcher, records RecordQuerier, logger *zap.Logger) *Service {
	return &Service{
		completion: completion,
		search:     search,
		records:    records,
		maxRounds:  DefaultMaxToolRounds,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// WithMaxToolRounds overrides the tool round cap.
func (s *Service) WithMaxToolRounds(n int) *Service {
	if n > 0 {
		s.maxRounds = n
	}
	return s
}

// WithIDGenerator overrides part ID generation.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	if fn != nil {
		s.newID = fn
	}
	return s
}

// turnState tracks per-turn orchestration state.
type turnState struct {
	semanticDone bool
}

// Turn runs one complete chat turn, streaming parts through the emitter.
// Individual tool failures never abort the turn; only a failed completion
// call, an invalid request or a broken emitter do.
func (s *Service) Turn(ctx context.Context, req Request, em Emitter) error {
	if err := validate(req); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
	}()

	messages := make([]Message, 0, len(req.Messages)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, req.Messages...)

	state := &turnState{}

	for round := 0; round < s.maxRounds; round++ {
		comp, err := s.completion.Complete(ctx, messages, toolManifest())
		if err != nil {
			return fmt.Errorf("completion round %d: %w", round+1, err)
		}

		if len(comp.ToolCalls) == 0 {
			return em.Emit(domain.TextPart(s.newID(), comp.Content))
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})

		for _, call := range comp.ToolCalls {
			result, err := s.dispatch(ctx, call, state, em)
			if err != nil {
				return err
			}
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	// Round budget exhausted: force a final answer without tools.
	comp, err := s.completion.Complete(ctx, messages, nil)
	if err != nil {
		return fmt.Errorf("final completion: %w", err)
	}
	return em.Emit(domain.TextPart(s.newID(), comp.Content))
}

func validate(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: empty conversation", domain.ErrInvalidQuery)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: last message must be a non-empty user message", domain.ErrInvalidQuery)
	}
	return nil
}

// dispatch executes one tool call. The returned string goes back to the
// completion service as the tool result; errors from tools are folded into
// that string so the turn keeps going. The returned error is emitter failure
// only.
func (s *Service) dispatch(ctx context.Context, call ToolCall, state *turnState, em Emitter) (string, error) {
	switch call.Name {
	case toolSemanticSearch:
		return s.runSemanticSearch(ctx, call, state, em)
	case toolQueryDataSources:
		return s.runDataSourceQuery(ctx, call, state, em)
	case toolQueryPeople:
		return s.runPeopleQuery(ctx, call, state, em)
	default:
		metrics.ChatToolInvocationsTotal.WithLabelValues(call.Name, "rejected").Inc()
		return fmt.Sprintf("Unknown tool: %s", call.Name), nil
	}
}

func (s *Service) runSemanticSearch(ctx context.Context, call ToolCall, state *turnState, em Emitter) (string, error) {
	var args semanticSearchArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolSemanticSearch, "rejected").Inc()
		return "Invalid semantic_search arguments", nil
	}

	resp, err := s.search.Search(ctx, domain.SearchQuery{Text: args.Query, Limit: args.Limit})
	if err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolSemanticSearch, "error").Inc()
		s.logger.Warn("semantic search tool failed", zap.Error(err))
		return "Failed to search content", nil
	}
	state.semanticDone = true
	metrics.ChatToolInvocationsTotal.WithLabelValues(toolSemanticSearch, "ok").Inc()

	// Tools, policies and collections render straight from the semantic
	// results. Data sources and people go through their typed adapters in a
	// follow-up round instead.
	if err := s.emitDirectGrids(resp.Results, em); err != nil {
		return "", err
	}

	return marshalToolResult(map[string]any{
		"total_found": resp.TotalFound,
		"results":     summarizeItems(resp.Results),
	}), nil
}

func (s *Service) runDataSourceQuery(ctx context.Context, call ToolCall, state *turnState, em Emitter) (string, error) {
	if !state.semanticDone {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryDataSources, "rejected").Inc()
		return "semantic_search must be called before query_data_sources", nil
	}

	var args dataSourceArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryDataSources, "rejected").Inc()
		return "Invalid query_data_sources arguments", nil
	}

	if looksLikePersonQuery(args.Search) {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryDataSources, "redirected").Inc()
		s.logger.Debug("person query redirected from data source tool", zap.String("search", args.Search))
		return s.queryPeopleAndEmit(ctx, peopleArgs{Search: args.Search, Limit: args.Limit}, em)
	}

	res, err := s.records.DataSources(ctx, datasource.Params{
		Search:   args.Search,
		Type:     args.Type,
		Category: args.Category,
		Status:   args.Status,
		Limit:    args.Limit,
	})
	if err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryDataSources, "error").Inc()
		s.logger.Warn("data source tool failed", zap.Error(err))
		return "Failed to search data sources", nil
	}
	metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryDataSources, "ok").Inc()

	if len(res.Data) > 0 {
		part := domain.CardPart(domain.PartDataSourceGrid, s.newID(), map[string]any{
			"data_sources": res.Data,
			"total":        len(res.Data),
		})
		if err := em.Emit(part); err != nil {
			return "", err
		}
		if err := s.fanOutOwners(ctx, res.Data, em); err != nil {
			return "", err
		}
		return marshalToolResult(map[string]any{
			"found":        len(res.Data),
			"data_sources": summarizeDataSources(res.Data),
		}), nil
	}

	if len(res.Suggestions) > 0 {
		part := domain.CardPart(domain.PartSuggestions, s.newID(), domain.SuggestionsData{
			Query:       args.Search,
			Suggestions: res.Suggestions,
			FuzzyMatch:  true,
		})
		if err := em.Emit(part); err != nil {
			return "", err
		}
		return marshalToolResult(map[string]any{
			"found":       0,
			"suggestions": summarizeSuggestions(res.Suggestions),
		}), nil
	}

	return marshalToolResult(map[string]any{"found": 0}), nil
}

func (s *Service) runPeopleQuery(ctx context.Context, call ToolCall, state *turnState, em Emitter) (string, error) {
	if !state.semanticDone {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryPeople, "rejected").Inc()
		return "semantic_search must be called before query_people", nil
	}

	var args peopleArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryPeople, "rejected").Inc()
		return "Invalid query_people arguments", nil
	}

	return s.queryPeopleAndEmit(ctx, args, em)
}

func (s *Service) queryPeopleAndEmit(ctx context.Context, args peopleArgs, em Emitter) (string, error) {
	records, err := s.records.People(ctx, people.Params{
		Search:     args.Search,
		Department: args.Department,
		Expertise:  args.Expertise,
		Limit:      args.Limit,
	})
	if err != nil {
		metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryPeople, "error").Inc()
		s.logger.Warn("people tool failed", zap.Error(err))
		return "Failed to search people", nil
	}
	metrics.ChatToolInvocationsTotal.WithLabelValues(toolQueryPeople, "ok").Inc()

	if len(records) > 0 {
		part := domain.CardPart(domain.PartPeopleGrid, s.newID(), map[string]any{
			"people": records,
			"total":  len(records),
		})
		if err := em.Emit(part); err != nil {
			return "", err
		}
	}

	return marshalToolResult(map[string]any{
		"found":  len(records),
		"people": summarizePeople(records),
	}), nil
}

// fanOutOwners looks up the person record behind each distinct data owner and
// emits one people grid per owner found. Owners are sorted first so emission
// order is deterministic. Misses and lookup failures are skipped without a
// part.
func (s *Service) fanOutOwners(ctx context.Context, records []domain.DataSourceRecord, em Emitter) error {
	seen := make(map[string]struct{})
	owners := make([]string, 0, len(records))
	for _, r := range records {
		owner := strings.TrimSpace(r.DataOwner)
		if owner == "" {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		found, err := s.records.PersonByName(ctx, owner)
		if err != nil {
			s.logger.Debug("owner lookup failed", zap.String("owner", owner), zap.Error(err))
			continue
		}
		if len(found) == 0 {
			continue
		}
		part := domain.CardPart(domain.PartPeopleGrid, s.newID(), map[string]any{
			"owner":  owner,
			"people": found,
		})
		if err := em.Emit(part); err != nil {
			return err
		}
	}
	return nil
}

// emitDirectGrids renders tool, policy and collection semantic hits as grid
// parts without a second query round.
func (s *Service) emitDirectGrids(items []domain.ContentItem, em Emitter) error {
	grids := []struct {
		contentType domain.ContentType
		partType    string
	}{
		{domain.ContentTypeTools, domain.PartToolsGrid},
		{domain.ContentTypePolicies, domain.PartPoliciesGrid},
		{domain.ContentTypeCollections, domain.PartCollectionGrid},
	}

	for _, g := range grids {
		var matched []domain.ContentItem
		for _, item := range items {
			if item.ContentType == g.contentType {
				matched = append(matched, item)
			}
		}
		if len(matched) == 0 {
			continue
		}
		part := domain.CardPart(g.partType, s.newID(), map[string]any{
			"items": matched,
			"total": len(matched),
		})
		if err := em.Emit(part); err != nil {
			return err
		}
	}
	return nil
}

func summarizeItems(items []domain.ContentItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"content_id":   item.ContentID,
			"content_type": string(item.ContentType),
			"content_text": item.ContentText,
			"score":        item.Score,
		})
	}
	return out
}

func summarizeDataSources(records []domain.DataSourceRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"id":          r.ID,
			"title":       r.Title,
			"type":        r.Type,
			"category":    r.Category,
			"data_owner":  r.DataOwner,
			"trust_score": r.TrustScore,
			"status":      string(r.Status),
		})
	}
	return out
}

func summarizePeople(records []domain.PersonRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"id":         r.ID,
			"name":       r.Name,
			"title":      r.Title,
			"department": r.Department,
		})
	}
	return out
}

func summarizeSuggestions(suggestions []domain.Suggestion) []map[string]any {
	out := make([]map[string]any, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, map[string]any{
			"title":       s.Title,
			"similarity":  s.Similarity,
			"match_field": string(s.MatchType),
		})
	}
	return out
}

func marshalToolResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "Failed to encode tool result"
	}
	return string(b)
}

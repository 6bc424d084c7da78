package chat

import (
	"context"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
	"github.com/meridian-data/datamart/internal/usecase/query"
)

// Message is one entry of the completion conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the completion service.
// Arguments is the raw JSON argument payload as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes one callable tool to the completion service.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is one completion round: either tool calls to execute or
// final assistant prose.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// CompletionClient drives the LLM completion service.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (Completion, error)
}

// SemanticSearcher is the mandatory first-step search.
type SemanticSearcher interface {
	Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResponse, error)
}

// RecordQuerier exposes the typed record adapters to the orchestrator.
type RecordQuerier interface {
	DataSources(ctx context.Context, p datasource.Params) (query.DataSourceResult, error)
	People(ctx context.Context, p people.Params) ([]domain.PersonRecord, error)
	PersonByName(ctx context.Context, name string) ([]domain.PersonRecord, error)
}

// Emitter receives parts as the turn produces them. Implementations stream
// each part to the client immediately; emission order is the render order.
type Emitter interface {
	Emit(part domain.Part) error
}

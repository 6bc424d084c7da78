package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
	chatuc "github.com/meridian-data/datamart/internal/usecase/chat"
	healthuc "github.com/meridian-data/datamart/internal/usecase/health"
	queryuc "github.com/meridian-data/datamart/internal/usecase/query"
	searchuc "github.com/meridian-data/datamart/internal/usecase/search"
)

// --- Fakes ---

type fakeContentIndex struct {
	items []domain.ContentItem
	err   error
}

func (f *fakeContentIndex) Search(_ context.Context, _ []float32, _ int, _ domain.ContentType) ([]domain.ContentItem, error) {
	return f.items, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
}

type fakeDataSourceRepo struct {
	data []domain.DataSourceRecord
	all  []domain.DataSourceRecord
	err  error
}

func (f *fakeDataSourceRepo) Query(_ context.Context, _ datasource.Params) ([]domain.DataSourceRecord, error) {
	return f.data, f.err
}

func (f *fakeDataSourceRepo) ListAll(_ context.Context) ([]domain.DataSourceRecord, error) {
	return f.all, nil
}

type fakePeopleRepo struct {
	records []domain.PersonRecord
}

func (f *fakePeopleRepo) Query(_ context.Context, _ people.Params) ([]domain.PersonRecord, error) {
	return f.records, nil
}

func (f *fakePeopleRepo) FindByName(_ context.Context, _ string) ([]domain.PersonRecord, error) {
	return f.records, nil
}

type fakeAssetRepo struct{}

func (f *fakeAssetRepo) Tools(_ context.Context, _, _ string, _ int) ([]domain.ToolRecord, error) {
	return nil, nil
}
func (f *fakeAssetRepo) Policies(_ context.Context, _, _ string, _ int) ([]domain.PolicyRecord, error) {
	return nil, nil
}
func (f *fakeAssetRepo) Collections(_ context.Context, _ string, _ int) ([]domain.CollectionRecord, error) {
	return nil, nil
}
func (f *fakeAssetRepo) Teams(_ context.Context, _ string, _ int) ([]domain.TeamRecord, error) {
	return nil, nil
}

type fakeCompletion struct {
	script []chatuc.Completion
	calls  int
}

func (f *fakeCompletion) Complete(_ context.Context, _ []chatuc.Message, _ []chatuc.ToolDefinition) (chatuc.Completion, error) {
	if f.calls >= len(f.script) {
		return chatuc.Completion{Content: "done"}, nil
	}
	c := f.script[f.calls]
	f.calls++
	return c, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func testServer(t *testing.T, completion chatuc.CompletionClient, dsRepo *fakeDataSourceRepo, healthErr error) *Server {
	t.Helper()
	logger := zap.NewNop()

	searchSvc := searchuc.New(&fakeContentIndex{}, &fakeEmbedder{}, logger)
	querySvc := queryuc.New(dsRepo, &fakePeopleRepo{}, &fakeAssetRepo{}, logger)

	var chatSvc *chatuc.Service
	if completion != nil {
		chatSvc = chatuc.New(completion, searchSvc, querySvc, logger)
	}

	healthSvc := healthuc.New(&fakePinger{}, &fakePinger{err: healthErr}, nil)

	return NewServer(chatSvc, searchSvc, querySvc, nil, healthSvc, logger)
}

// --- Tests ---

func TestHandleChat_StreamsTextAndEndMarker(t *testing.T) {
	completion := &fakeCompletion{script: []chatuc.Completion{{Content: "Hello there"}}}
	srv := testServer(t, completion, &fakeDataSourceRepo{}, nil)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest("POST", "/v1/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %q", ct)
	}
	out := rr.Body.String()
	if !strings.Contains(out, `"text":"Hello there"`) {
		t.Errorf("missing text frame: %q", out)
	}
	if !strings.Contains(out, "data: [DONE]") {
		t.Errorf("missing end marker: %q", out)
	}
}

func TestHandleChat_MalformedBody(t *testing.T) {
	srv := testServer(t, &fakeCompletion{}, &fakeDataSourceRepo{}, nil)

	req := httptest.NewRequest("POST", "/v1/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("turn-fatal errors must be JSON, got %q", ct)
	}
}

func TestHandleChat_EmptyConversationIsJSONError(t *testing.T) {
	srv := testServer(t, &fakeCompletion{}, &fakeDataSourceRepo{}, nil)

	req := httptest.NewRequest("POST", "/v1/chat", strings.NewReader(`{"messages":[]}`))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code: got %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestHandleChat_MissingCredential(t *testing.T) {
	srv := testServer(t, nil, &fakeDataSourceRepo{}, nil)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest("POST", "/v1/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestHandleDataSources_SuggestionsOnMiss(t *testing.T) {
	dsRepo := &fakeDataSourceRepo{
		all: []domain.DataSourceRecord{{ID: "1", Title: "Player Telemetry"}},
	}
	srv := testServer(t, &fakeCompletion{}, dsRepo, nil)

	req := httptest.NewRequest("GET", "/v1/data-sources?search=Playr+Telemetri", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Data        []domain.DataSourceRecord `json:"data"`
		Suggestions []domain.Suggestion       `json:"suggestions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Errorf("expected no exact data, got %d", len(resp.Data))
	}
	if len(resp.Suggestions) == 0 {
		t.Error("expected fuzzy suggestions for close-miss search")
	}
}

func TestHandleSearch_InvalidQuery(t *testing.T) {
	srv := testServer(t, &fakeCompletion{}, &fakeDataSourceRepo{}, nil)

	req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(`{"query":""}`))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	srv := testServer(t, &fakeCompletion{}, &fakeDataSourceRepo{}, errors.New("vector store down"))

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimit_ChatEndpoint(t *testing.T) {
	completion := &fakeCompletion{script: []chatuc.Completion{{Content: "a"}, {Content: "b"}}}
	srv := testServer(t, completion, &fakeDataSourceRepo{}, nil).WithChatRateLimit(0.001, 1)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	router := srv.Router()

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/v1/chat", strings.NewReader(body)))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("POST", "/v1/chat", strings.NewReader(body)))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-data/datamart/internal/domain"
)

func TestSearch_SendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header: got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"content_id":"ds-1","content_type":"data_sources","score":0.9}],"total_found":1,"message":"Found 1 matching items"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("sk-test"))
	resp, err := c.Search(context.Background(), SearchRequest{Query: "telemetry"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.TotalFound != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].ContentID != "ds-1" {
		t.Errorf("content id: got %q", resp.Results[0].ContentID)
	}
}

func TestDataSources_FilterParamsAndSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search") != "Playr Telemetri" {
			t.Errorf("search param: got %q", q.Get("search"))
		}
		if q.Get("limit") != "5" {
			t.Errorf("limit param: got %q", q.Get("limit"))
		}
		_, _ = w.Write([]byte(`{"data":[],"suggestions":[{"id":"ds-1","title":"Player Telemetry","similarity":0.88,"matchType":"title"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.DataSources(context.Background(), DataSourceFilter{Search: "Playr Telemetri", Limit: 5})
	if err != nil {
		t.Fatalf("DataSources failed: %v", err)
	}
	if len(res.Data) != 0 {
		t.Errorf("expected no exact matches, got %d", len(res.Data))
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Title != "Player Telemetry" {
		t.Fatalf("unexpected suggestions: %+v", res.Suggestions)
	}
}

func TestDoJSON_DecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"validation_failed","message":"query is required"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Search(context.Background(), SearchRequest{})
	if err == nil {
		t.Fatal("expected error")
	}

	apiErr := &APIError{}
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != "validation_failed" || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestChat_StreamsPartsUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"type\":\"data-source-grid\",\"id\":\"p1\",\"data\":{\"total\":2}}\n\n" +
				"data: {\"type\":\"text\",\"id\":\"p2\",\"text\":\"Here are two sources.\"}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var parts []domain.Part
	err := c.Chat(context.Background(),
		[]ChatMessage{{Role: "user", Content: "find telemetry data"}},
		func(p domain.Part) error {
			parts = append(parts, p)
			return nil
		})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Type != domain.PartDataSourceGrid {
		t.Errorf("first part type: got %q", parts[0].Type)
	}
	if parts[1].Text != "Here are two sources." {
		t.Errorf("text part: got %q", parts[1].Text)
	}
}

func TestChat_StreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"type\":\"text\",\"id\":\"p1\",\"text\":\"partial\"}\n\n" +
				"event: error\ndata: {\"error\":\"completion service is unavailable\"}\n\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var delivered int
	err := c.Chat(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}},
		func(domain.Part) error {
			delivered++
			return nil
		})

	streamErr := &StreamError{}
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected *StreamError, got %v", err)
	}
	if streamErr.Message != "completion service is unavailable" {
		t.Errorf("message: got %q", streamErr.Message)
	}
	if delivered != 1 {
		t.Errorf("parts before failure must still be delivered, got %d", delivered)
	}
}

func TestChat_HandlerErrorAbortsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"type\":\"text\",\"id\":\"p1\",\"text\":\"a\"}\n\n" +
				"data: {\"type\":\"text\",\"id\":\"p2\",\"text\":\"b\"}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	wantErr := errors.New("stop")
	err := c.Chat(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}},
		func(domain.Part) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

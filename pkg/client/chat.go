package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/meridian-data/datamart/internal/domain"
)

// ChatMessage is one turn of conversation history sent to the server.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PartHandler receives each streamed part in order. Returning an error
// aborts the stream.
type PartHandler func(domain.Part) error

// StreamError is an in-stream error event from the server. Parts emitted
// before the failure were already delivered to the handler.
type StreamError struct {
	Message string `json:"error"`
}

func (e *StreamError) Error() string {
	return "datamart: chat stream failed: " + e.Message
}

// Chat sends a conversation to the assistant and streams the response parts
// to handler until the server signals completion. Structured card parts
// arrive before assistant prose.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, handler PartHandler) error {
	body, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return fmt.Errorf("datamart: marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("datamart: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	// The default client timeout would kill long streams.
	httpClient := &http.Client{Transport: c.http.Transport}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("datamart: chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	return readStream(resp, handler)
}

func readStream(resp *http.Response, handler PartHandler) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var inErrorEvent bool
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			inErrorEvent = false
		case strings.HasPrefix(line, "event: "):
			inErrorEvent = strings.TrimPrefix(line, "event: ") == "error"
		case strings.HasPrefix(line, "data: "):
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				return nil
			}
			if inErrorEvent {
				streamErr := &StreamError{}
				if err := json.Unmarshal([]byte(payload), streamErr); err != nil || streamErr.Message == "" {
					streamErr.Message = payload
				}
				return streamErr
			}
			var part domain.Part
			if err := json.Unmarshal([]byte(payload), &part); err != nil {
				return fmt.Errorf("datamart: decode stream part: %w", err)
			}
			if err := handler(part); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("datamart: read stream: %w", err)
	}
	return fmt.Errorf("datamart: stream ended without completion marker")
}

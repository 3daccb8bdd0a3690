package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/tokens"
)

type OpenAIConfig struct {
	Endpoint    string
	APIKeyEnv   string
	HTTPTimeout time.Duration
}

type OpenAIProvider struct {
	endpoint      string
	apiKey        string
	client        *http.Client
	requestLogger *RequestLogger
}

func NewOpenAIProvider(cfg OpenAIConfig, debugCfg config.DebugConfig) *OpenAIProvider {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}

	provider := &OpenAIProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}

	if cfg.APIKeyEnv != "" {
		provider.apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	if debugCfg.LogRequests || debugCfg.LogResponses {
		provider.requestLogger = NewRequestLogger(debugCfg.LogDirectory, debugCfg.LogRequests, debugCfg.LogResponses)
	}

	return provider
}

func (p *OpenAIProvider) CountTokens(text string) (int, error) {
	endpointURL := p.endpoint + "/tokenize"
	requestBody, _ := json.Marshal(map[string]any{"content": text})

	httpResp, err := p.client.Post(endpointURL, "application/json", bytes.NewReader(requestBody))
	if err != nil {
		return tokens.Estimate(text), nil
	}
	defer httpResp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&payload); err != nil {
		return tokens.Estimate(text), nil
	}

	if toks, ok := payload["tokens"].([]any); ok {
		return len(toks), nil
	}

	if count, ok := payload["count"].(float64); ok {
		return int(count), nil
	}

	return tokens.Estimate(text), nil
}

// StreamChat submits a chat completion with streaming enabled and returns
// the event channel. The channel always ends with a Done or Error event and
// is then closed.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []core.Message, model string) (<-chan core.StreamEvent, error) {
	payload := map[string]any{
		"model":    model,
		"messages": toWireMessages(messages),
		"stream":   true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	p.setHeaders(request)

	if p.requestLogger != nil {
		p.requestLogger.LogRequest(model, messages)
	}

	httpResp, err := p.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransport, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		if p.requestLogger != nil {
			p.requestLogger.LogError(model, httpResp.StatusCode, bodyBytes)
		}
		return nil, fmt.Errorf("%w: %s: %s", core.ErrTransport, httpResp.Status, strings.TrimSpace(string(bodyBytes)))
	}

	events := make(chan core.StreamEvent, 32)
	go p.readStream(httpResp.Body, events)

	return events, nil
}

func (p *OpenAIProvider) readStream(body io.ReadCloser, events chan<- core.StreamEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			events <- core.Done()
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			events <- core.StreamError(fmt.Sprintf("malformed stream chunk: %v", err))
			return
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Reasoning != "" {
			events <- core.ThinkingDelta(delta.Reasoning)
		}
		if delta.Content != "" {
			events <- core.TextDelta(delta.Content)
		}

		if chunk.Choices[0].FinishReason != "" {
			events <- core.Done()
			return
		}
	}

	if err := scanner.Err(); err != nil {
		events <- core.StreamError(err.Error())
		return
	}

	events <- core.StreamError("stream ended without completion")
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Summarize runs a non-streaming completion and returns the response text.
func (p *OpenAIProvider) Summarize(ctx context.Context, prompt string, model string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	p.setHeaders(request)

	httpResp, err := p.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		if p.requestLogger != nil {
			p.requestLogger.LogError(model, httpResp.StatusCode, bodyBytes)
		}
		return "", fmt.Errorf("%w: %s: %s", core.ErrTransport, httpResp.Status, strings.TrimSpace(string(bodyBytes)))
	}

	var responsePayload map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&responsePayload); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", core.ErrTransport, err)
	}

	return parseCompletionText(responsePayload)
}

func (p *OpenAIProvider) setHeaders(request *http.Request) {
	request.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func toWireMessages(messages []core.Message) []map[string]any {
	wire := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		role := string(message.Role)
		switch message.Role {
		case core.RoleToolInvocation, core.RoleToolResult:
			role = "user"
		}
		wire = append(wire, map[string]any{"role": role, "content": message.Content})
	}

	return wire
}

func parseCompletionText(payload map[string]any) (string, error) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", errors.New("no choices in response")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", errors.New("malformed choice in response")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", errors.New("malformed message in response")
	}

	content, _ := message["content"].(string)
	if content == "" {
		return "", errors.New("empty completion content")
	}

	return content, nil
}

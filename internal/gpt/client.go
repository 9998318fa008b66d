// Package gpt streams assistant replies from an OpenAI-compatible
// chat-completions endpoint, with an offline stand-in and a fallback
// wrapper that share the same streaming contract.
package gpt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
	"github.com/hammamikhairi/astra/internal/observe"
)

// Defaults for the OpenAI chat-completions endpoint.
const (
	DefaultEndpoint    = "https://api.openai.com/v1/chat/completions"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 300
)

// SSE framing.
const (
	dataPrefix = "data:"
	endMessage = "[DONE]"
)

var _ domain.ChatStreamer = (*Client)(nil)

// payload is the request body sent to the chat-completions endpoint.
type payload struct {
	Model       string               `json:"model,omitempty"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Stream      bool                 `json:"stream"`
}

// streamChunk is one "data:" event of a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client streams chat completions. It sets no request timeout: a stalled
// stream ends only when the caller cancels ctx.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	log      *logger.Logger
}

// NewClient creates a streaming chat client.
//   - endpoint: full URL of the chat/completions resource ("" for OpenAI)
//   - apiKey:   bearer token
func NewClient(endpoint, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    DefaultModel,
		http: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return operation + " " + r.URL.Path
			}),
		)},
		log: log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StreamChat posts req and yields content deltas as they arrive.
// Lines that are not "data:" events or do not decode are skipped.
// A transport failure or non-2xx status is yielded as the only error.
func (c *Client) StreamChat(ctx context.Context, req domain.ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := observe.StartSpan(ctx, "chat stream")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", c.model),
			attribute.Int("request.messages", len(req.Messages)),
		)

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
		}

		body, err := json.Marshal(payload{
			Model:       c.model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Stream:      true,
		})
		if err != nil {
			fail(fmt.Errorf("gpt: marshal payload: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			fail(fmt.Errorf("gpt: create request: %w", err))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		c.log.Debug("gpt: POST %s (%d bytes, %d messages)", c.endpoint, len(body), len(req.Messages))

		resp, err := c.http.Do(httpReq)
		if err != nil {
			fail(fmt.Errorf("gpt: request failed: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fail(fmt.Errorf("gpt: %w: %s: %s", domain.ErrChatStatus, resp.Status, strings.TrimSpace(string(msg))))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var fragments, skipped int
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
			if data == endMessage {
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				skipped++
				c.log.Debug("gpt: skipping malformed event: %v", err)
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if fragments == 0 {
				span.AddEvent("received first fragment")
			}
			fragments++
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		span.SetAttributes(attribute.Int("response.fragments", fragments), attribute.Int("response.skipped", skipped))

		if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			fail(fmt.Errorf("gpt: reading stream: %w", err))
			return
		}
		c.log.Debug("gpt: stream done (%d fragments, %d skipped)", fragments, skipped)
	}
}

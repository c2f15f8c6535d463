// Package generator produces SVG markup from a short prompt using a chat
// completion API that is forced to answer through a single tool call.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"

	"svgcache-api/internal/config"
	"svgcache-api/internal/debug"
	"svgcache-api/internal/metrics"
	"svgcache-api/internal/tracing"
	"svgcache-api/internal/upstream"
)

const (
	SystemPrompt = "You are creating SVG files based on filename provided by the user."
	ToolName     = "respond_with_file"

	toolDescription = "Respond with the full contents of the requested file."
)

var (
	// ErrNoToolCall means the first choice carried no tool invocation.
	ErrNoToolCall = errors.New("generator: response contained no tool call")
	// ErrDecode means the tool arguments were not an object with a string content field.
	ErrDecode = errors.New("generator: could not decode tool arguments")
)

// Options tunes a single generation.
type Options struct {
	// Fast selects the cheaper model. No HTTP route sets it yet.
	Fast bool
}

// Generator produces candidate SVG text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

type Client struct {
	api          openai.Client
	model        string
	fastModel    string
	breaker      *upstream.CircuitBreaker
	debugEnabled bool
	debugDir     string
}

// New builds a Client from cfg. A nil breaker disables circuit breaking.
func New(cfg *config.Config, breaker *upstream.CircuitBreaker) *Client {
	timeout := 120 * time.Second
	if cfg.RequestTimeout > 0 {
		timeout = cfg.RequestTimeoutDuration()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &Client{
		api:          openai.NewClient(opts...),
		model:        cfg.OpenAIModel,
		fastModel:    cfg.OpenAIFastModel,
		breaker:      breaker,
		debugEnabled: cfg.DebugEnabled,
		debugDir:     cfg.DebugLogDir,
	}
}

// IsSuccessful keeps bad model output from tripping the breaker; only
// transport and API failures count.
func IsSuccessful(err error) bool {
	return err == nil || errors.Is(err, ErrNoToolCall) || errors.Is(err, ErrDecode)
}

func (c *Client) modelFor(opts Options) string {
	if opts.Fast && c.fastModel != "" {
		return c.fastModel
	}
	return c.model
}

// Generate sends one system and one user message and returns the trimmed
// content argument of the first tool call.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (content string, err error) {
	model := c.modelFor(opts)
	params := buildParams(model, prompt)

	ctx, span := tracing.Start(ctx, "generator.generate",
		attribute.String("llm.model", model),
		attribute.String("svg.prompt", prompt),
	)
	defer func() { tracing.End(span, err) }()

	dbg := debug.New(c.debugEnabled, c.debugDir, prompt)
	dbg.LogUpstreamRequest(model, params)

	start := time.Now()
	content, err = upstream.Execute(c.breaker, func() (string, error) {
		return c.complete(ctx, params, dbg)
	})
	metrics.GenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	dbg.LogSummary(model, err)
	if dir := dbg.Dir(); dir != "" {
		slog.Debug("Generation dump written", "dir", dir)
	}

	if err != nil {
		slog.Warn("Generation failed", "model", model, "prompt", prompt, "duration", time.Since(start), "error", err)
		return "", err
	}
	dbg.LogContent(content)
	slog.Info("Generation finished", "model", model, "prompt", prompt, "duration", time.Since(start), "bytes", len(content))
	return content, nil
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams, dbg *debug.Logger) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return "", ErrNoToolCall
	}

	raw := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	dbg.LogToolArguments(raw)
	content, err := decodeContent(raw)
	if err != nil {
		return "", err
	}
	return TrimSVG(content), nil
}

func buildParams(model, prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(prompt),
		},
		Tools: []openai.ChatCompletionToolParam{
			{
				Function: openai.FunctionDefinitionParam{
					Name:        ToolName,
					Description: openai.String(toolDescription),
					Parameters: openai.FunctionParameters{
						"type": "object",
						"properties": map[string]any{
							"content": map[string]any{
								"type":        "string",
								"description": "The file content.",
							},
						},
						"required": []string{"content"},
					},
				},
			},
		},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		},
	}
}

func decodeContent(raw string) (string, error) {
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	field, ok := args["content"]
	if !ok || string(field) == "null" {
		return "", fmt.Errorf("%w: missing content", ErrDecode)
	}
	var content string
	if err := json.Unmarshal(field, &content); err != nil {
		return "", fmt.Errorf("%w: content is not a string", ErrDecode)
	}
	return content, nil
}

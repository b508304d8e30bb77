// Package claude wraps the Anthropic API behind the two capabilities the
// backend needs: structured paper analysis and grounded chat. Every call
// reports a cost estimate derived from token usage.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/paperstack/backend/internal/domain"
)

// maxGroundingChars bounds how much extracted text is sent per call.
const maxGroundingChars = 120_000

const analysisSystemPrompt = `You analyze academic papers. Respond with a single JSON object and nothing else:
{"summary": string, "rating": integer 1-10, "categories": [string], "tags": [string], "key_findings": [string]}
The summary is 3-5 sentences. The first category is the primary field of the paper.`

type Config struct {
	APIKey             string
	Model              string
	MaxTokens          int
	Timeout            time.Duration
	InputPricePerMTok  float64
	OutputPricePerMTok float64
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	inPrice   float64
	outPrice  float64
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Client{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		inPrice:   cfg.InputPricePerMTok,
		outPrice:  cfg.OutputPricePerMTok,
	}
}

// Analyze produces a structured Analysis of the paper text. Callers own
// degradation policy; this method surfaces errors as-is.
func (c *Client) Analyze(ctx context.Context, text string) (*domain.Analysis, error) {
	reply, cost, err := c.Chat(ctx, analysisSystemPrompt, []Message{
		{Role: "user", Content: truncate(text, maxGroundingChars)},
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		return nil, err
	}
	analysis.CostEstimate = cost
	return analysis, nil
}

// Chat sends the message history with an optional system prompt and returns
// the assistant reply plus the estimated cost of the call.
func (c *Client) Chat(ctx context.Context, system string, messages []Message) (string, float64, error) {
	if len(messages) == 0 {
		return "", 0, fmt.Errorf("messages cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  toMessageParams(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", 0, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", 0, fmt.Errorf("empty response from anthropic API")
	}

	cost := c.estimateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return reply.String(), cost, nil
}

func (c *Client) estimateCost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1e6*c.inPrice + float64(outputTokens)/1e6*c.outPrice
}

func toMessageParams(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return params
}

type analysisPayload struct {
	Summary     string   `json:"summary"`
	Rating      int      `json:"rating"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	KeyFindings []string `json:"key_findings"`
}

// parseAnalysis extracts the JSON object from a model reply, tolerating
// surrounding prose and code fences.
func parseAnalysis(reply string) (*domain.Analysis, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in analysis reply")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(reply[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("malformed analysis JSON: %w", err)
	}

	rating := payload.Rating
	if rating < 1 {
		rating = 1
	}
	if rating > 10 {
		rating = 10
	}

	category := domain.DefaultCategory
	if len(payload.Categories) > 0 && strings.TrimSpace(payload.Categories[0]) != "" {
		category = strings.TrimSpace(payload.Categories[0])
	}

	return &domain.Analysis{
		Summary:     strings.TrimSpace(payload.Summary),
		Rating:      rating,
		Category:    category,
		Tags:        payload.Tags,
		KeyFindings: payload.KeyFindings,
	}, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

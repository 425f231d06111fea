// Package augment provides the optional model-backed enrichment capability.
// It is strictly best-effort: every failure path reports "no result" and the
// pipeline continues on heuristics alone.
package augment

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	maxSeedChars     = 4000
	maxOutputTokens  = 1024
	augmentTemp      = 0.0
	augmentMethodTag = "model-augment"
)

const systemPrompt = `You extract structured data from web pages. Given a seed
capsule (already-known fields) and page text, return ONLY a JSON object of
additional fields you are confident about (name, description, brand, sku,
price, priceCurrency, email, telephone, address, author, datePublished).
Never repeat a field already present in the seed. Be conservative: omit
anything uncertain. Respond with the JSON object and nothing else.`

// Client is the Anthropic-backed implementation of capsule.Augmenter.
type Client struct {
	sdk    sdk.Client
	model  string
	logger *zap.Logger
}

// New builds a Client. The model may be empty, in which case a default
// fast model is used.
func New(apiKey, model string, logger *zap.Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		sdk:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

// TryAugment sends the seed capsule plus truncated page content to the model
// and returns any parseable field additions. It never returns an error;
// a network failure or malformed response simply yields ok=false.
func (c *Client) TryAugment(ctx context.Context, seed capsule.Envelope, visibleText string) (map[string]capsule.InferredField, bool) {
	prompt, err := buildPrompt(seed, visibleText)
	if err != nil {
		return nil, false
	}

	msg, err := c.sdk.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxOutputTokens,
		Temperature: sdk.Float(augmentTemp),
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.logger.Debug("model augmentation call failed",
			zap.String("url", seed.SourceURL), zap.Error(err))
		return nil, false
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	fields, ok := parseFields(text.String())
	if !ok {
		c.logger.Debug("model augmentation returned no usable fields",
			zap.String("url", seed.SourceURL))
	}
	return fields, ok
}

func buildPrompt(seed capsule.Envelope, visibleText string) (string, error) {
	known := map[string]any{
		"@type":   seed.Type,
		"url":     seed.SourceURL,
		"content": seed.Content,
	}
	seedJSON, err := json.Marshal(known)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Seed capsule:\n")
	b.Write(seedJSON)
	b.WriteString("\n\nPage text (truncated):\n")
	b.WriteString(truncate(visibleText, maxSeedChars))
	return b.String(), nil
}

// parseFields decodes a JSON object from the model reply, tolerating
// surrounding prose by slicing to the outermost braces.
func parseFields(reply string) (map[string]capsule.InferredField, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}

	fields := make(map[string]capsule.InferredField, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		fields[key] = capsule.InferredField{
			Value:  value,
			Source: capsule.SourceModel,
			Method: augmentMethodTag,
		}
	}
	return fields, len(fields) > 0
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = maxSeedChars
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

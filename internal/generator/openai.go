package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAI implements Generator on the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds OpenAI client configuration.
type OpenAIConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string
	// BaseURL overrides the API endpoint (for proxies or compatible servers).
	BaseURL string
	// Model is the default model when a request does not name one.
	Model string
}

// NewOpenAI creates an OpenAI-backed generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (g *OpenAI) Name() string { return "openai" }

// GenerateText produces free-form text for the prompt.
func (g *OpenAI) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.buildRequest(req, nil))
	if err != nil {
		return "", textErr(g.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", textErr(g.Name(), errors.New("empty response"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateObject produces a JSON object conforming to req.Schema. The model
// runs in JSON mode with the schema embedded in the system prompt; the
// response is validated before being returned.
func (g *OpenAI) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.buildRequest(req.TextRequest, req.Schema))
	if err != nil {
		return nil, objectErr(g.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, objectErr(g.Name(), errors.New("empty response"))
	}

	raw := json.RawMessage(strings.TrimSpace(resp.Choices[0].Message.Content))
	if req.Schema != nil {
		if violations := req.Schema.Validate(raw); len(violations) > 0 {
			return nil, objectErr(g.Name(), fmt.Errorf("response violates schema: %s", strings.Join(violations, "; ")))
		}
	}

	return raw, nil
}

func (g *OpenAI) buildRequest(req TextRequest, schema *Schema) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = g.model
	}

	system := req.System
	if schema != nil {
		schemaJSON, _ := json.Marshal(schema)
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single JSON object conforming to this JSON Schema:\n" + string(schemaJSON)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if schema != nil {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

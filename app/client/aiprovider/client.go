// Package aiprovider talks to an OpenAI-compatible completion API and maps
// tool calls back onto the action catalog.
package aiprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"telemind/app/config"
	"telemind/app/store"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultTemperature = 1
	maxReasonDuration  = 30 * time.Second
	maxCompletionToken = 10000
)

// ActionSpec describes one invocable action offered to the model.
type ActionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Result is one reasoning cycle's output: optional free text plus the
// requested action calls. Calls naming unknown actions are already dropped.
type Result struct {
	Text  string
	Calls []store.ActionCall
}

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	clientConfig := openai.DefaultConfig(cfg.OpenAI.Token)
	clientConfig.BaseURL = cfg.OpenAI.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAI.Model,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, actions []ActionSpec) (*Result, error) {
	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature:         defaultTemperature,
		MaxCompletionTokens: maxCompletionToken,
	}

	if len(actions) > 0 {
		request.Tools = toTools(actions)
		request.ToolChoice = "auto"
	}

	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	aiResponse, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, oops.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return nil, oops.Errorf("no chat completion found")
	}

	message := aiResponse.Choices[0].Message

	return &Result{
		Text:  strings.TrimSpace(message.Content),
		Calls: extractCalls(message.ToolCalls, actions),
	}, nil
}

func toTools(actions []ActionSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(actions))

	for _, action := range actions {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        action.Name,
				Description: action.Description,
				Parameters:  action.Parameters,
			},
		})
	}

	return result
}

// extractCalls keeps only calls whose names exist in the offered catalog.
// Model output is not trusted to name real actions.
func extractCalls(toolCalls []openai.ToolCall, actions []ActionSpec) []store.ActionCall {
	known := make(map[string]struct{}, len(actions))
	for _, action := range actions {
		known[action.Name] = struct{}{}
	}

	var result []store.ActionCall
	for _, call := range toolCalls {
		if _, ok := known[call.Function.Name]; !ok {
			continue
		}

		result = append(result, store.ActionCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return result
}

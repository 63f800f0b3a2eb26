package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

const systemPrompt = `You are a clinical message triage assistant for a primary care practice.
You receive one normalized clinical message as JSON and decide how the practice should handle it.
Respond with a single JSON object and nothing else, with these fields:
  "reasoning": short explanation of your decision,
  "action": one of "page_provider", "notify_provider", "queue_for_staff", "file",
  "response_text": the text to show practice staff,
  "requires_review": boolean, true when a human must confirm before anything is sent,
  "urgency": one of "routine", "urgent", "stat", "critical".
Never downgrade a critical message: if the input urgency is "critical", yours must be "critical".`

// OpenAIEngine calls the OpenAI chat completion API to triage canonical
// messages.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine constructs an OpenAI-backed reasoning engine. The model
// defaults to gpt-4o-mini when empty.
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Decide implements Engine. The canonical message is serialized as the user
// turn and the model's JSON reply is decoded into a Decision. The caller
// validates the decision; this method only surfaces transport and decode
// failures.
func (e *OpenAIEngine) Decide(ctx context.Context, msg *canonical.Message) (*Decision, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("reasoning: marshal message: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("reasoning: empty completion response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var decision Decision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return nil, fmt.Errorf("reasoning: decode decision: %w", err)
	}
	return &decision, nil
}

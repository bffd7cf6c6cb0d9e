package openrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
)

var _ model.BaseChatModel = (*SDKChatModel)(nil)

// SDKChatModel adapts the OpenAI SDK chat completion endpoint to eino's
// BaseChatModel so it can sit in the same compose graphs.
type SDKChatModel struct {
	client      *openaisdk.Client
	model       string
	temperature float32
	maxTokens   int
}

func (m *SDKChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(m.model),
		Messages:    toSDKMessages(input),
		Temperature: openaisdk.Float(float64(m.temperature)),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(m.maxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openrouter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openrouter: chat completion returned no choices")
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func (m *SDKChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("openrouter: streaming is not supported by the sdk driver")
}

func toSDKMessages(input []*schema.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		default:
			out = append(out, openaisdk.UserMessage(msg.Content))
		}
	}
	return out
}

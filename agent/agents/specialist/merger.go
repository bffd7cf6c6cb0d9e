package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
)

const finalAnswerMarker = "Final Answer:"

type mergerImpl struct {
	runner compose.Runnable[map[string]any, string]
}

func newMerger(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*mergerImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: orchestrator", contractx.ErrPromptMissing)
	}
	runner, err := compileTextGraph(ctx, chatModel, systemPrompt, "orchestrator.merge_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile merge graph: %v", contractx.ErrModelInvoke, err)
	}
	return &mergerImpl{runner: runner}, nil
}

// Merge wraps the draft with an opening and closing, or answers directly
// when there is no draft. An empty model reply falls back to the draft.
func (m *mergerImpl) Merge(ctx context.Context, req contractx.MergeRequest) (string, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"user_message": req.UserMessage,
		"intent":       req.Intent,
		"draft":        req.Draft,
		"memory":       summarizeMemory(req.Memory),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal merge payload: %v", contractx.ErrValidation, err)
	}

	out, err := m.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return "", fmt.Errorf("%w: merge invoke: %v", contractx.ErrModelInvoke, err)
	}

	reply := strings.TrimSpace(finalAnswer(out))
	if reply == "" {
		reply = strings.TrimSpace(req.Draft)
		if reply != "" {
			log.Ctx(ctx).Warn().Msg("merge returned empty reply, sending draft as is")
		}
	}
	if reply == "" {
		return "", fmt.Errorf("%w: merged reply is empty", contractx.ErrValidation)
	}
	return reply, nil
}

// finalAnswer keeps only the text after the last "Final Answer:" marker; text
// without the marker is returned whole.
func finalAnswer(text string) string {
	idx := strings.LastIndex(text, finalAnswerMarker)
	if idx < 0 {
		return text
	}
	return text[idx+len(finalAnswerMarker):]
}

package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

// responderImpl is a stateless text generator conditioned on shared memory.
type responderImpl struct {
	agentType contractx.AgentType
	runner    compose.Runnable[map[string]any, string]
}

func newResponder(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (*responderImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, agentType)
	}
	runner, err := compileTextGraph(ctx, chatModel, systemPrompt, string(agentType)+".model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s graph: %v", contractx.ErrModelInvoke, agentType, err)
	}
	return &responderImpl{agentType: agentType, runner: runner}, nil
}

func (r *responderImpl) Respond(ctx context.Context, req contractx.ResponderRequest) (contractx.ResponderResponse, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"user_message": req.UserMessage,
		"memory":       summarizeMemory(req.Memory),
	}
	if req.Draft != "" {
		payload["draft"] = req.Draft
	}
	if v := req.Memory.Entities.Get(statex.EntityObjectionType); v != "" && r.agentType == contractx.AgentTypeObjection {
		payload["objection_type"] = v
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: marshal %s payload: %v", contractx.ErrValidation, r.agentType, err)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: %s invoke: %v", contractx.ErrModelInvoke, r.agentType, err)
	}

	draft := strings.TrimSpace(finalAnswer(out))
	if draft == "" {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: %s returned empty draft", contractx.ErrSchemaViolation, r.agentType)
	}
	return contractx.ResponderResponse{Draft: draft}, nil
}

func summarizeMemory(v statex.MemoryView) map[string]any {
	turns := make([]map[string]string, 0, len(v.Turns))
	for _, t := range v.Turns {
		turns = append(turns, map[string]string{"role": string(t.Role), "text": t.Text})
	}
	entities := v.Entities
	if entities == nil {
		entities = statex.Entities{}
	}
	return map[string]any{
		"turns":    turns,
		"entities": entities,
	}
}

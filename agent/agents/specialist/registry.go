package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	llmx "github.com/tanpawarit/asic-salesbot/agent/llm"
	promptx "github.com/tanpawarit/asic-salesbot/agent/prompt"
)

// Registry holds every model-backed agent of the assistant.
type Registry struct {
	classifier contractx.Classifier
	responders map[contractx.Intent]contractx.Responder
	merger     contractx.Merger
	phraser    contractx.Responder
}

func (r *Registry) Classifier() contractx.Classifier {
	return r.classifier
}

func (r *Registry) Responder(intent contractx.Intent) (contractx.Responder, bool) {
	resp, ok := r.responders[intent]
	return resp, ok
}

func (r *Registry) Merger() contractx.Merger {
	return r.merger
}

// CatalogPhraser returns the model that rewrites catalog drafts.
func (r *Registry) CatalogPhraser() contractx.Responder {
	return r.phraser
}

var _ contractx.Registry = (*Registry)(nil)

// ModelFactory builds a chat model per agent.
type ModelFactory func(ctx context.Context, agentType contractx.AgentType) (einomodel.BaseChatModel, error)

func NewRegistry(ctx context.Context, cfg llmx.Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewRegistryWithModels(ctx, promptx.LoadPromptSet(), cfg.ChatModelFor)
}

// NewRegistryWithModels wires every agent from prompts and a model factory.
func NewRegistryWithModels(ctx context.Context, prompts promptx.PromptSet, models ModelFactory) (*Registry, error) {
	if missing := prompts.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, strings.Join(missing, ", "))
	}

	build := func(agentType contractx.AgentType) (einomodel.BaseChatModel, error) {
		m, err := models(ctx, agentType)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("%w: nil model for %s", contractx.ErrModelInvoke, agentType)
		}
		return m, nil
	}

	classifierModel, err := build(contractx.AgentTypeClassifier)
	if err != nil {
		return nil, err
	}
	classifier, err := newClassifier(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}

	orchestratorModel, err := build(contractx.AgentTypeOrchestrator)
	if err != nil {
		return nil, err
	}
	merger, err := newMerger(ctx, orchestratorModel, prompts.Orchestrator)
	if err != nil {
		return nil, err
	}

	responders := make(map[contractx.Intent]contractx.Responder, 3)
	for _, entry := range []struct {
		intent contractx.Intent
		prompt string
	}{
		{contractx.IntentObjection, prompts.Objection},
		{contractx.IntentPresentation, prompts.Presentation},
		{contractx.IntentScheduleCall, prompts.ScheduleCall},
	} {
		agentType := entry.intent.AgentType()
		m, err := build(agentType)
		if err != nil {
			return nil, err
		}
		r, err := newResponder(ctx, agentType, m, entry.prompt)
		if err != nil {
			return nil, err
		}
		responders[entry.intent] = r
	}

	catalogModel, err := build(contractx.AgentTypeCatalog)
	if err != nil {
		return nil, err
	}
	phraser, err := newResponder(ctx, contractx.AgentTypeCatalog, catalogModel, prompts.Catalog)
	if err != nil {
		return nil, err
	}

	return &Registry{
		classifier: classifier,
		responders: responders,
		merger:     merger,
		phraser:    phraser,
	}, nil
}

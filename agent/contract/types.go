package contract

import (
	"strings"

	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

type AgentType string

const (
	AgentTypeOrchestrator AgentType = "orchestrator"
	AgentTypeClassifier   AgentType = "classifier"
	AgentTypeCatalog      AgentType = "catalog"
	AgentTypeObjection    AgentType = "objection"
	AgentTypePresentation AgentType = "presentation"
	AgentTypeScheduleCall AgentType = "schedule_call"
)

// Intent is the closed set of tags the classifier may emit.
type Intent string

const (
	IntentCatalogQuery Intent = "catalog_query"
	IntentObjection    Intent = "objection"
	IntentPresentation Intent = "presentation"
	IntentScheduleCall Intent = "schedule_call"
	IntentGreeting     Intent = "greeting"
	IntentOther        Intent = "other"
)

var Intents = []Intent{
	IntentCatalogQuery,
	IntentObjection,
	IntentPresentation,
	IntentScheduleCall,
	IntentGreeting,
	IntentOther,
}

var allowedEntities = map[Intent][]statex.EntityKey{
	IntentCatalogQuery: {
		statex.EntityBrand,
		statex.EntityModel,
		statex.EntitySeries,
		statex.EntityHashRate,
		statex.EntityBudget,
		statex.EntityCondition,
		statex.EntitySelection,
	},
	IntentObjection:    {statex.EntityObjectionType},
	IntentPresentation: nil,
	IntentScheduleCall: {
		statex.EntityPhone,
		statex.EntityTelegram,
		statex.EntityEmail,
		statex.EntityPreferredTime,
		statex.EntityName,
	},
	IntentGreeting: {statex.EntityName},
	IntentOther:    {statex.EntityName},
}

// ParseIntent maps a raw tag onto the closed set. Unknown tags report false.
func ParseIntent(raw string) (Intent, bool) {
	tag := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allowedEntities[tag]; ok {
		return tag, true
	}
	return IntentOther, false
}

// AllowedEntities lists the entity keys an intent may carry.
func (i Intent) AllowedEntities() []statex.EntityKey {
	return allowedEntities[i]
}

func (i Intent) Allows(key statex.EntityKey) bool {
	for _, k := range allowedEntities[i] {
		if k == key {
			return true
		}
	}
	return false
}

// AgentType returns the responder that serves the intent, or "" when the
// orchestrator answers directly.
func (i Intent) AgentType() AgentType {
	switch i {
	case IntentCatalogQuery:
		return AgentTypeCatalog
	case IntentObjection:
		return AgentTypeObjection
	case IntentPresentation:
		return AgentTypePresentation
	case IntentScheduleCall:
		return AgentTypeScheduleCall
	default:
		return ""
	}
}

type Classification struct {
	Intent   Intent          `json:"intent"`
	Entities statex.Entities `json:"entities"`
}

type ClassifyRequest struct {
	UserMessage string
	Recent      []statex.Turn
	Known       statex.Entities
}

type ResponderRequest struct {
	UserMessage string
	Intent      Intent
	Memory      statex.MemoryView
	// Draft is set when the responder only rephrases an already computed answer.
	Draft string
}

type ResponderResponse struct {
	Draft string
}

type CatalogRequest struct {
	UserMessage string
	Delta       statex.Entities
	Memory      statex.MemoryView
	Session     *statex.CatalogSession
}

type CatalogMode string

const (
	CatalogModeGrouped  CatalogMode = "grouped"
	CatalogModeListed   CatalogMode = "listed"
	CatalogModeSelected CatalogMode = "selected"
	CatalogModeEmpty    CatalogMode = "empty"
)

type CatalogResponse struct {
	Draft string
	Mode  CatalogMode
	// Listed is the number of candidates behind the draft.
	Listed  int
	Unknown []int
}

type MergeRequest struct {
	UserMessage string
	Intent      Intent
	Draft       string
	Memory      statex.MemoryView
}

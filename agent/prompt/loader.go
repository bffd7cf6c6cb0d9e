package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/orchestrator.txt
	orchestratorRaw string

	//go:embed template/catalog.txt
	catalogRaw string

	//go:embed template/objection.txt
	objectionRaw string

	//go:embed template/presentation.txt
	presentationRaw string

	//go:embed template/schedule_call.txt
	scheduleCallRaw string
)

// PromptSet holds loaded prompt content. Templates use eino FString syntax,
// so literal braces are doubled.
type PromptSet struct {
	Classifier   string
	Orchestrator string
	Catalog      string
	Objection    string
	Presentation string
	ScheduleCall string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:   strings.TrimSpace(classifierRaw),
		Orchestrator: strings.TrimSpace(orchestratorRaw),
		Catalog:      strings.TrimSpace(catalogRaw),
		Objection:    strings.TrimSpace(objectionRaw),
		Presentation: strings.TrimSpace(presentationRaw),
		ScheduleCall: strings.TrimSpace(scheduleCallRaw),
	}
}

// Missing returns the names of empty prompts.
func (p PromptSet) Missing() []string {
	var out []string
	for _, kv := range [][2]string{
		{"classifier", p.Classifier},
		{"orchestrator", p.Orchestrator},
		{"catalog", p.Catalog},
		{"objection", p.Objection},
		{"presentation", p.Presentation},
		{"schedule_call", p.ScheduleCall},
	} {
		if kv[1] == "" {
			out = append(out, kv[0])
		}
	}
	return out
}

package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

func ApplyMemory(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Reply) == "" {
		return nil, fmt.Errorf("%w: reply is empty", contractx.ErrValidation)
	}

	mem := &in.Session.Memory
	mem.Append(statex.RoleUser, in.Text, in.Now)
	mem.Append(statex.RoleAssistant, in.Reply, in.Now)
	mem.Remember(in.Classification.Entities)
	return in, nil
}

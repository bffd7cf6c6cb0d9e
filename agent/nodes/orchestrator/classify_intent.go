package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
)

func ClassifyIntent(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
	historyExchanges int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	view := in.Session.Memory.Window(historyExchanges)
	out, err := classifier.Classify(ctx, contractx.ClassifyRequest{
		UserMessage: in.Text,
		Recent:      view.Turns,
		Known:       view.Entities,
	})
	if err != nil {
		return nil, err
	}

	// Classifier output is untrusted; re-check the closed set here.
	intent, ok := contractx.ParseIntent(string(out.Intent))
	if !ok {
		intent = contractx.IntentOther
	}
	out.Intent = intent
	for k := range out.Entities {
		if !intent.Allows(k) {
			delete(out.Entities, k)
		}
	}

	in.Classification = out
	return in, nil
}

// Route names the dispatch node for the classified intent.
func Route(in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	switch in.Classification.Intent {
	case contractx.IntentCatalogQuery:
		return NodeDispatchCatalog, nil
	case contractx.IntentObjection:
		return NodeDispatchObjection, nil
	case contractx.IntentPresentation:
		return NodeDispatchPresentation, nil
	case contractx.IntentScheduleCall:
		return NodeDispatchScheduleCall, nil
	default:
		return NodeDispatchDirect, nil
	}
}

const (
	NodeDispatchCatalog      = "dispatch_catalog"
	NodeDispatchObjection    = "dispatch_objection"
	NodeDispatchPresentation = "dispatch_presentation"
	NodeDispatchScheduleCall = "dispatch_schedule_call"
	NodeDispatchDirect       = "dispatch_direct"
)

var DispatchNodes = []string{
	NodeDispatchCatalog,
	NodeDispatchObjection,
	NodeDispatchPresentation,
	NodeDispatchScheduleCall,
	NodeDispatchDirect,
}

package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

// DispatchCatalog hands the catalog agent the reduced window and the
// session's own catalog context.
func DispatchCatalog(
	ctx context.Context,
	in *GraphState,
	agent contractx.CatalogAgent,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	resp, err := agent.Handle(ctx, contractx.CatalogRequest{
		UserMessage: in.Text,
		Delta:       in.Classification.Entities,
		Memory:      in.Session.Memory.Window(statex.CatalogWindowExchanges),
		Session:     &in.Session.Catalog,
	})
	if err != nil {
		return nil, err
	}

	in.Catalog = &resp
	in.Draft = strings.TrimSpace(resp.Draft)
	return in, nil
}

func DispatchResponder(
	ctx context.Context,
	in *GraphState,
	models contractx.Registry,
	intent contractx.Intent,
	historyExchanges int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	responder, ok := models.Responder(intent)
	if !ok || responder == nil {
		return nil, fmt.Errorf("%w: no responder for intent=%s", contractx.ErrValidation, intent)
	}

	resp, err := responder.Respond(ctx, contractx.ResponderRequest{
		UserMessage: in.Text,
		Intent:      intent,
		Memory:      turnView(in, historyExchanges),
	})
	if err != nil {
		return nil, err
	}

	in.Draft = strings.TrimSpace(resp.Draft)
	return in, nil
}

// DispatchDirect leaves the draft empty; the merger answers on its own.
func DispatchDirect(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Draft = ""
	return in, nil
}

// turnView is the memory window plus this turn's entity delta, so a contact
// given in the current message is already visible.
func turnView(in *GraphState, historyExchanges int) statex.MemoryView {
	view := in.Session.Memory.Window(historyExchanges)
	view.Entities.Merge(in.Classification.Entities)
	return view
}

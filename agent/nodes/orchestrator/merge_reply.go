package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
)

func MergeReply(
	ctx context.Context,
	in *GraphState,
	merger contractx.Merger,
	historyExchanges int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	reply, err := merger.Merge(ctx, contractx.MergeRequest{
		UserMessage: in.Text,
		Intent:      in.Classification.Intent,
		Draft:       in.Draft,
		Memory:      turnView(in, historyExchanges),
	})
	if err != nil {
		return nil, err
	}
	in.Reply = reply
	return in, nil
}

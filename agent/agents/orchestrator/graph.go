package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	nodex "github.com/tanpawarit/asic-salesbot/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store, o.channelType)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_state: %w", err)
	}

	if err := graph.AddLambdaNode("classify_intent",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyIntent(ctx, in, o.models.Classifier(), o.historyExchanges)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_intent: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.NodeDispatchCatalog,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchCatalog(ctx, in, o.catalog)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeDispatchCatalog, err)
	}

	responders := map[string]contractx.Intent{
		nodex.NodeDispatchObjection:    contractx.IntentObjection,
		nodex.NodeDispatchPresentation: contractx.IntentPresentation,
		nodex.NodeDispatchScheduleCall: contractx.IntentScheduleCall,
	}
	for name, intent := range responders {
		intent := intent
		if err := graph.AddLambdaNode(name,
			compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.DispatchResponder(ctx, in, o.models, intent, o.historyExchanges)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}

	if err := graph.AddLambdaNode(nodex.NodeDispatchDirect,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchDirect(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeDispatchDirect, err)
	}

	if err := graph.AddLambdaNode("merge_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.MergeReply(ctx, in, o.models.Merger(), o.historyExchanges)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node merge_reply: %w", err)
	}

	if err := graph.AddLambdaNode("apply_memory",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyMemory(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_memory: %w", err)
	}

	if err := graph.AddLambdaNode("validate_and_save_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateAndSaveState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_and_save_state: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	endNodes := make(map[string]bool, len(nodex.DispatchNodes))
	for _, name := range nodex.DispatchNodes {
		endNodes[name] = true
	}
	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.Route(in)
		},
		endNodes,
	)
	if err := graph.AddBranch("classify_intent", branch); err != nil {
		return nil, fmt.Errorf("add dispatch branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_state"},
		{"load_or_create_state", "classify_intent"},
	}
	for _, name := range nodex.DispatchNodes {
		edges = append(edges, [2]string{name, "merge_reply"})
	}
	edges = append(edges,
		[2]string{"merge_reply", "apply_memory"},
		[2]string{"apply_memory", "validate_and_save_state"},
		[2]string{"validate_and_save_state", "finalize_reply"},
		[2]string{"finalize_reply", compose.END},
	)

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

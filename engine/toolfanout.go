package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agentrt/neuronloop/hooks"
	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/tools"
)

// executeTools runs the fan-out for calls (§4.E.3), honoring
// ParallelToolExecution when there are at least two calls. The returned
// slice preserves the original ToolUse document order regardless of
// completion order.
func (r *run) executeTools(ctx context.Context, tc *model.ToolContext, calls []model.ToolUse) ([]model.ToolResult, *LoopError) {
	if !r.eng.Config.ParallelToolExecution || len(calls) < 2 {
		results := make([]model.ToolResult, len(calls))
		for i, call := range calls {
			res, err := r.executeSingleTool(ctx, tc, call)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	// Parallel mode: a failure in any concurrent call aborts the loop and
	// cooperatively cancels other in-flight calls by cancelling the shared
	// derived context (§4.E.3 "Parallel mode").
	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]model.ToolResult, len(calls))
	errs := make([]*LoopError, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolUse) {
			defer wg.Done()
			res, err := r.executeSingleTool(fanCtx, tc, call)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = res
		}(i, call)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// executeSingleTool runs the pre-hook/execute/post-hook sequence for a
// single ToolUse (§4.E.3 steps 1-4). Hook invocations for a single call
// remain ordered pre -> execute -> post even when sibling calls run
// concurrently.
func (r *run) executeSingleTool(ctx context.Context, tc *model.ToolContext, call model.ToolUse) (model.ToolResult, *LoopError) {
	input := call.Input

	action, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PreToolExecution, ToolName: call.Name, ToolInput: input})
	if err != nil {
		return model.ToolResult{}, HookTerminated(err.Error())
	}
	switch action.Kind {
	case hooks.Terminate:
		return model.ToolResult{}, HookTerminated(action.Reason)
	case hooks.Skip:
		return model.ToolResult{
			ToolUseID: call.ID,
			IsError:   true,
			Content:   []model.ContentItem{model.ItemText{Value: "Tool call skipped: " + action.Reason}},
		}, nil
	case hooks.ModifyToolInput:
		input = action.NewInput
	}

	output, callErr := r.invokeTool(ctx, call.Name, input, tc)
	if callErr != nil {
		if te, ok := tools.AsToolError(callErr); ok && te.Kind == tools.KindModelRetry {
			output = model.ToolOutput{
				IsError: true,
				Content: []model.ContentItem{model.ItemText{Value: te.Hint}},
			}
		} else {
			return model.ToolResult{}, ToolFailed(callErr)
		}
	}

	postAction, err := r.eng.Hooks.Fire(hooks.Event{Kind: hooks.PostToolExecution, ToolName: call.Name, ToolOutput: &output})
	if err != nil {
		return model.ToolResult{}, HookTerminated(err.Error())
	}
	switch postAction.Kind {
	case hooks.Terminate:
		return model.ToolResult{}, HookTerminated(postAction.Reason)
	case hooks.ModifyToolOutput:
		if postAction.NewOutput != nil {
			output = *postAction.NewOutput
		}
	}

	return model.ToolResult{
		ToolUseID: call.ID,
		Content:   output.Content,
		IsError:   output.IsError,
	}, nil
}

func (r *run) invokeTool(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error) {
	if r.eng.Durable != nil {
		return r.eng.Durable.ExecuteTool(ctx, name, input, tc, r.eng.activityOptions())
	}
	return r.eng.Registry.Execute(ctx, name, input, tc)
}

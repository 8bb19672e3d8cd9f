package durable

import (
	"context"
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/agentrt/neuronloop/model"
)

// TemporalActivities names the two activity functions a Temporal worker
// must register for TemporalContext to route calls through: one that
// performs the actual provider completion, one that performs the actual
// tool invocation. Registered activities run outside the deterministic
// workflow goroutine, matching the contract that the engine itself stays
// oblivious to how (or whether) calls are journaled.
type TemporalActivities struct {
	CompleteLLM func(ctx context.Context, request model.CompletionRequest) (model.CompletionResponse, error)
	CallTool    func(ctx context.Context, name string, input json.RawMessage, tc *model.ToolContext) (model.ToolOutput, error)
}

// TemporalContext implements Context atop a running Temporal workflow,
// grounded on the teacher's Engine/WorkflowContext/Future/
// ActivityDefinition abstraction (_teacher_ref/agent/engine/engine.go),
// adapted so the two activities are this engine's own CallProvider/
// ExecuteTool operations rather than goa-ai's planner activities.
type TemporalContext struct {
	WF workflow.Context
}

func toTemporalOptions(opts ActivityOptions) workflow.ActivityOptions {
	if opts.StartToCloseTimeout <= 0 {
		opts.StartToCloseTimeout = DefaultActivityTimeout
	}
	to := workflow.ActivityOptions{
		StartToCloseTimeout: opts.StartToCloseTimeout,
		HeartbeatTimeout:    opts.HeartbeatTimeout,
	}
	if opts.RetryPolicy != nil {
		to.RetryPolicy = &temporal.RetryPolicy{
			MaximumAttempts:    int32(opts.RetryPolicy.MaximumAttempts),
			InitialInterval:    opts.RetryPolicy.InitialInterval,
			BackoffCoefficient: opts.RetryPolicy.BackoffFactor,
		}
	}
	return to
}

// activityNameCompleteLLM / activityNameCallTool are the registration
// names a worker must use for workflow.ExecuteActivity to resolve them by
// name (rather than by function reference, which would require this
// package to import the host's concrete activity implementations).
const (
	activityNameCompleteLLM = "neuronloop.CompleteLLM"
	activityNameCallTool    = "neuronloop.CallTool"
)

func (t *TemporalContext) ExecuteLLMCall(_ context.Context, request model.CompletionRequest, opts ActivityOptions) (model.CompletionResponse, error) {
	ctx := workflow.WithActivityOptions(t.WF, toTemporalOptions(opts))
	future := workflow.ExecuteActivity(ctx, activityNameCompleteLLM, request)
	var resp model.CompletionResponse
	if err := future.Get(ctx, &resp); err != nil {
		return model.CompletionResponse{}, &Error{Message: "durable LLM call failed", Cause: err}
	}
	return resp, nil
}

func (t *TemporalContext) ExecuteTool(_ context.Context, name string, input json.RawMessage, tc *model.ToolContext, opts ActivityOptions) (model.ToolOutput, error) {
	ctx := workflow.WithActivityOptions(t.WF, toTemporalOptions(opts))
	future := workflow.ExecuteActivity(ctx, activityNameCallTool, name, input, tc)
	var out model.ToolOutput
	if err := future.Get(ctx, &out); err != nil {
		return model.ToolOutput{}, &Error{Message: "durable tool call failed", Cause: err}
	}
	return out, nil
}

func (t *TemporalContext) WaitForSignal(_ context.Context, name string, timeout time.Duration) (json.RawMessage, bool, error) {
	ch := workflow.GetSignalChannel(t.WF, name)
	var payload json.RawMessage
	selector := workflow.NewSelector(t.WF)
	received := false
	selector.AddReceive(ch, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(t.WF, &payload)
		received = true
	})
	timer := workflow.NewTimer(t.WF, timeout)
	selector.AddFuture(timer, func(f workflow.Future) {})
	selector.Select(t.WF)
	return payload, received, nil
}

func (t *TemporalContext) Sleep(_ context.Context, d time.Duration) error {
	return workflow.Sleep(t.WF, d)
}

func (t *TemporalContext) Now(_ context.Context) time.Time {
	return workflow.Now(t.WF)
}

func (t *TemporalContext) ShouldContinueAsNew(_ context.Context) bool {
	return t.WF.Err() == nil && workflow.GetInfo(t.WF).GetContinueAsNewSuggested()
}

func (t *TemporalContext) ContinueAsNew(_ context.Context, state any) error {
	return workflow.NewContinueAsNewError(t.WF, workflow.GetInfo(t.WF).WorkflowType.Name, state)
}

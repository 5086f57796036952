// Package executor implements the Agent Executor (C4): the tool-calling
// loop that drives one task turn against a Provider, emitting events on the
// Event Channel (C1) for the Result Manager (C3) to apply. Grounded on the
// teacher's runtime/agent/runtime/tool_calls.go batch-dispatch pattern
// (schedule concurrently, collect as complete, merge in original call
// order), simplified from Temporal activities/child workflows to an
// in-process goroutine fan-in since this module has no workflow engine
// backing tool execution itself.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentfleet/orchestrator/eventchan"
	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/telemetry"
)

// Tool is a single callable tool exposed to the Provider.
type Tool interface {
	Spec() model.ToolSpec
	Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// PermissionDecision is the outcome of a permission callback consulted
// before invoking a tool (spec.md §4.4 "tool-loop policies").
type PermissionDecision int

const (
	// PermissionAllowOnce permits this single invocation.
	PermissionAllowOnce PermissionDecision = iota
	// PermissionAlwaysAllow permits this invocation. The Executor keeps no
	// record of the decision: the callback is consulted again for every
	// later invocation of the same tool.
	PermissionAlwaysAllow
	// PermissionDeny rejects the invocation; the tool result is an error.
	PermissionDeny
	// PermissionRequiresConfirmation suspends the loop until a matching
	// Confirm call arrives via the ConfirmationGate.
	PermissionRequiresConfirmation
)

// PermissionCallback decides whether a tool call may proceed.
type PermissionCallback func(ctx context.Context, toolName string, input json.RawMessage) PermissionDecision

// AlwaysAllow is a PermissionCallback that never suspends or denies;
// suitable for tests and deployments that do not gate tool execution.
func AlwaysAllow(context.Context, string, json.RawMessage) PermissionDecision {
	return PermissionAllowOnce
}

// ExecContext carries the inputs to one Execute call (spec.md §4.4
// `context = {user_message, task_id, context_id, task?, reference_tasks,
// requested_extensions}`).
type ExecContext struct {
	UserMessage         model.Message
	TaskID              task.ID
	ContextID           task.ContextID
	History             []model.Message
	ReferenceTaskIDs    []task.ID
	RequestedExtensions []string
	System              string
}

// Executor drives the tool-calling loop for one task turn.
type Executor struct {
	provider   provider.Provider
	tools      map[string]Tool
	permission PermissionCallback
	confirm    *ConfirmationGate
	logger     telemetry.Logger
	tracer     telemetry.Tracer
}

// New constructs an Executor. permission defaults to AlwaysAllow when nil.
func New(p provider.Provider, tools []Tool, permission PermissionCallback, logger telemetry.Logger, tracer telemetry.Tracer) *Executor {
	reg := make(map[string]Tool, len(tools))
	for _, t := range tools {
		reg[t.Spec().Name] = t
	}
	if permission == nil {
		permission = AlwaysAllow
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if tracer == nil {
		tracer = telemetry.NoopTracer{}
	}
	return &Executor{provider: p, tools: reg, permission: permission, confirm: NewConfirmationGate(), logger: logger, tracer: tracer}
}

// Confirm resolves a pending confirmation-required tool call, unblocking
// the suspended loop iteration that requested it.
func (e *Executor) Confirm(toolCallID string, approved bool) {
	e.confirm.Resolve(toolCallID, approved)
}

func toolSpecs(tools map[string]Tool) []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Spec())
	}
	return out
}

// Execute runs the tool-calling loop to completion, emitting events on
// sender. It returns nil once a terminal status has been emitted (success
// and controlled failure/cancellation are not reported via the error
// return — that mirrors spec.md's Result<()> contract, where failure is a
// recorded Task state, not a propagated error). A non-nil error means the
// event channel itself could not be written to.
func (e *Executor) Execute(ctx context.Context, ec ExecContext, sender eventchan.Sender) error {
	ctx, span := e.tracer.Start(ctx, "executor.execute")
	defer span.End()

	if err := sender.Send(ctx, eventchan.StatusUpdateEvent(task.StatusUpdate{State: task.StatusWorking})); err != nil {
		if ctx.Err() != nil {
			return e.emitCanceled(ctx, sender)
		}
		return err
	}

	messages := append(append([]model.Message{}, ec.History...), ec.UserMessage)
	specs := toolSpecs(e.tools)

	for {
		if ctx.Err() != nil {
			return e.emitCanceled(ctx, sender)
		}

		resp, err := e.provider.Complete(ctx, ec.System, messages, specs)
		if err != nil {
			return e.emitFailed(ctx, sender, err)
		}

		if len(resp.ToolCalls) == 0 {
			for _, m := range resp.Messages {
				if err := sender.Send(ctx, eventchan.MessageEvent(m)); err != nil {
					if ctx.Err() != nil {
						return e.emitCanceled(ctx, sender)
					}
					return err
				}
			}
			return e.emitCompleted(ctx, sender)
		}

		assistantParts := make([]model.Part, 0, len(resp.ToolCalls)+len(resp.Messages))
		for _, m := range resp.Messages {
			assistantParts = append(assistantParts, m.Parts...)
		}
		for _, tc := range resp.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, model.Message{Role: model.RoleAgent, Parts: assistantParts})

		results, err := e.runToolCalls(ctx, resp.ToolCalls)
		if err != nil {
			if ctx.Err() != nil {
				return e.emitCanceled(ctx, sender)
			}
			return e.emitFailed(ctx, sender, err)
		}
		for _, r := range results {
			messages = append(messages, model.Message{Role: model.RoleUser, Parts: []model.Part{r}})
		}
	}
}

// runToolCalls dispatches every tool call concurrently and merges results
// back in the original call order, per the teacher's
// mergeToolResultsInCallOrder pattern.
func (e *Executor) runToolCalls(ctx context.Context, calls []model.ToolUsePart) ([]model.ToolResultPart, error) {
	results := make([]model.ToolResultPart, len(calls))
	var wg sync.WaitGroup
	errs := make([]error, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolUsePart) {
			defer wg.Done()
			results[i], errs[i] = e.runOneToolCall(ctx, call)
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

func (e *Executor) runOneToolCall(ctx context.Context, call model.ToolUsePart) (model.ToolResultPart, error) {
	decision := e.permission(ctx, call.Name, call.Input)
	if decision == PermissionRequiresConfirmation {
		approved, err := e.confirm.Await(ctx, call.ToolCallID)
		if err != nil {
			return model.ToolResultPart{}, err
		}
		if !approved {
			decision = PermissionDeny
		} else {
			decision = PermissionAllowOnce
		}
	}
	if decision == PermissionDeny {
		return model.ToolResultPart{
			ToolCallID: call.ToolCallID,
			Content:    []model.Part{model.TextPart{Text: "tool call denied by permission policy"}},
			IsError:    true,
		}, nil
	}

	tool, ok := e.tools[call.Name]
	if !ok {
		return model.ToolResultPart{
			ToolCallID: call.ToolCallID,
			Content:    []model.Part{model.TextPart{Text: fmt.Sprintf("unknown tool %q", call.Name)}},
			IsError:    true,
		}, nil
	}

	out, err := tool.Invoke(ctx, call.Input)
	if err != nil {
		return model.ToolResultPart{
			ToolCallID: call.ToolCallID,
			Content:    []model.Part{model.TextPart{Text: err.Error()}},
			IsError:    true,
		}, nil
	}
	return model.ToolResultPart{
		ToolCallID: call.ToolCallID,
		Content:    []model.Part{model.DataPart{JSON: out}},
	}, nil
}

func (e *Executor) emitCompleted(ctx context.Context, sender eventchan.Sender) error {
	return sender.Send(ctx, eventchan.StatusUpdateEvent(task.StatusUpdate{State: task.StatusCompleted}))
}

func (e *Executor) emitCanceled(ctx context.Context, sender eventchan.Sender) error {
	e.logger.Info(ctx, "executor: canceled at suspension point")
	// sender.Send takes ctx for cancellation of the blocking-send path only;
	// the Canceled status must still be delivered even though ctx itself is
	// already done, so a background context is used for this final write.
	return sender.Send(context.Background(), eventchan.StatusUpdateEvent(task.StatusUpdate{State: task.StatusCanceled}))
}

// emitFailed classifies err via model.ProviderError when possible and
// records a stable reason string on the terminal Failed status (spec.md
// §4.4 "failure classification").
func (e *Executor) emitFailed(ctx context.Context, sender eventchan.Sender, err error) error {
	reason := err.Error()
	if pe, ok := model.AsProviderError(err); ok {
		reason = fmt.Sprintf("%s: %s", pe.Kind, pe.Reason)
	}
	e.logger.Error(ctx, "executor: terminal failure", "reason", reason)
	return sender.Send(context.Background(), eventchan.StatusUpdateEvent(task.StatusUpdate{State: task.StatusFailed, Reason: reason}))
}

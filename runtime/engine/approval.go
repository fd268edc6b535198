package engine

import (
	"context"
	"errors"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/policy"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/approval"
	"github.com/grovekit/grove/service/event"
)

// runApproval resolves an approval gate. A decision supplied ahead of time,
// or a permissive policy, resolves the gate without suspending; otherwise
// the branch blocks on a pending request until a decision arrives or the run
// is cancelled. The decision payload becomes the gate's output.
func (e *Engine) runApproval(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	iteration := scope.At()
	e.publish(run, event.New(event.NodeStarted, run.ID, node.ID, iteration))

	decision, err := e.resolveDecision(ctx, run, node, iteration)
	if err != nil {
		e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(err))
		return nil, err
	}

	if !decision.Approved {
		rejected := &execution.RejectedError{NodeID: node.ID, Reason: decision.Reason}
		e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(rejected))
		return nil, rejected
	}

	payload := decision.Payload
	if payload == nil {
		payload = map[string]interface{}{"approved": true}
	}
	if err = e.store.Write(ctx, node.ID, iteration, payload); err != nil {
		e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(err))
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}

	e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
	return &nodeResult{Kind: execution.OutcomeCompleted, Output: payload}, nil
}

func (e *Engine) resolveDecision(ctx context.Context, run *execution.Run, node *graph.Node, iteration int) (*approval.Decision, error) {
	if e.approvals == nil {
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: errors.New("no approval service configured")}
	}

	if decision, ok := e.approvals.Preseeded(ctx, node.ID); ok {
		return decision, nil
	}

	if p := policy.FromContext(ctx); p != nil {
		if !p.IsAllowed(node.ID) || p.Mode == policy.ModeDeny {
			return &approval.Decision{NodeID: node.ID, Approved: false, Reason: "blocked by policy"}, nil
		}
		switch p.Mode {
		case policy.ModeAuto:
			return &approval.Decision{NodeID: node.ID, Approved: true, Reason: "auto-approved by policy"}, nil
		case policy.ModeAsk:
			if p.Ask != nil {
				approved := p.Ask(ctx, node.ID, nil, p)
				return &approval.Decision{NodeID: node.ID, Approved: approved}, nil
			}
		}
	}

	message := ""
	if node.Approval != nil {
		message = node.Approval.Message
	}
	request := &approval.Request{RunID: run.ID, NodeID: node.ID, Iteration: iteration, Message: message}
	if err := e.approvals.Request(ctx, request); err != nil {
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}
	e.publish(run, event.New(event.ApprovalRequested, run.ID, node.ID, iteration))

	decision, err := e.approvals.Await(ctx, request.ID)
	if err != nil {
		return nil, &execution.CancelledError{NodeID: node.ID, Err: err}
	}
	return decision, nil
}

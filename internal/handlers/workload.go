package handlers

import (
	"context"
	"log/slog"

	"github.com/akodkod/konsol/internal/protocol"
)

// SessionCreate handles konsol/session.create (spec.md §4.6).
func (h *Handlers) SessionCreate(ctx context.Context) (protocol.SessionCreateResult, *protocol.Error) {
	sess, err := h.Store.CreateSession(ctx)
	if err != nil {
		return protocol.SessionCreateResult{}, err
	}
	slog.Info("session created", "session_id", sess.ID)
	return protocol.SessionCreateResult{SessionID: sess.ID}, nil
}

// Eval handles konsol/eval (spec.md §4.6): resolve the session, reject
// if busy, acquire/release the busy state around the evaluator call with
// guaranteed release on every exit path (spec.md §9), and emit the
// konsol/status busy notifications that bracket the call (SPEC_FULL.md
// extension 2).
func (h *Handlers) Eval(ctx context.Context, params protocol.EvalParams) (protocol.EvalResult, *protocol.Error) {
	sess, err := h.Store.Require(params.SessionID)
	if err != nil {
		return protocol.EvalResult{}, err
	}

	if !sess.TryAcquire() {
		return protocol.EvalResult{}, protocol.NewError(protocol.CodeSessionBusy)
	}
	defer sess.Release()

	h.notify(protocol.MethodNotifyStatus, protocol.StatusNotificationParams{SessionID: sess.ID, Busy: true})
	defer h.notify(protocol.MethodNotifyStatus, protocol.StatusNotificationParams{SessionID: sess.ID, Busy: false})

	result, evalErr := h.Evaluator.Run(ctx, sess, params.Code)
	if evalErr != nil {
		slog.Error("evaluator failure", "session_id", sess.ID, "error", evalErr)
		return protocol.EvalResult{}, protocol.NewErrorf(protocol.CodeInternal, "evaluation failed: %v", evalErr)
	}
	return result, nil
}

// Interrupt handles konsol/interrupt (spec.md §4.6): marks a busy
// session interrupted and always reports success, since true
// preemption is a Non-goal in this version.
func (h *Handlers) Interrupt(ctx context.Context, params protocol.SessionIDParams) (protocol.InterruptResult, *protocol.Error) {
	sess, err := h.Store.Require(params.SessionID)
	if err != nil {
		return protocol.InterruptResult{}, err
	}
	sess.MarkInterrupted()
	return protocol.InterruptResult{Success: true}, nil
}

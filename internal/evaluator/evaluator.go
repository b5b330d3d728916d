package evaluator

import (
	"context"

	"github.com/akodkod/konsol/internal/hostruntime"
	"github.com/akodkod/konsol/internal/protocol"
	"github.com/akodkod/konsol/internal/sessionstore"
)

// Evaluator runs code against a session's persistent context, wrapped by
// the host runtime's executor/reloader combinators, with stdout/stderr
// captured for the duration of the call (spec.md §4.5).
type Evaluator struct {
	runtime hostruntime.Runtime
}

// New builds an Evaluator bound to the given host runtime.
func New(runtime hostruntime.Runtime) *Evaluator {
	return &Evaluator{runtime: runtime}
}

// Run evaluates code against sess.EvalContext and returns the wire-ready
// result. It never returns an error for evaluation faults raised by the
// code itself - those are reported inside the returned EvalResult's
// Exception field, per spec.md §4.5. An error return means the host
// runtime's wrap combinator itself failed (e.g. a sandboxed checkout
// could not be established), which the caller should surface as a
// protocol-level error rather than a successful eval result.
func (e *Evaluator) Run(ctx context.Context, sess *sessionstore.Session, code string) (protocol.EvalResult, error) {
	capt, err := startCapture()
	if err != nil {
		return protocol.EvalResult{}, err
	}
	defer capt.stop()

	var (
		value   any
		evalErr error
	)

	wrapErr := hostruntime.WrapEvaluation(ctx, e.runtime, func() error {
		value, evalErr = Eval(code, sess.EvalContext, capt.writeStdout, capt.writeStderr)
		return nil
	})

	stdout, stderr := capt.stop()

	if wrapErr != nil {
		return protocol.EvalResult{}, wrapErr
	}

	result := protocol.EvalResult{
		Stdout: stdout,
		Stderr: stderr,
	}

	if evalErr != nil {
		result.Exception = &protocol.Exception{
			ClassName: ClassName(evalErr),
			Message:   evalErr.Error(),
			Backtrace: Backtrace(evalErr),
		}
		return result, nil
	}

	result.ValueRendering = renderValue(value)
	result.ValueTypeName = renderTypeName(value)
	return result, nil
}

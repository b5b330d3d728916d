// Package hostruntime models the external collaborator spec.md calls the
// "host runtime": an application environment booted lazily on first
// session creation, with optional executor/reloader combinators that
// wrap each evaluation (spec.md §4.5/§9, Glossary).
//
// This core treats the host runtime as an opaque collaborator; what it
// boots and how it wraps evaluation is entirely up to the implementation
// selected at startup (see local.go and sprite.go).
package hostruntime

import "context"

// Runtime is the boot/wrap contract an evaluator depends on.
type Runtime interface {
	// Boot performs the one-shot application environment load. Called at
	// most once per process unless an idle teardown re-arms the gate
	// (SPEC_FULL.md extension 1). Must be idempotent-safe to retry after
	// a failed attempt (the caller only marks the gate booted on
	// success).
	Boot(ctx context.Context) error

	// Teardown releases whatever Boot acquired. Called only by the
	// optional idle-teardown path; a Runtime that has nothing to release
	// may no-op.
	Teardown(ctx context.Context) error

	// Executor returns the optional execute-wrapping combinator, or nil
	// if this runtime doesn't provide one.
	Executor() Executor

	// Reloader returns the optional reload-wrapping combinator, or nil
	// if this runtime doesn't provide one.
	Reloader() Reloader
}

// Executor wraps a single evaluation, e.g. to manage a connection
// checkout or other per-request resource around it.
type Executor interface {
	Wrap(ctx context.Context, fn func() error) error
}

// Reloader wraps a single evaluation, e.g. to reload changed application
// code before running it.
type Reloader interface {
	Wrap(ctx context.Context, fn func() error) error
}

// WrapEvaluation composes Executor.Wrap { Reloader.Wrap { fn } } per
// spec.md §4.5: if both are present the executor wraps the reloader
// which wraps fn; if only one is present, only that one wraps fn; if
// neither is present, fn runs bare.
func WrapEvaluation(ctx context.Context, rt Runtime, fn func() error) error {
	exec := rt.Executor()
	reload := rt.Reloader()

	inner := fn
	if reload != nil {
		innerFn := inner
		inner = func() error { return reload.Wrap(ctx, innerFn) }
	}
	if exec != nil {
		innerFn := inner
		return exec.Wrap(ctx, innerFn)
	}
	return inner()
}

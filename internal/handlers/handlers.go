// Package handlers implements the lifecycle and workload request
// handlers of spec.md §4.6: pure functions from a decoded parameter
// shape (plus the session store and lifecycle flags) to a result shape,
// dispatched by the server loop's exhaustive switch on method name
// (spec.md §9: "avoid dynamic name-to-function maps that defeat
// exhaustiveness checking").
package handlers

import (
	"context"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/akodkod/konsol/internal/evaluator"
	"github.com/akodkod/konsol/internal/protocol"
	"github.com/akodkod/konsol/internal/sessionstore"
)

// ServerVersion is this server's own semver, advertised in initialize
// and used for the best-effort client compatibility judgment
// (SPEC_FULL.md Domain Stack/semver).
const ServerVersion = "0.1.0"

const serverName = "konsol"

// Notifier emits a server->client notification out of band from any
// request/response exchange (SPEC_FULL.md extension 2: konsol/status).
// The server loop supplies the framing writer; handlers never touch the
// wire directly.
type Notifier func(protocol.Notification) error

// Handlers bundles everything the lifecycle/workload handler functions
// need: the session registry, the evaluator, and a way to push
// notifications. It carries no mutable state of its own beyond what the
// store and lifecycle flags (owned by the server loop) already hold.
type Handlers struct {
	Store     *sessionstore.Store
	Evaluator *evaluator.Evaluator
	Notify    Notifier
}

// New builds a Handlers bundle.
func New(store *sessionstore.Store, eval *evaluator.Evaluator, notify Notifier) *Handlers {
	return &Handlers{Store: store, Evaluator: eval, Notify: notify}
}

func (h *Handlers) notify(method protocol.Method, params any) {
	if h.Notify == nil {
		return
	}
	if err := h.Notify(protocol.NewNotification(method, params)); err != nil {
		slog.Warn("failed to emit notification", "method", method, "error", err)
	}
}

// Initialize handles the initialize request (spec.md §4.6). It has no
// side effect on the store; the server loop sets its own `initialized`
// flag after this returns successfully.
func (h *Handlers) Initialize(ctx context.Context, params protocol.InitializeParams) (protocol.InitializeResult, *protocol.Error) {
	if params.ClientInfo != nil && params.ClientInfo.Version != "" {
		logClientCompatibility(params.ClientInfo.Name, params.ClientInfo.Version)
	}

	return protocol.InitializeResult{
		ServerInfo: protocol.ServerInfo{Name: serverName, Version: ServerVersion},
		Capabilities: protocol.Capabilities{
			SupportsInterrupt: false,
			ProtocolVersion:   ServerVersion,
		},
	}, nil
}

// logClientCompatibility parses the client's reported version with
// semver and logs a best-effort compatibility note. An unparseable
// version string is tolerated (logged at debug, not rejected) -
// initialize never fails on account of version skew.
func logClientCompatibility(name, version string) {
	serverVer, err := semver.NewVersion(ServerVersion)
	if err != nil {
		return
	}
	clientVer, err := semver.NewVersion(version)
	if err != nil {
		slog.Debug("client reported an unparseable version", "client", name, "version", version)
		return
	}
	if clientVer.Major() != serverVer.Major() {
		slog.Warn("client/server major version mismatch",
			"client", name, "client_version", clientVer.String(), "server_version", serverVer.String())
		return
	}
	slog.Debug("client version compatible", "client", name, "client_version", clientVer.String())
}

// Shutdown handles the shutdown request (spec.md §4.6). Setting
// shutdown_requested is the server loop's responsibility since that flag
// is lifecycle state it owns; this handler only performs the store
// invalidation that is specific to shutdown semantics.
func (h *Handlers) Shutdown(ctx context.Context) *protocol.Error {
	h.Store.InvalidateAll()
	return nil
}

// CancelRequest handles $/cancelRequest (spec.md §4.6): accepted and
// recorded, never acted upon (Non-goal: no true preemption). If
// inFlightSessionID names a live session, whatever its state, the attempt
// is recorded against it for observability (SPEC_FULL.md extension 4);
// otherwise this is a pure no-op.
func (h *Handlers) CancelRequest(ctx context.Context, params protocol.CancelRequestParams, inFlightSessionID string) *protocol.Error {
	if inFlightSessionID == "" {
		return nil
	}
	if sess, ok := h.Store.Get(inFlightSessionID); ok {
		sess.RecordCancelAttempt()
	}
	return nil
}

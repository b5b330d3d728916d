// Package server implements the single-threaded read-dispatch-write loop
// of spec.md §4.7/§5: one goroutine drives the whole cycle, so response
// ordering is trivially FIFO. The session store is still mutex-guarded
// (internal/sessionstore) because the optional idle-teardown timer calls
// into it from a second goroutine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/akodkod/konsol/internal/framing"
	"github.com/akodkod/konsol/internal/handlers"
	"github.com/akodkod/konsol/internal/protocol"
)

// Server owns the lifecycle flags spec.md §3 names (initialized,
// shutdown_requested) and drives the codec <-> handler round trip.
type Server struct {
	reader *framing.Reader
	writer *framing.Writer
	h      *handlers.Handlers

	initialized       bool
	shutdownRequested bool
	exitRequested     bool
}

// New builds a Server reading/writing framed messages on rw and
// dispatching to h. Use NewFramed instead when h's Notifier must share
// the same Writer instance the server writes responses through (see
// NotifierFor).
func New(rw io.ReadWriter, h *handlers.Handlers) *Server {
	return NewFramed(framing.NewReader(rw), framing.NewWriter(rw), h)
}

// NewFramed builds a Server from an already-constructed reader/writer
// pair, so the caller can wire the same *framing.Writer into both the
// server and a handlers.Notifier (via NotifierFor) before constructing
// the Handlers bundle.
func NewFramed(reader *framing.Reader, writer *framing.Writer, h *handlers.Handlers) *Server {
	return &Server{reader: reader, writer: writer, h: h}
}

// RequestShutdown lets an external signal handler set
// shutdown_requested without waiting for a `shutdown` RPC (spec.md §5:
// "a signal-induced termination is equivalent to shutdown_requested
// becoming true"). The loop observes it at the next frame boundary.
func (s *Server) RequestShutdown() {
	s.shutdownRequested = true
}

// Run drives the loop until a stream closure, an `exit` notification, or
// ctx cancellation, and returns the process exit code spec.md §3/§6
// derive from whether shutdown_requested was true at that point.
func (s *Server) Run(ctx context.Context) int {
	for {
		select {
		case <-ctx.Done():
			slog.Info("context cancelled, stopping loop")
			s.RequestShutdown()
			return s.exitCode()
		default:
		}

		raw, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("stream closed at frame boundary")
				return s.exitCode()
			}
			if errors.Is(err, framing.ErrParseError) {
				s.writeError(protocol.ID{}, protocol.NewError(protocol.CodeParseError))
				continue
			}
			slog.Error("framing error, terminating loop", "error", err)
			return 1
		}

		s.dispatch(ctx, raw)

		if s.exitRequested {
			return s.exitCode()
		}
	}
}

func (s *Server) exitCode() int {
	if s.shutdownRequested {
		return 0
	}
	return 1
}

// dispatch decodes one already-parsed JSON value into an envelope,
// classifies it, and routes it to the right handler.
func (s *Server) dispatch(ctx context.Context, raw any) {
	snake := protocol.CamelToSnake(raw)
	envJSON, err := json.Marshal(snake)
	if err != nil {
		s.writeError(protocol.ID{}, protocol.NewErrorf(protocol.CodeInternal, "re-marshal envelope: %v", err))
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(envJSON, &env); err != nil {
		s.writeError(protocol.ID{}, protocol.NewErrorf(protocol.CodeInvalidRequest, "envelope: %v", err))
		return
	}

	isNotification := protocol.IsNotificationMethod(env.Method) || env.IsNotification()

	if !protocol.IsKnownMethod(env.Method) {
		if isNotification {
			slog.Debug("dropping notification for unknown method", "method", env.Method)
			return
		}
		s.writeError(env.ID, protocol.NewError(protocol.CodeMethodNotFound))
		return
	}

	slog.Debug("dispatching", "method", env.Method, "notification", isNotification)

	result, protoErr := s.invoke(ctx, env)

	if isNotification {
		if protoErr != nil {
			slog.Warn("notification handler failed, dropping silently", "method", env.Method, "error", protoErr)
		}
		return
	}

	if protoErr != nil {
		s.writeError(env.ID, protoErr)
		return
	}
	s.writeResult(env.ID, result)
}

// invoke runs the handler for env.Method and returns its snake-cased
// result value (or nil for a null/void result).
func (s *Server) invoke(ctx context.Context, env protocol.Envelope) (any, *protocol.Error) {
	switch env.Method {
	case protocol.MethodInitialize:
		params, perr := protocol.InitializeParamsFromWire(env.Params)
		if perr != nil {
			return nil, perr
		}
		res, err := s.h.Initialize(ctx, params)
		if err != nil {
			return nil, err
		}
		s.initialized = true
		return res, nil

	case protocol.MethodShutdown:
		if err := s.h.Shutdown(ctx); err != nil {
			return nil, err
		}
		s.shutdownRequested = true
		return nil, nil

	case protocol.MethodExit:
		s.exitRequested = true
		return nil, nil

	case protocol.MethodCancelRequest:
		params, perr := protocol.CancelRequestParamsFromWire(env.Params)
		if perr != nil {
			return nil, perr
		}
		// The single-threaded loop never has a concurrently running
		// evaluation to correlate this against (spec.md §9): accepted
		// and ignored, as the stub specifies.
		return nil, s.h.CancelRequest(ctx, params, "")

	case protocol.MethodSessionCreate:
		res, err := s.h.SessionCreate(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil

	case protocol.MethodEval:
		params, perr := protocol.EvalParamsFromWire(env.Params)
		if perr != nil {
			return nil, perr
		}
		res, err := s.h.Eval(ctx, params)
		if err != nil {
			return nil, err
		}
		return res, nil

	case protocol.MethodInterrupt:
		params, perr := protocol.SessionIDParamsFromWire(env.Params, string(protocol.MethodInterrupt))
		if perr != nil {
			return nil, perr
		}
		res, err := s.h.Interrupt(ctx, params)
		if err != nil {
			return nil, err
		}
		return res, nil

	case protocol.MethodNotifyStdout, protocol.MethodNotifyStderr, protocol.MethodNotifyStatus:
		// Server->client only; a client sending one of these is ignored.
		return nil, nil

	default:
		return nil, protocol.NewError(protocol.CodeMethodNotFound)
	}
}

func (s *Server) writeResult(id protocol.ID, result any) {
	wire := toWireValue(result)
	resp := protocol.NewResultResponse(id, wire)
	if err := s.writer.Write(resp); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(id protocol.ID, protoErr *protocol.Error) {
	resp := protocol.NewErrorResponse(id, protoErr)
	if err := s.writer.Write(resp); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

// toWireValue serializes result through its own json tags (snake_case)
// then converts the resulting generic JSON value to camelCase, so the
// case translator - not ad hoc struct tags - is the single place that
// enforces the wire convention (spec.md §4.2).
func toWireValue(result any) any {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal result for wire conversion", "error", err)
		return nil
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		slog.Error("failed to decode result for wire conversion", "error", err)
		return nil
	}
	return protocol.SnakeToCamel(generic)
}

// NotifierFor builds a handlers.Notifier that converts each notification
// to camelCase and writes it through w, for wiring into handlers.New.
func NotifierFor(w *framing.Writer) handlers.Notifier {
	return func(n protocol.Notification) error {
		wire := map[string]any{
			"jsonrpc": n.JSONRPC,
			"method":  string(n.Method),
		}
		if n.Params != nil {
			wire["params"] = n.Params
		}
		data, err := json.Marshal(wire)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		return w.Write(protocol.SnakeToCamel(generic))
	}
}

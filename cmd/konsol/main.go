// Command konsol runs the konsol evaluation server: a single-threaded
// request/response loop over a framed byte stream, by default the
// process's own stdin/stdout (spec.md §5), or a WebSocket endpoint when
// --ws is given (SPEC_FULL.md Domain Stack).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/akodkod/konsol/internal/evaluator"
	"github.com/akodkod/konsol/internal/framing"
	"github.com/akodkod/konsol/internal/handlers"
	"github.com/akodkod/konsol/internal/hostruntime"
	"github.com/akodkod/konsol/internal/server"
	"github.com/akodkod/konsol/internal/sessionstore"
	"github.com/akodkod/konsol/internal/transport"
)

var (
	wsAddr   string
	logFmt   string
	useStdio bool
)

func main() {
	root := &cobra.Command{
		Use:     "konsol",
		Short:   "A request/response evaluation server for GUI-driven REPL clients",
		Version: handlers.ServerVersion,
		RunE:    run,
	}
	root.Flags().BoolVar(&useStdio, "stdio", false, "serve over stdin/stdout (the default; takes precedence over --ws)")
	root.Flags().StringVar(&wsAddr, "ws", "", "listen for a single WebSocket client on addr instead of stdio")
	root.Flags().StringVar(&logFmt, "log-format", os.Getenv("KONSOL_LOG_FORMAT"), "log encoding: text (default) or json")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	setupLogging()

	runtime, err := buildRuntime()
	if err != nil {
		return fmt.Errorf("konsol: %w", err)
	}

	store := sessionstore.New(runtime)
	eval := evaluator.New(runtime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if idleTeardown := os.Getenv("KONSOL_IDLE_TIMEOUT"); idleTeardown != "" {
		startIdleTeardown(ctx, store, idleTeardown)
	}

	if wsAddr != "" && !useStdio {
		return runWebSocket(ctx, store, eval)
	}
	return runStdio(ctx, store, eval)
}

// setupLogging wires log/slog per SPEC_FULL.md: text by default, JSON
// when KONSOL_LOG_FORMAT=json, and always to stderr - stdout is the
// protocol channel in --stdio mode and must never carry anything else.
func setupLogging() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("KONSOL_LOG_LEVEL") == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if logFmt == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildRuntime selects the host-runtime implementation named by
// KONSOL_ENV: "sandboxed" boots an isolated remote sprite
// (SPEC_FULL.md Domain Stack), anything else boots in-process.
func buildRuntime() (hostruntime.Runtime, error) {
	if os.Getenv("KONSOL_ENV") == "sandboxed" {
		token := os.Getenv("KONSOL_SPRITES_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("KONSOL_SPRITES_TOKEN is required when KONSOL_ENV=sandboxed")
		}
		return hostruntime.NewSpriteRuntime(token, "konsol"), nil
	}
	return hostruntime.NewLocalRuntime(), nil
}

func runStdio(ctx context.Context, store *sessionstore.Store, eval *evaluator.Evaluator) error {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		slog.Warn("stdin is a terminal; konsol expects a framed client on the other end, not interactive input")
	}

	rw := transport.NewStdio()
	srv := buildServer(rw, store, eval)

	code := srv.Run(ctx)
	os.Exit(code)
	return nil
}

// runWebSocket serves one client connection at a time on wsAddr and
// drives the same server loop over it; a second client is refused while
// the first is connected (the listener stays open, so a new client can
// connect after the first disconnects), matching the one-session-owner model spec.md
// assumes for the stdio transport.
func runWebSocket(ctx context.Context, store *sessionstore.Store, eval *evaluator.Evaluator) error {
	var mu sync.Mutex
	connected := false

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if connected {
			mu.Unlock()
			http.Error(w, "konsol: a client is already connected", http.StatusServiceUnavailable)
			return
		}
		connected = true
		mu.Unlock()
		defer func() {
			mu.Lock()
			connected = false
			mu.Unlock()
		}()

		conn, err := transport.Upgrade(w, r)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		srv := buildServer(conn, store, eval)
		slog.Info("websocket client connected")
		code := srv.Run(r.Context())
		slog.Info("websocket client session ended", "exit_code", code)
	})

	httpServer := &http.Server{Addr: wsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("websocket server shutdown error", "error", err)
		}
	}()

	slog.Info("konsol listening", "addr", wsAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("konsol: websocket listen: %w", err)
	}
	return nil
}

type readWriter interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

func buildServer(rw readWriter, store *sessionstore.Store, eval *evaluator.Evaluator) *server.Server {
	reader := framing.NewReader(rw)
	writer := framing.NewWriter(rw)
	h := handlers.New(store, eval, server.NotifierFor(writer))
	return server.NewFramed(reader, writer, h)
}

// startIdleTeardown runs the optional host-runtime idle-teardown loop
// (SPEC_FULL.md extension 1): every timeout interval, if the store has
// zero live sessions, the runtime is torn down and the boot gate
// re-arms for the next session.create.
func startIdleTeardown(ctx context.Context, store *sessionstore.Store, timeout string) {
	d, err := time.ParseDuration(timeout)
	if err != nil {
		slog.Warn("invalid KONSOL_IDLE_TIMEOUT, idle teardown disabled", "value", timeout, "error", err)
		return
	}

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := store.TeardownIfIdle(ctx); err != nil {
					slog.Warn("idle teardown failed", "error", err)
				}
			}
		}
	}()
}

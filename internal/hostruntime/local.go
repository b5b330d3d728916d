package hostruntime

import (
	"context"
	"log/slog"
	"os"
)

// LocalRuntime is the default host runtime: it "loads an application
// environment from the current working directory" (spec.md §4.4) by
// simply confirming the working directory is readable and recording the
// environment profile named by KONSOL_ENV (development/test, spec.md §6).
// It has no executor or reloader; code runs bare.
type LocalRuntime struct {
	Profile string
	booted  bool
}

// NewLocalRuntime builds a LocalRuntime, reading the environment profile
// from KONSOL_ENV (defaulting to "development" to match the reference
// server's own implicit default when no profile is configured).
func NewLocalRuntime() *LocalRuntime {
	profile := os.Getenv("KONSOL_ENV")
	if profile == "" {
		profile = "development"
	}
	return &LocalRuntime{Profile: profile}
}

func (r *LocalRuntime) Boot(ctx context.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if _, err := os.Stat(wd); err != nil {
		return err
	}
	slog.InfoContext(ctx, "host runtime booted", "kind", "local", "profile", r.Profile, "dir", wd)
	r.booted = true
	return nil
}

func (r *LocalRuntime) Teardown(ctx context.Context) error {
	slog.InfoContext(ctx, "host runtime torn down", "kind", "local")
	r.booted = false
	return nil
}

func (r *LocalRuntime) Executor() Executor { return nil }
func (r *LocalRuntime) Reloader() Reloader { return nil }

package hostruntime

import (
	"context"
	"fmt"
	"log/slog"

	sprites "github.com/superfly/sprites-go"
)

// SpriteRuntime boots the host application environment inside an
// isolated remote sandbox ("sprite") instead of in-process, for
// deployments that evaluate untrusted code (KONSOL_ENV=sandboxed,
// SPEC_FULL.md Domain Stack). Its Executor wrap combinator (spec.md
// §4.5) runs a trivial command through the sandbox's exec facility as a
// checkout before each evaluation; the evaluation itself still runs
// in-process, not in the sandbox.
//
// Grounded on the reference server's own (unused, in the retrieved
// file) superfly/sprites-go dependency; the reference server's removed
// "sprite client" comment is exactly this kind of swappable remote
// sandbox boot path, restored here with a concrete purpose.
type SpriteRuntime struct {
	client *sprites.Client
	name   string

	sprite *sprites.Sprite
}

// NewSpriteRuntime builds a SpriteRuntime. token is the Sprites API
// token (KONSOL_SPRITES_TOKEN); name identifies the sandbox instance.
func NewSpriteRuntime(token, name string) *SpriteRuntime {
	return &SpriteRuntime{
		client: sprites.NewClient(token),
		name:   name,
	}
}

func (r *SpriteRuntime) Boot(ctx context.Context) error {
	sp, err := r.client.Create(ctx, sprites.CreateOptions{Name: r.name})
	if err != nil {
		return fmt.Errorf("hostruntime: create sprite %q: %w", r.name, err)
	}
	r.sprite = sp
	slog.InfoContext(ctx, "host runtime booted", "kind", "sprite", "sprite_id", sp.ID, "name", r.name)
	return nil
}

func (r *SpriteRuntime) Teardown(ctx context.Context) error {
	if r.sprite == nil {
		return nil
	}
	if err := r.sprite.Destroy(ctx); err != nil {
		return fmt.Errorf("hostruntime: destroy sprite %q: %w", r.sprite.ID, err)
	}
	slog.InfoContext(ctx, "host runtime torn down", "kind", "sprite", "sprite_id", r.sprite.ID)
	r.sprite = nil
	return nil
}

func (r *SpriteRuntime) Executor() Executor { return r }
func (r *SpriteRuntime) Reloader() Reloader { return nil }

// Wrap implements Executor by running "true" in the sandbox as a
// checkout and, if that succeeds, calling fn in-process. fn is not sent
// to the sandbox; remote code execution proper is out of scope for this
// core (spec.md treats the host runtime as opaque).
func (r *SpriteRuntime) Wrap(ctx context.Context, fn func() error) error {
	if r.sprite == nil {
		return fmt.Errorf("hostruntime: sprite not booted")
	}
	res, err := r.sprite.Exec(ctx, "true")
	if err != nil {
		return fmt.Errorf("hostruntime: sprite checkout: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("hostruntime: sprite checkout exited %d: %s", res.ExitCode, res.Stderr)
	}
	return fn()
}

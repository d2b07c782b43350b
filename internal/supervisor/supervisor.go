// Package supervisor runs fire-and-forget background work without ever
// truly detaching it: every task is tracked by an errgroup.Group so a
// panic or error is logged instead of silently lost, directly answering
// §9's "never detach with no parent" redesign note. Grounded in
// golang.org/x/sync/errgroup, the same module the teacher's go.mod
// already carries for bounded concurrency elsewhere in the stack.
package supervisor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Supervisor owns one errgroup.Group for the lifetime of the host
// process. Background work (reflection triggers, the session-key GC loop,
// the cron loop and its job fires, the task queue's run loop and early
// wakes, the IPC server) is launched through it instead of a bare
// `go func() {}()`.
type Supervisor struct {
	g *errgroup.Group
}

func New(ctx context.Context) (*Supervisor, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	return &Supervisor{g: g}, gctx
}

// Go launches fn as tracked background work tagged with label for
// logging. Per §7's "Background" error class, fn's error is logged only
// and never propagated to any external caller.
func (s *Supervisor) Go(label string, fn func() error) {
	s.g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("supervisor.task_panicked", "task", label, "recover", r)
			}
		}()
		if err := fn(); err != nil {
			slog.Error("supervisor.task_failed", "task", label, "error", err)
		}
		return nil
	})
}

// Wait blocks until all launched tasks have returned. Used at shutdown.
func (s *Supervisor) Wait() error {
	return s.g.Wait()
}

// Package taskqueue implements the Task Queue (§4.9): a bounded,
// persistent queue of one-shot deferred prompts. A ticker polls the Store
// for due rows and dispatches them into a bounded worker pool, mirroring
// the teacher's makeCronJobHandler's block-on-sendMessage-then-record-
// result shape (cmd/gateway_cron.go), generalized from a one-shot
// invocation to a polling queue.
package taskqueue

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/sessionmgr"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/supervisor"
)

// MinDelay and MaxDelay are the delay bounds from §3/§4.9/§8 property 4.
// The spec's Open Question #1 resolves 30s–30d and [0.5, 43200] minutes as
// the same range restated in two units; this is that range.
const (
	MinDelay = 30 * time.Second
	MaxDelay = 30 * 24 * time.Hour

	// DefaultTickInterval and DefaultMaxConcurrent are §4.9's defaults.
	DefaultTickInterval  = 15 * time.Second
	DefaultMaxConcurrent = 4
)

// Sender is the narrow Session Manager surface the queue re-enters at
// fire time.
type Sender interface {
	SendMessage(ctx context.Context, agentID, prompt, channel, userID, chatID string) (sessionmgr.SendResult, error)
}

// Queue is the Task Queue: schedule/cancel/list plus the due-task runner.
type Queue struct {
	stores        *store.Stores
	sender        Sender
	sup           *supervisor.Supervisor
	tickInterval  time.Duration
	maxConcurrent int

	wake chan struct{}
}

// New constructs a Queue. tickInterval <= 0 and maxConcurrent <= 0 fall
// back to §4.9's defaults.
func New(stores *store.Stores, sender Sender, sup *supervisor.Supervisor, tickInterval time.Duration, maxConcurrent int) *Queue {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{
		stores:        stores,
		sender:        sender,
		sup:           sup,
		tickInterval:  tickInterval,
		maxConcurrent: maxConcurrent,
		wake:          make(chan struct{}, 1),
	}
}

// Schedule validates delayMinutes against [0.5, 43200] (§8 property 4),
// writes a pending row, and arranges an early wake if the task is due
// within 2x the tick period so it doesn't wait for the next regular tick.
func (q *Queue) Schedule(ctx context.Context, agentID, sessionID, prompt, description string, delayMinutes float64) (store.DeferredTask, error) {
	delay := time.Duration(delayMinutes * float64(time.Minute))
	if delay < MinDelay || delay > MaxDelay {
		return store.DeferredTask{}, clerr.Validationf("delayMinutes %.2f out of range [0.5, 43200]", delayMinutes)
	}

	now := time.Now()
	task, err := q.stores.Tasks.EnqueueTask(ctx, store.DeferredTask{
		AgentID:     agentID,
		SessionID:   sessionID,
		Prompt:      prompt,
		Description: description,
		ExecuteAt:   now.Add(delay),
	})
	if err != nil {
		return store.DeferredTask{}, err
	}

	if delay <= 2*q.tickInterval {
		q.scheduleEarlyWake(delay)
	}
	return task, nil
}

// scheduleEarlyWake nudges the run loop once delay has elapsed, so a task
// due sooner than the next regular tick doesn't wait a full tick period.
func (q *Queue) scheduleEarlyWake(delay time.Duration) {
	q.sup.Go("taskqueue.early_wake", func() error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C
		select {
		case q.wake <- struct{}{}:
		default:
		}
		return nil
	})
}

// Cancel transitions a pending task to cancelled; rejects running/terminal
// tasks (§3's lifecycle).
// Cancel cancels the pending task id. When callerAgentID is non-empty it
// must match the task's owning agent, per §4.8's taskqueue.cancel
// authorization check — one agent may never cancel another's task.
func (q *Queue) Cancel(ctx context.Context, id, callerAgentID string) error {
	if callerAgentID != "" {
		task, err := q.stores.Tasks.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task.AgentID != callerAgentID {
			return clerr.Conflictf("task %q is not owned by agent %q", id, callerAgentID)
		}
	}
	return q.stores.Tasks.CancelTask(ctx, id)
}

// List returns agentID's tasks most-recent-first, or every agent's tasks
// if agentID is empty, per §4.8's taskqueue.list.
func (q *Queue) List(ctx context.Context, agentID string) ([]store.DeferredTask, error) {
	if agentID == "" {
		return q.stores.Tasks.ListAllTasks(ctx)
	}
	return q.stores.Tasks.ListTasksByAgent(ctx, agentID)
}

// Run drives the due-task loop until ctx is cancelled: a regular ticker
// plus the early-wake channel, each tick fetching and running every
// currently-due row through a pool bounded by maxConcurrent.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			q.runDue(ctx)
		case <-q.wake:
			q.runDue(ctx)
		}
	}
}

func (q *Queue) runDue(ctx context.Context) {
	due, err := q.stores.Tasks.ListDueTasks(ctx, time.Now())
	if err != nil {
		slog.Error("taskqueue.list_due_failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.maxConcurrent)
	for _, t := range due {
		t := t
		g.Go(func() error {
			q.runOne(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (q *Queue) runOne(ctx context.Context, t store.DeferredTask) {
	if err := q.stores.Tasks.MarkTaskRunning(ctx, t.ID); err != nil {
		// Another tick (or a concurrent runDue) already claimed it.
		return
	}

	slog.Info("taskqueue.due", "task", t.ID, "agent", t.AgentID)
	_, err := q.sender.SendMessage(ctx, t.AgentID, t.Prompt, "taskqueue", t.AgentID, t.SessionID)
	if err != nil {
		if ferr := q.stores.Tasks.MarkTaskFailed(ctx, t.ID, err.Error()); ferr != nil {
			slog.Error("taskqueue.mark_failed_failed", "task", t.ID, "error", ferr)
		}
		slog.Error("taskqueue.run_failed", "task", t.ID, "agent", t.AgentID, "error", err)
		return
	}
	if err := q.stores.Tasks.MarkTaskDone(ctx, t.ID); err != nil {
		slog.Error("taskqueue.mark_done_failed", "task", t.ID, "error", err)
	}
}

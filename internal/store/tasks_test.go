package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndListDueTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	due, err := db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "ping", ExecuteAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	_, err = db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "later", ExecuteAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	tasks, err := db.ListDueTasks(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due.ID, tasks[0].ID)
	assert.Equal(t, TaskPending, tasks[0].Status)
}

func TestTaskLifecycleRunningDoneFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task, err := db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "ping", ExecuteAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, db.MarkTaskRunning(ctx, task.ID))
	// A task already running cannot be claimed a second time.
	assert.Error(t, db.MarkTaskRunning(ctx, task.ID))

	require.NoError(t, db.MarkTaskDone(ctx, task.ID))
	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskDone, got.Status)
}

func TestMarkTaskFailedRecordsError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task, err := db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "ping", ExecuteAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, db.MarkTaskRunning(ctx, task.ID))
	require.NoError(t, db.MarkTaskFailed(ctx, task.ID, "cli crashed"))

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "cli crashed", got.Error)
}

func TestCancelTaskOnlyAffectsPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task, err := db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "ping", ExecuteAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, db.MarkTaskRunning(ctx, task.ID))

	assert.Error(t, db.CancelTask(ctx, task.ID), "running tasks cannot be cancelled")
}

func TestListAllTasksAndByAgent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.EnqueueTask(ctx, DeferredTask{AgentID: "jarvis", Prompt: "a", ExecuteAt: time.Now()})
	require.NoError(t, err)
	_, err = db.EnqueueTask(ctx, DeferredTask{AgentID: "scout", Prompt: "b", ExecuteAt: time.Now()})
	require.NoError(t, err)

	all, err := db.ListAllTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	jarvisOnly, err := db.ListTasksByAgent(ctx, "jarvis")
	require.NoError(t, err)
	require.Len(t, jarvisOnly, 1)
	assert.Equal(t, "jarvis", jarvisOnly[0].AgentID)
}

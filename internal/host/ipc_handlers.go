package host

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/ipc"
	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/toolconfig"
)

// registerIPCHandlers binds every §4.8 wire type to the same components
// the in-process CLI subcommands call, per the package's "no parallel
// code path" discipline.
func (h *Host) registerIPCHandlers(srv *ipc.Server) {
	srv.Register("sessions.list", h.handleSessionsList)
	srv.Register("sessions.spawn", h.handleSessionsSpawn)
	srv.Register("sessions.send", h.handleSessionsSend)
	srv.Register("sessions.status", h.handleSessionsStatus)
	srv.Register("agents.list", h.handleAgentsList)
	srv.Register("taskqueue.schedule", h.handleTaskQueueSchedule)
	srv.Register("taskqueue.cancel", h.handleTaskQueueCancel)
	srv.Register("taskqueue.list", h.handleTaskQueueList)
}

func (h *Host) handleSessionsList(ctx context.Context, _ json.RawMessage) ipc.Reply {
	sessions, err := h.stores.Sessions.ListSessions(ctx, "")
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	out := make([]ipc.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary(s))
	}
	return ipc.OK(out)
}

func (h *Host) handleSessionsSpawn(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.SessionsSpawnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	if p.AgentID == "" || p.Prompt == "" {
		return ipc.ErrReply("agentId and prompt are required")
	}
	res, err := h.sessions.SendMessage(ctx, p.AgentID, p.Prompt, "subagent", p.CallingAgentID, p.ParentSessionID)
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	return ipc.OK(ipc.SessionsSpawnReply{SessionID: res.SessionID, Response: res.Text})
}

func (h *Host) handleSessionsSend(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.SessionsSendPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	if p.SessionID == "" || p.Message == "" {
		return ipc.ErrReply("sessionId and message are required")
	}
	res, err := h.sessions.ResumeSession(ctx, p.SessionID, p.Message)
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	return ipc.OK(ipc.SessionsSendReply{Response: res.Text})
}

func (h *Host) handleSessionsStatus(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.SessionsStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	sess, err := h.stores.Sessions.GetSession(ctx, p.SessionID)
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	return ipc.OK(ipc.SessionsStatusReply{
		Status:       string(sess.Status),
		AgentID:      sess.AgentID,
		Channel:      sess.Channel,
		CreatedAt:    sess.CreatedAt.UnixMilli(),
		LastActiveAt: sess.LastActiveAt.UnixMilli(),
	})
}

func (h *Host) handleAgentsList(_ context.Context, _ json.RawMessage) ipc.Reply {
	bundles := h.reg.List()
	out := make([]ipc.AgentSummary, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, agentSummary(b, h.cfg.Tools.Browser))
	}
	return ipc.OK(out)
}

func (h *Host) handleTaskQueueSchedule(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.TaskQueueSchedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	if p.AgentID == "" || p.Prompt == "" {
		return ipc.ErrReply("agentId and prompt are required")
	}
	task, err := h.tasks.Schedule(ctx, p.AgentID, p.SessionID, p.Prompt, p.Description, p.DelayMinutes)
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	return ipc.OK(ipc.TaskQueueScheduleReply{TaskID: task.ID, ExecuteAt: task.ExecuteAt.UnixMilli()})
}

func (h *Host) handleTaskQueueCancel(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.TaskQueueCancelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	if p.TaskID == "" {
		return ipc.ErrReply("taskId is required")
	}
	if err := h.tasks.Cancel(ctx, p.TaskID, p.AgentID); err != nil {
		return ipc.ErrReply(err.Error())
	}
	return ipc.OK(struct{}{})
}

func (h *Host) handleTaskQueueList(ctx context.Context, payload json.RawMessage) ipc.Reply {
	var p ipc.TaskQueueListPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ipc.ErrReply("malformed payload: " + err.Error())
	}
	tasks, err := h.tasks.List(ctx, p.AgentID)
	if err != nil {
		return ipc.ErrReply(err.Error())
	}
	out := make([]ipc.TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskSummary(t))
	}
	return ipc.OK(out)
}

func sessionSummary(s store.Session) ipc.SessionSummary {
	return ipc.SessionSummary{
		ID:           s.ID,
		AgentID:      s.AgentID,
		Channel:      s.Channel,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt.UnixMilli(),
		LastActiveAt: s.LastActiveAt.UnixMilli(),
	}
}

func taskSummary(t store.DeferredTask) ipc.TaskSummary {
	return ipc.TaskSummary{
		ID:          t.ID,
		AgentID:     t.AgentID,
		Description: t.Description,
		Status:      string(t.Status),
		ExecuteAt:   t.ExecuteAt.UnixMilli(),
	}
}

func agentSummary(b registry.Bundle, browser config.BrowserConfig) ipc.AgentSummary {
	builder := toolconfig.New()
	manifest, _ := builder.Build(toolconfig.BuildOpts{
		AgentID:      b.ID,
		Preset:       b.Config.Preset,
		CustomTools:  b.Config.CustomTools,
		Skills:       b.Config.Skills,
		AdminEnabled: b.Config.Admin.Enabled,
		Browser:      browser,
	})
	servers := make([]string, 0, len(manifest.Servers))
	for name := range manifest.Servers {
		servers = append(servers, name)
	}
	return ipc.AgentSummary{
		ID:          b.ID,
		Name:        b.Config.Name,
		Description: b.Config.Description,
		Preset:      b.Config.Preset,
		Servers:     servers,
	}
}

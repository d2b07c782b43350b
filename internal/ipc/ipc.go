// Package ipc implements the local stream-socket control surface: one
// JSON request, one JSON reply, connection closed, per §4.8. The
// goroutine-per-connection dispatch and "work delegated to the same
// components the public API uses" discipline is grounded in the
// teacher's WebSocket MethodRouter
// (internal/gateway/methods/channel_instances.go's
// router.Register(method, handler) / client.SendResponse pattern),
// adapted here from a long-lived multiplexed connection to one-shot
// stream-socket framing.
package ipc

import (
	"context"
	"encoding/json"
	"time"
)

// RequestTimeout is the caller-side deadline for one request per §5.
const RequestTimeout = 120 * time.Second

// Request is the envelope every IPC call sends: a type tag plus a
// type-specific payload, unmarshaled on demand by the handler for Type.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is the envelope every IPC call receives.
type Reply struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OK wraps v as a successful Reply. Handlers outside this package (the
// host's §4.8 registrations) use this to build their return value.
func OK(v any) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		return Reply{OK: false, Error: "marshal reply: " + err.Error()}
	}
	return Reply{OK: true, Data: data}
}

// ErrReply wraps msg as a failed Reply.
func ErrReply(msg string) Reply {
	return Reply{OK: false, Error: msg}
}

// Handler dispatches one request type. Implementations must never panic;
// Serve recovers but a well-behaved handler reports errors via ErrReply.
type Handler func(ctx context.Context, payload json.RawMessage) Reply

// SessionsListPayload has no fields; sessions.list ignores its payload.
type SessionsListPayload struct{}

type SessionSummary struct {
	ID           string `json:"id"`
	AgentID      string `json:"agentId"`
	Channel      string `json:"channel,omitempty"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"createdAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
}

type SessionsSpawnPayload struct {
	AgentID         string `json:"agentId"`
	Prompt          string `json:"prompt"`
	ParentSessionID string `json:"parentSessionId,omitempty"`
	CallingAgentID  string `json:"callingAgentId,omitempty"`
}

type SessionsSpawnReply struct {
	SessionID string `json:"sessionId"`
	Response  string `json:"response"`
}

type SessionsSendPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type SessionsSendReply struct {
	Response string `json:"response"`
}

type SessionsStatusPayload struct {
	SessionID string `json:"sessionId"`
}

type SessionsStatusReply struct {
	Status       string `json:"status"`
	AgentID      string `json:"agentId"`
	Channel      string `json:"channel,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
}

type AgentSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Preset      string   `json:"preset,omitempty"`
	Servers     []string `json:"servers,omitempty"`
}

type TaskQueueSchedulePayload struct {
	AgentID      string  `json:"agentId"`
	SessionID    string  `json:"sessionId,omitempty"`
	Prompt       string  `json:"prompt"`
	Description  string  `json:"description,omitempty"`
	DelayMinutes float64 `json:"delayMinutes"`
}

type TaskQueueScheduleReply struct {
	TaskID    string `json:"taskId"`
	ExecuteAt int64  `json:"executeAt"`
}

type TaskQueueCancelPayload struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId,omitempty"`
}

type TaskQueueListPayload struct {
	AgentID string `json:"agentId,omitempty"`
}

type TaskSummary struct {
	ID          string `json:"id"`
	AgentID     string `json:"agentId"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	ExecuteAt   int64  `json:"executeAt"`
}

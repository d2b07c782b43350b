// Package toolserver implements the built-in MCP-style tool servers the
// Tool Config Builder's manifest points at: memory search, session
// listing, messaging relay, skills registry, admin controls, and the
// optional browser automation server. Each runs as a stdio subprocess of
// this same binary (`clade tool-server <name>`), grounded in the
// teacher's stdio MCP client expectations (internal/mcp/manager_connect.go's
// createClient "stdio" case) from the server side: mark3labs/mcp-go's
// server.MCPServer replaces the hand-rolled internal/tools.Registry the
// teacher used for in-process tools, since every tool here is consumed
// out-of-process by the spawned CLI instead.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/clade/internal/ipc"
	"github.com/nextlevelbuilder/clade/internal/store"
)

// Env carries the per-invocation identity the Tool Config Builder passes
// via the manifest's environment map (CLADE_AGENT_ID, CLADE_HOME_DIR,
// CLADE_IPC_SOCKET), read from the process environment at startup.
type Env struct {
	AgentID       string
	HomeDir       string
	IPCSocketPath string
}

// Serve builds and runs the named built-in tool server over stdio until
// the client disconnects. name is one of memory, sessions, messaging,
// skills, admin, browser.
func Serve(ctx context.Context, name string, env Env, db *store.DB) error {
	s := server.NewMCPServer("clade-"+name, "1.0.0")

	switch name {
	case "memory":
		registerMemoryTools(s, env, db)
	case "sessions":
		registerSessionTools(s, env, db)
	case "messaging":
		registerMessagingTools(s, env)
	case "skills":
		registerSkillTools(s, db)
	case "admin":
		registerAdminTools(s, env, db)
	case "browser":
		registerBrowserTools(s, env)
	default:
		return fmt.Errorf("unknown tool server %q", name)
	}

	return server.ServeStdio(s)
}

func registerMemoryTools(s *server.MCPServer, env Env, db *store.DB) {
	searchTool := mcp.NewTool("memory_search",
		mcp.WithDescription("Full-text search this agent's curated memory and activity logs."),
		mcp.WithString("query", mcp.Required(), mcp.Description("search text")),
		mcp.WithNumber("limit", mcp.Description("max results, default 20")),
	)
	s.AddTool(searchTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		limit := int(req.GetFloat("limit", 20))
		chunks, err := db.SearchMemory(ctx, env.AgentID, query, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var out string
		for _, c := range chunks {
			out += fmt.Sprintf("## %s (%d-%d)\n%s\n\n", c.FilePath, c.ChunkStart, c.ChunkEnd, c.ChunkText)
		}
		if out == "" {
			out = "no matches"
		}
		return mcp.NewToolResultText(out), nil
	})
}

func registerSessionTools(s *server.MCPServer, env Env, db *store.DB) {
	listTool := mcp.NewTool("sessions_list",
		mcp.WithDescription("List this agent's known sessions."),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions, err := db.ListSessions(ctx, env.AgentID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var out string
		for _, sess := range sessions {
			out += fmt.Sprintf("%s channel=%s status=%s lastActive=%s\n", sess.ID, sess.Channel, sess.Status, sess.LastActiveAt)
		}
		if out == "" {
			out = "no sessions"
		}
		return mcp.NewToolResultText(out), nil
	})
}

// registerMessagingTools exposes agent-to-agent delegation, not delivery
// to an external channel adapter — those are out of scope per spec and
// reached only through the Cron Scheduler's configured deliverTo sink.
// messaging_send starts or resumes a session on another agent over the
// same sessions.spawn/sessions.send wire types §4.8 documents, so this
// subprocess never needs an undocumented IPC type of its own.
func registerMessagingTools(s *server.MCPServer, env Env) {
	sendTool := mcp.NewTool("messaging_send",
		mcp.WithDescription("Delegate a task to another agent by sending it a message. Starts a new conversation unless sessionId is given."),
		mcp.WithString("agentId", mcp.Required(), mcp.Description("id of the agent to message")),
		mcp.WithString("text", mcp.Required()),
		mcp.WithString("sessionId", mcp.Description("existing session to continue instead of starting a new one")),
	)
	s.AddTool(sendTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID := req.GetString("agentId", "")
		text := req.GetString("text", "")
		sessionID := req.GetString("sessionId", "")
		response, err := relayViaIPC(ctx, env.IPCSocketPath, env.AgentID, agentID, sessionID, text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(response), nil
	})
}

func registerSkillTools(s *server.MCPServer, db *store.DB) {
	listTool := mcp.NewTool("skills_list",
		mcp.WithDescription("List skills available to this agent."),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skills, err := db.ListSkills(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var out string
		for _, sk := range skills {
			out += fmt.Sprintf("%s [%s] %s\n", sk.Name, sk.Status, sk.Path)
		}
		if out == "" {
			out = "no skills"
		}
		return mcp.NewToolResultText(out), nil
	})
}

// relayViaIPC forwards a messaging_send call to sessions.send when
// sessionID is set, otherwise to sessions.spawn, both tagged with the
// calling agent's id so the receiving session's key records where the
// delegation came from.
func relayViaIPC(ctx context.Context, socketPath, callingAgentID, targetAgentID, sessionID, text string) (string, error) {
	if socketPath == "" {
		return "", fmt.Errorf("no IPC socket configured for this invocation")
	}

	if sessionID != "" {
		reply, err := ipc.Call(ctx, socketPath, "sessions.send", ipc.SessionsSendPayload{
			SessionID: sessionID,
			Message:   text,
		})
		if err != nil {
			return "", err
		}
		if !reply.OK {
			return "", fmt.Errorf("%s", reply.Error)
		}
		var r ipc.SessionsSendReply
		if err := json.Unmarshal(reply.Data, &r); err != nil {
			return "", err
		}
		return r.Response, nil
	}

	reply, err := ipc.Call(ctx, socketPath, "sessions.spawn", ipc.SessionsSpawnPayload{
		AgentID:        targetAgentID,
		Prompt:         text,
		CallingAgentID: callingAgentID,
	})
	if err != nil {
		return "", err
	}
	if !reply.OK {
		return "", fmt.Errorf("%s", reply.Error)
	}
	var r ipc.SessionsSpawnReply
	if err := json.Unmarshal(reply.Data, &r); err != nil {
		return "", err
	}
	return r.Response, nil
}

func registerAdminTools(s *server.MCPServer, env Env, db *store.DB) {
	approveTool := mcp.NewTool("admin_approve_skill",
		mcp.WithDescription("Approve a pending skill for use (admin-only server)."),
		mcp.WithString("name", mcp.Required()),
	)
	s.AddTool(approveTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("name", "")
		if err := db.ApproveSkill(ctx, name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("approved " + name), nil
	})
}

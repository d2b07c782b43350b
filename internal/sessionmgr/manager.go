// Package sessionmgr implements the Session Manager (§4.7): the single
// place that resolves an agent, serializes per session key, invokes the
// CLI Runner, and persists the resulting session row. Grounded in the
// teacher's internal/sessions.Manager call shape (the version retrieved
// for this exercise, since superseded by a store-backed implementation
// here) generalized from a Postgres-session-row manager to the sqlite
// Store built for this spec, and in cmd/gateway_cron.go's
// block-on-sendMessage-then-record-result shape that every other
// dispatch source (cron, task queue, IPC) reuses unchanged.
package sessionmgr

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/nextlevelbuilder/clade/internal/capability"
	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/clirunner"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/promptasm"
	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/supervisor"
	"github.com/nextlevelbuilder/clade/internal/toolconfig"
)

// idleGCInterval and idleKeyTTL tune the per-key lock map's garbage
// collector; not part of any external config surface.
const (
	idleGCInterval = 5 * time.Minute
	idleKeyTTL     = 30 * time.Minute
)

// SendResult is the common shape sendMessage and resumeSession return.
type SendResult struct {
	Text       string
	SessionID  string
	DurationMs int64
}

// ReflectionTrigger fires the Reflection Driver for an agent's just-
// completed turn on sessionID, without the caller awaiting it; wired in
// by the host so this package never imports internal/reflection directly
// (avoiding a dependency cycle with its Store-backed turn counter).
type ReflectionTrigger func(agentID, sessionID string)

// Manager is the Session Manager: sendMessage/resumeSession/createRunner
// per §4.7, FIFO per session key, reflection fired-and-forgotten via a
// Supervisor so its errors are logged, never dropped silently.
type Manager struct {
	reg       *registry.Registry
	stores    *store.Stores
	caps      capability.Record
	cliPath   string
	selfExe   string
	homeDir   string
	ipcSocket string
	browser   config.BrowserConfig

	queue      *keyQueue
	sup        *supervisor.Supervisor
	reflection ReflectionTrigger
}

// New constructs a Manager. ipcSocket may be empty at construction time
// and set later via SetIPCSocket once the IPC Server has bound its
// socket (the Session Manager and IPC Server are constructed together by
// the host but the socket path isn't known until Listen succeeds).
func New(reg *registry.Registry, stores *store.Stores, caps capability.Record, cliPath, selfExe, homeDir string, browser config.BrowserConfig, sup *supervisor.Supervisor) *Manager {
	m := &Manager{
		reg:     reg,
		stores:  stores,
		caps:    caps,
		cliPath: cliPath,
		selfExe: selfExe,
		homeDir: homeDir,
		browser: browser,
		queue:   newKeyQueue(),
		sup:     sup,
	}
	sup.Go("sessionmgr.key_gc", func() error {
		m.gcLoop()
		return nil
	})
	return m
}

func (m *Manager) gcLoop() {
	ticker := time.NewTicker(idleGCInterval)
	defer ticker.Stop()
	for range ticker.C {
		m.queue.GC(idleKeyTTL)
	}
}

// SetIPCSocket records the bound IPC socket path, included in every tool
// manifest's environment so built-in tool servers can reach it.
func (m *Manager) SetIPCSocket(path string) { m.ipcSocket = path }

// SetReflectionTrigger wires the Reflection Driver callback; calling
// SendMessage before this is set is valid, it simply skips reflection.
func (m *Manager) SetReflectionTrigger(t ReflectionTrigger) { m.reflection = t }

// CreateRunner returns a fresh CLIRunner for one-off uses outside the
// session-key queue (e.g. a capability re-probe or an admin diagnostic).
func (m *Manager) CreateRunner() *clirunner.Runner {
	return clirunner.New(m.cliPath)
}

// SendMessage implements §4.7's sendMessage algorithm.
func (m *Manager) SendMessage(ctx context.Context, agentID, prompt, channel, userID, chatID string) (SendResult, error) {
	key := BuildSessionKey(agentID, channel, userID, chatID)
	release := m.queue.Acquire(key)
	defer release()

	bundle, err := m.reg.Get(agentID)
	if err != nil {
		return SendResult{}, err
	}

	existing, hasExisting, err := m.findActive(ctx, agentID, channel, userID, chatID)
	if err != nil {
		return SendResult{}, err
	}

	resumeID := ""
	if hasExisting {
		resumeID = existing.ID
	}

	result, newSessionID, err := m.invoke(ctx, bundle, prompt, resumeID)
	if err != nil {
		return SendResult{}, err
	}

	if err := m.recordOutcome(ctx, agentID, channel, userID, chatID, hasExisting, existing, newSessionID); err != nil {
		slog.Error("sessionmgr.record_outcome_failed", "agent", agentID, "error", err)
	}

	if m.reflection != nil {
		reflectSessionID := newSessionID
		if hasExisting {
			reflectSessionID = existing.ID
		}
		m.sup.Go("reflection."+agentID, func() error {
			m.reflection(agentID, reflectSessionID)
			return nil
		})
	}

	return result, nil
}

// ResumeSession implements §4.7's resumeSession algorithm: same as
// SendMessage but the session is fetched directly by id instead of
// matched by tuple.
func (m *Manager) ResumeSession(ctx context.Context, sessionID, prompt string) (SendResult, error) {
	sess, err := m.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SendResult{}, clerr.NotFoundf("session %q not found", sessionID)
	}

	key := BuildSessionKey(sess.AgentID, sess.Channel, sess.ChannelUserID, sess.ChatID)
	release := m.queue.Acquire(key)
	defer release()

	bundle, err := m.reg.Get(sess.AgentID)
	if err != nil {
		return SendResult{}, err
	}

	result, _, err := m.invoke(ctx, bundle, prompt, sess.ID)
	if err != nil {
		return SendResult{}, err
	}

	// Pinned to the original row: always touch sess.ID, never fork onto
	// whatever session id the CLI happened to report back (same rule
	// SendMessage's recordOutcome follows).
	if err := m.stores.Sessions.TouchSession(ctx, sess.ID); err != nil {
		slog.Error("sessionmgr.touch_failed", "session", sess.ID, "error", err)
	}
	result.SessionID = sess.ID

	if m.reflection != nil {
		m.sup.Go("reflection."+sess.AgentID, func() error {
			m.reflection(sess.AgentID, sess.ID)
			return nil
		})
	}

	return result, nil
}

func (m *Manager) findActive(ctx context.Context, agentID, channel, userID, chatID string) (store.Session, bool, error) {
	sess, err := m.stores.Sessions.FindActiveSession(ctx, agentID, channel, userID, chatID)
	if err != nil {
		if clerr.KindOf(err) == clerr.NotFound {
			return store.Session{}, false, nil
		}
		return store.Session{}, false, err
	}
	return sess, true, nil
}

// invoke builds the system prompt and tool manifest, runs the CLI, and
// cleans up the manifest best-effort regardless of outcome.
func (m *Manager) invoke(ctx context.Context, bundle registry.Bundle, prompt, resumeID string) (SendResult, string, error) {
	soul, err := m.reg.ReadSoul(bundle.ID)
	if err != nil {
		return SendResult{}, "", err
	}
	memory, err := m.reg.ReadMemory(bundle.ID)
	if err != nil {
		return SendResult{}, "", err
	}
	today := time.Now().Format("2006-01-02")
	activityPath, err := m.reg.ActivityLogPath(bundle.ID, today)
	if err != nil {
		return SendResult{}, "", err
	}
	activityLog := ""
	if data, rerr := os.ReadFile(activityPath); rerr == nil {
		activityLog = string(data)
	}
	systemPrompt := promptasm.Assemble(soul, memory, activityLog)

	systemPromptFile, err := writeTempFile("clade-prompt-*.md", systemPrompt)
	if err != nil {
		return SendResult{}, "", clerr.Wrap(clerr.StoreErr, "write system prompt file", err)
	}
	defer os.Remove(systemPromptFile)

	builder := toolconfig.New()
	manifest, allowedTools := builder.Build(toolconfig.BuildOpts{
		AgentID:       bundle.ID,
		HomeDir:       m.homeDir,
		IPCSocketPath: m.ipcSocket,
		SelfExe:       m.selfExe,
		Preset:        bundle.Config.Preset,
		CustomTools:   bundle.Config.CustomTools,
		Skills:        bundle.Config.Skills,
		AdminEnabled:  bundle.Config.Admin.Enabled,
		Browser:       m.browser,
	})
	manifestPath, err := toolconfig.Write(manifest)
	if err != nil {
		return SendResult{}, "", clerr.Wrap(clerr.StoreErr, "write tool manifest", err)
	}
	defer toolconfig.Cleanup(manifestPath)

	builderArgs := capability.ArgBuilder{Caps: m.caps}
	args := builderArgs.Build(capability.CliOptions{
		Prompt:                 prompt,
		ResumeSessionID:        resumeID,
		AppendSystemPrompt:     systemPrompt,
		AppendSystemPromptFile: systemPromptFile,
		ToolServerConfigPath:   manifestPath,
		AllowedTools:           allowedTools,
		MaxTurns:               bundle.Config.MaxTurns,
		Model:                  bundle.Config.Model,
	})

	runner := clirunner.New(m.cliPath)
	res, err := runner.Run(ctx, args)
	if err != nil {
		// §7: CLI errors surface per-turn but never poison the session
		// queue — the deferred release()/manifest cleanup above still run.
		return SendResult{}, "", err
	}

	sessionID := res.SessionID
	if sessionID == "" && resumeID == "" {
		sessionID = store.NewSessionID()
	} else if sessionID == "" {
		sessionID = resumeID
	}

	return SendResult{Text: res.Text, SessionID: sessionID, DurationMs: res.DurationMs}, sessionID, nil
}

func writeTempFile(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (m *Manager) recordOutcome(ctx context.Context, agentID, channel, userID, chatID string, hadExisting bool, existing store.Session, newSessionID string) error {
	if hadExisting {
		return m.stores.Sessions.TouchSession(ctx, existing.ID)
	}
	return m.stores.Sessions.CreateSession(ctx, store.Session{
		ID: newSessionID, AgentID: agentID, Channel: channel,
		ChannelUserID: userID, ChatID: chatID,
		CreatedAt: time.Now(), LastActiveAt: time.Now(),
	})
}

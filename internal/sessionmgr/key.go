// Session key builder and parser. Key grammar is grounded in the
// teacher's canonical session-key format
// (internal/sessions/key.go's BuildSessionKey/ParseSessionKey family),
// trimmed from its open-ended routing-scope variants (dm_scope,
// per-account-channel-peer, forum topics) down to the
// (agentId, channel, userId, chatId) tuple the dispatch engine's §3
// actually carries, plus the cron and subagent variants §4.7/§4.11 need.
package sessionmgr

import (
	"fmt"
	"strings"
)

// BuildSessionKey builds the canonical per-session-key serialization
// token for a channel conversation: agent:{agentId}:{channel}:{userId}:{chatId}.
// Empty channel/userId/chatId segments are represented as "-" so the key
// stays parseable even for a pure agent-level invocation.
func BuildSessionKey(agentID, channel, userID, chatID string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s", agentID, seg(channel), seg(userID), seg(chatID))
}

// BuildSubagentSessionKey builds the session key for a subagent run.
func BuildSubagentSessionKey(agentID, label string) string {
	return fmt.Sprintf("agent:%s:subagent:%s", agentID, label)
}

// BuildCronSessionKey builds the session key for one cron job run. Guards
// against double-prefixing: if jobID is already a canonical session key,
// only its rest segment is reused.
func BuildCronSessionKey(agentID, jobID, runID string) string {
	if _, rest := ParseSessionKey(jobID); rest != "" {
		jobID = rest
	}
	return fmt.Sprintf("agent:%s:cron:%s:run:%s", agentID, jobID, runID)
}

func seg(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ParseSessionKey extracts the agentID and rest from a canonical session
// key. Returns ("", "") if key is not in the expected format.
func ParseSessionKey(key string) (agentID, rest string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "agent" {
		return "", ""
	}
	return parts[1], parts[2]
}

// IsSubagentSession reports whether key denotes a subagent session.
func IsSubagentSession(key string) bool {
	_, rest := ParseSessionKey(key)
	return strings.HasPrefix(rest, "subagent:")
}

// IsCronSession reports whether key denotes a cron-triggered session.
func IsCronSession(key string) bool {
	_, rest := ParseSessionKey(key)
	return strings.HasPrefix(rest, "cron:")
}

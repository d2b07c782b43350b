package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, matching the
// tolerance config.json authors expect from hand-edited files.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the clade host process.
type Config struct {
	SchemaVersion int            `json:"schemaVersion"`
	HomeDir       string         `json:"homeDir,omitempty"`
	Agents        AgentsConfig   `json:"agents"`
	Channels      ChannelsConfig `json:"channels,omitempty"`
	Gateway       GatewayConfig  `json:"gateway,omitempty"`
	Routing       RoutingConfig  `json:"routing,omitempty"`
	Tools         ToolsConfig    `json:"tools"`
	Skills        SkillsConfig   `json:"skills,omitempty"`
	Cron          CronConfig     `json:"cron,omitempty"`
	TaskQueue     TaskQueueConfig `json:"taskQueue,omitempty"`

	mu sync.RWMutex
}

// AgentsConfig holds the agent default settings plus per-agent overrides.
// Per-agent identity (soul/memory/heartbeat/tools documents) lives on disk
// under the Registry, not here — this only carries config.json-level fields.
type AgentsConfig struct {
	Defaults AgentDefaults        `json:"defaults"`
	List     map[string]AgentSpec `json:"list,omitempty"`
}

// AgentDefaults are applied to every agent unless overridden.
type AgentDefaults struct {
	Model             string  `json:"model"`
	Preset            string  `json:"preset"` // potato, coding, messaging, full, custom
	MaxTurns          int     `json:"maxTurns"`
	ReflectionEnabled bool    `json:"reflectionEnabled"`
	ReflectionEvery   int     `json:"reflectionEvery"` // turn interval
	HeartbeatEvery    string  `json:"heartbeatEvery,omitempty"` // Go duration string, "" = disabled
}

// AgentSpec is a per-agent override plus the fields used to seed a new
// Registry entry (name/description/admin/skills).
type AgentSpec struct {
	Name          string              `json:"name,omitempty"`
	Description   string              `json:"description,omitempty"`
	Model         string              `json:"model,omitempty"`
	Preset        string              `json:"preset,omitempty"`
	CustomTools   FlexibleStringSlice `json:"customTools,omitempty"`
	Skills        FlexibleStringSlice `json:"skills,omitempty"`
	MaxTurns      int                 `json:"maxTurns,omitempty"`
	Admin         AdminConfig         `json:"admin,omitempty"`
	Heartbeat     *HeartbeatConfig    `json:"heartbeat,omitempty"`
	Reflection    *ReflectionConfig   `json:"reflection,omitempty"`
}

// AdminConfig gates admin-only tool server visibility and privileged actions.
type AdminConfig struct {
	Enabled          bool `json:"enabled,omitempty"`
	AutoApproveTools bool `json:"autoApproveTools,omitempty"`
	CanCreateSkills  bool `json:"canCreateSkills,omitempty"`
	CanManageAgents  bool `json:"canManageAgents,omitempty"`
	CanModifyConfig  bool `json:"canModifyConfig,omitempty"`
}

// HeartbeatConfig configures an agent's periodic self-audit turn.
type HeartbeatConfig struct {
	Enabled          bool   `json:"enabled,omitempty"`
	Interval         string `json:"interval,omitempty"` // Go duration string
	ActiveHoursStart string `json:"activeHoursStart,omitempty"`
	ActiveHoursEnd   string `json:"activeHoursEnd,omitempty"`
	Mode             string `json:"mode,omitempty"` // "check" or "work"
	SuppressOk       bool   `json:"suppressOk,omitempty"`
}

// ReflectionConfig configures the post-turn soul-rewrite meta-turn.
type ReflectionConfig struct {
	Enabled  bool `json:"enabled,omitempty"`
	Interval int  `json:"interval,omitempty"` // turns between reflections
}

// ChannelsConfig is a stub: channel adapters are external collaborators,
// this only carries the per-channel enable flags routing decisions need.
type ChannelsConfig struct {
	Entries map[string]ChannelEntry `json:"entries,omitempty"`
}

type ChannelEntry struct {
	Enabled bool `json:"enabled"`
}

// GatewayConfig is a stub: the admin HTTP/WebSocket gateway is an external
// collaborator; this only records the bind address it would use.
type GatewayConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// RoutingConfig resolves inbound requests without a named agent.
type RoutingConfig struct {
	DefaultAgent string        `json:"defaultAgent,omitempty"`
	Rules        []RoutingRule `json:"rules,omitempty"`
}

type RoutingRule struct {
	Channel string `json:"channel,omitempty"`
	AgentID string `json:"agentId"`
}

// ToolsConfig carries global tool-server settings layered on top of presets.
type ToolsConfig struct {
	Browser BrowserConfig `json:"browser,omitempty"`
}

// BrowserConfig configures the optional browser automation tool server.
type BrowserConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	UserDataDir string `json:"userDataDir,omitempty"`
	CDPEndpoint string `json:"cdpEndpoint,omitempty"`
	Browser     string `json:"browser,omitempty"` // binary name/path, "" = auto-download
	Headless    bool   `json:"headless,omitempty"`
}

// SkillsConfig configures skill auto-approval.
type SkillsConfig struct {
	AutoApprove FlexibleStringSlice `json:"autoApprove,omitempty"`
}

// CronConfig holds retry settings for cron result delivery. The cron
// scheduler does not read them: a failed delivery is logged once and not
// retried.
type CronConfig struct {
	MaxRetries     int    `json:"maxRetries,omitempty"`
	RetryBaseDelay string `json:"retryBaseDelay,omitempty"`
	RetryMaxDelay  string `json:"retryMaxDelay,omitempty"`
}

// TaskQueueConfig tunes the deferred task queue.
type TaskQueueConfig struct {
	TickInterval      string `json:"tickInterval,omitempty"`      // default 15s
	MaxConcurrent     int    `json:"maxConcurrent,omitempty"`     // default 4
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SchemaVersion = src.SchemaVersion
	c.HomeDir = src.HomeDir
	c.Agents = src.Agents
	c.Channels = src.Channels
	c.Gateway = src.Gateway
	c.Routing = src.Routing
	c.Tools = src.Tools
	c.Skills = src.Skills
	c.Cron = src.Cron
	c.TaskQueue = src.TaskQueue
}

// ResolveAgent merges agent defaults with a per-agent override.
func (c *Config) ResolveAgent(agentID string) AgentDefaults {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := c.Agents.Defaults
	if spec, ok := c.Agents.List[agentID]; ok {
		if spec.Model != "" {
			d.Model = spec.Model
		}
		if spec.Preset != "" {
			d.Preset = spec.Preset
		}
		if spec.MaxTurns > 0 {
			d.MaxTurns = spec.MaxTurns
		}
		if spec.Reflection != nil {
			d.ReflectionEnabled = spec.Reflection.Enabled
			if spec.Reflection.Interval > 0 {
				d.ReflectionEvery = spec.Reflection.Interval
			}
		}
		if spec.Heartbeat != nil && spec.Heartbeat.Interval != "" {
			d.HeartbeatEvery = spec.Heartbeat.Interval
		}
	}
	return d
}

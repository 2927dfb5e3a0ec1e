// Package config provides configuration loading and management for ralph.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Agent     AgentConfig     `json:"agent"     mapstructure:"agent"`
	Loop      LoopConfig      `json:"loop"      mapstructure:"loop"`
	Learnings LearningsConfig `json:"learnings" mapstructure:"learnings"`
}

// AgentConfig describes which backend to run and how.
type AgentConfig struct {
	Backend           string        `json:"backend"                      mapstructure:"backend"`
	Model             string        `json:"model,omitempty"              mapstructure:"model"`
	AllowedTools      []string      `json:"allowed_tools,omitempty"      mapstructure:"allowed_tools"`
	MaxTurns          int           `json:"max_turns,omitempty"          mapstructure:"max_turns"`
	Timeout           time.Duration `json:"timeout,omitempty"            mapstructure:"timeout"`
	BypassPermissions bool          `json:"bypass_permissions,omitempty" mapstructure:"bypass_permissions"`
}

// LoopConfig defines orchestrator limits.
type LoopConfig struct {
	MaxRetries  int `json:"max_retries,omitempty"  mapstructure:"max_retries"`
	EventBuffer int `json:"event_buffer,omitempty" mapstructure:"event_buffer"`
}

// LearningsConfig locates the cross-iteration learnings directory.
type LearningsConfig struct {
	Dir string `json:"dir,omitempty" mapstructure:"dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			Backend: "claude",
			Timeout: 5 * time.Minute,
		},
		Loop: LoopConfig{
			MaxRetries:  3,
			EventBuffer: 16,
		},
	}
}

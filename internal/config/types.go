package config

// ServerConfig configures the optional status stream server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config represents the .task-master/config.yaml file. Every field can be
// overridden per-invocation by the matching CLI flag.
type Config struct {
	// Model is the model name passed to the agent binary via --model.
	Model string `yaml:"model"`

	// AgentBinary is the external coding agent executable.
	AgentBinary string `yaml:"agent_binary"`

	// MaxSessions caps work iterations per process invocation. Zero means
	// unlimited; the counter does not accumulate across resumes.
	MaxSessions int `yaml:"max_sessions"`

	// SessionTimeoutMins is the wall-clock cap on a single agent invocation.
	SessionTimeoutMins int `yaml:"session_timeout_mins"`

	// SleepSeconds is the pacing delay between loop passes.
	SleepSeconds int `yaml:"sleep_seconds"`

	// PauseOnPR stops the loop once the agent opens a pull request,
	// pending human review.
	PauseOnPR bool `yaml:"pause_on_pr"`

	// AutoMerge tells the agent to merge its PR once checks pass.
	AutoMerge bool `yaml:"auto_merge"`

	// AllowedTools is passed to the agent via --allowedTools when non-empty.
	AllowedTools []string `yaml:"allowed_tools,omitempty"`

	// KnownBots supplements the built-in list of review-bot authors.
	KnownBots []string `yaml:"known_bots,omitempty"`

	Server *ServerConfig `yaml:"server,omitempty"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EngineBackend identifies how the external conversion engine is reached.
type EngineBackend string

const (
	BackendContainer EngineBackend = "container"
	BackendCommand   EngineBackend = "command"
)

// EngineConfig holds settings for reaching the conversion engine.
type EngineConfig struct {
	// Backend selects the engine adapter: container or command.
	Backend EngineBackend `json:"backend" yaml:"backend"`

	// Image is the converter image run by the container backend
	// (e.g. "slack-export-converter:latest").
	Image string `json:"image" yaml:"image"`

	// Runtime selects the container runtime: auto, docker, or podman.
	Runtime string `json:"runtime" yaml:"runtime"`

	// Command is the argv prefix run by the command backend. The archive,
	// output directory, and worker count are appended.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
}

// ConversionConfig holds settings for the convert command.
type ConversionConfig struct {
	// Threads is the default worker count forwarded to the engine when
	// --threads is not given (default 6).
	Threads int `json:"threads" yaml:"threads"`

	Engine EngineConfig `json:"engine" yaml:"engine"`
}

// HistoryConfig holds settings for the run history ledger.
type HistoryConfig struct {
	// Enabled controls whether dispatches are recorded.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding history.db and exports.
	Dir string `json:"dir" yaml:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is a zerolog level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format is console, json, or auto (console on a terminal).
	Format string `json:"format" yaml:"format"`
}

// Config groups all settings read at startup.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DispatchStatus records the outcome of one engine call.
type DispatchStatus string

const (
	DispatchConverted DispatchStatus = "converted"
	DispatchFailed    DispatchStatus = "failed"
)

// Run identifies one invocation of the convert command.
type Run struct {
	// ID is a random UUID assigned when the invocation starts.
	ID string `json:"id" yaml:"id"`

	// OutputDir is the resolved output directory shared by every archive.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Threads is the worker count forwarded to the engine.
	Threads int `json:"threads" yaml:"threads"`

	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// DispatchRecord holds the outcome of converting one archive within a run.
type DispatchRecord struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Archive    string         `json:"archive" yaml:"archive"`
	OutputDir  string         `json:"output_dir" yaml:"output_dir"`
	Threads    int            `json:"threads" yaml:"threads"`
	Status     DispatchStatus `json:"status" yaml:"status"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
}

// Duration returns how long the engine call took.
func (r DispatchRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

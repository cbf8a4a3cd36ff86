// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert reaches the external conversion engine that turns a Slack
// export archive into import-ready data. Backends run the engine as a
// container image or as a local command.
package convert

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/slack-convert/internal/container"
	"github.com/pdiddy/slack-convert/pkg/types"
)

const (
	// DefaultImage is the converter image used when none is configured.
	DefaultImage = "slack-export-converter:latest"

	// tokenEnv carries the Slack token to the engine so it never shows up
	// in a process listing.
	tokenEnv = "SLACK_TOKEN"
)

// Engine converts one archive into outputDir. Calls block until the
// conversion finishes; a non-nil error means the conversion failed.
type Engine interface {
	Convert(ctx context.Context, archivePath, outputDir, token string, threads int) error
}

// New builds the engine selected by cfg.Backend. Engine output is streamed
// to w.
func New(cfg types.EngineConfig, w io.Writer, logger zerolog.Logger) (Engine, error) {
	switch cfg.Backend {
	case types.BackendContainer, "":
		rt, err := container.DetectRuntime(cfg.Runtime)
		if err != nil {
			return nil, err
		}
		return NewContainerEngine(rt, cfg.Image, w, logger)
	case types.BackendCommand:
		return NewCommandEngine(cfg.Command, w, logger)
	default:
		return nil, fmt.Errorf("unsupported engine backend %q: use container or command", cfg.Backend)
	}
}

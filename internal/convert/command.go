// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

// runFunc executes argv with extra environment entries, streaming output to w.
type runFunc func(ctx context.Context, argv, env []string, w io.Writer) error

func runOS(ctx context.Context, argv, env []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

// CommandEngine runs a local converter command once per archive. The
// archive, output directory, and worker count are appended to the
// configured argv; the token is passed through the environment.
type CommandEngine struct {
	argv   []string
	out    io.Writer
	logger zerolog.Logger
	run    runFunc
}

// NewCommandEngine creates an engine around argv. The first element must
// resolve on PATH.
func NewCommandEngine(argv []string, w io.Writer, logger zerolog.Logger) (*CommandEngine, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command backend requires engine.command to be set")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("converter command %s: %w", argv[0], err)
	}
	return &CommandEngine{argv: argv, out: w, logger: logger, run: runOS}, nil
}

// Convert runs the command and waits for it to exit.
func (e *CommandEngine) Convert(ctx context.Context, archivePath, outputDir, token string, threads int) error {
	argv := make([]string, 0, len(e.argv)+5)
	argv = append(argv, e.argv...)
	argv = append(argv, archivePath, "--output", outputDir, "--threads", strconv.Itoa(threads))

	e.logger.Debug().
		Strs("argv", argv).
		Str("archive", archivePath).
		Msg("starting converter command")

	if err := e.run(ctx, argv, []string{tokenEnv + "=" + token}, e.out); err != nil {
		return fmt.Errorf("converting %s: %w", archivePath, err)
	}
	return nil
}

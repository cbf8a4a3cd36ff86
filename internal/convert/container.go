// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pdiddy/slack-convert/internal/container"
)

const (
	inputMountDir  = "/input"
	outputMountDir = "/output"
)

// ContainerEngine runs the converter image with the archive mounted
// read-only and the output directory mounted writable. It depends on a
// container.Runtime (docker or podman) injected at construction time.
type ContainerEngine struct {
	runtime container.Runtime
	image   string
	out     io.Writer
	logger  zerolog.Logger
}

// NewContainerEngine creates an engine that uses rt to run image. It
// verifies that the image exists locally before returning.
func NewContainerEngine(rt container.Runtime, image string, w io.Writer, logger zerolog.Logger) (*ContainerEngine, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("converter image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerEngine{runtime: rt, image: image, out: w, logger: logger}, nil
}

// Convert runs one container per archive and waits for it to exit.
func (e *ContainerEngine) Convert(ctx context.Context, archivePath, outputDir, token string, threads int) error {
	target := inputMountDir + "/" + filepath.Base(archivePath)

	archiveSrc, err := hostPath(archivePath)
	if err != nil {
		return fmt.Errorf("converting %s: %w", archivePath, err)
	}
	outputSrc, err := hostPath(outputDir)
	if err != nil {
		return fmt.Errorf("converting %s: %w", archivePath, err)
	}

	spec := container.RunSpec{
		Image: e.image,
		Mounts: []container.Mount{
			{Source: archiveSrc, Target: target, ReadOnly: true},
			{Source: outputSrc, Target: outputMountDir},
		},
		Env:    map[string]string{tokenEnv: token},
		Args:   []string{"--threads", strconv.Itoa(threads), target, outputMountDir},
		Stdout: e.out,
		Stderr: e.out,
	}

	e.logger.Debug().
		Str("runtime", e.runtime.Name()).
		Str("image", e.image).
		Str("archive", archivePath).
		Int("threads", threads).
		Msg("starting converter container")

	if err := e.runtime.Run(ctx, spec); err != nil {
		return fmt.Errorf("converting %s: %w", archivePath, err)
	}
	return nil
}

// hostPath makes a bind-mount source absolute. Docker and podman read a
// relative source as a named volume. Symlinks are evaluated when the path
// exists.
func hostPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

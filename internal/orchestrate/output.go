// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// TempDirPrefix marks output directories created when --output is omitted.
const TempDirPrefix = "converted-slack-data-"

// parseThreads converts the --threads value. An empty value selects def.
func parseThreads(raw string, def int) (int, error) {
	n := def
	if s := strings.TrimSpace(raw); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidParallelism, raw)
		}
		n = v
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: you must have at least one thread (got %d)", ErrInvalidParallelism, n)
	}
	return n, nil
}

// resolveOutput returns the directory every archive is converted into.
// Without an override a fresh temp directory is created under tempBase
// (os.TempDir when empty). An override is created if missing, then has its
// symlinks evaluated before being made absolute, so ".." is applied to the
// physical directory a link points at.
func resolveOutput(override, tempBase string) (string, bool, error) {
	if override == "" {
		dir, err := os.MkdirTemp(tempBase, TempDirPrefix)
		if err != nil {
			return "", false, fmt.Errorf("creating output directory: %w", err)
		}
		return dir, true, nil
	}

	if err := os.MkdirAll(override, 0o755); err != nil {
		return "", false, fmt.Errorf("creating output directory %s: %w", override, err)
	}
	resolved, err := filepath.EvalSymlinks(override)
	if err != nil {
		return "", false, fmt.Errorf("resolving output directory %s: %w", override, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false, fmt.Errorf("resolving output directory %s: %w", override, err)
	}
	// A relative override still depends on how the working directory was
	// reached.
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return "", false, fmt.Errorf("resolving output directory %s: %w", override, err)
	}
	return abs, false, nil
}

// outputLock guards an output directory across processes with an advisory
// lock file next to it. The lock file is left in place on release so every
// process locks the same inode.
type outputLock struct {
	fl *flock.Flock
}

func lockOutput(dir string) (*outputLock, error) {
	fl := flock.New(filepath.Clean(dir) + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking output directory %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return &outputLock{fl: fl}, nil
}

func (l *outputLock) release() error {
	return l.fl.Unlock()
}

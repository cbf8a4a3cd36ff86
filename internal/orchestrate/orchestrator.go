// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate validates a convert invocation and dispatches each
// Slack export archive, in order, to the conversion engine.
//
// The orchestrator is single-threaded. The worker count is only forwarded
// to the engine, which owns any parallelism inside a conversion. Every
// archive in one invocation is converted into the same output directory.
package orchestrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/slack-convert/internal/convert"
	"github.com/pdiddy/slack-convert/pkg/types"
)

// Recorder stores the outcome of each dispatch. The history store
// implements it.
type Recorder interface {
	Record(ctx context.Context, rec types.DispatchRecord) error
}

// Config holds values injected at construction.
type Config struct {
	// DefaultThreads is the worker count used when Options.Threads is empty.
	DefaultThreads int

	// TempDir is the parent for generated output directories. Empty means
	// os.TempDir.
	TempDir string
}

// Options are the parameters of one invocation.
type Options struct {
	Archives []string
	Token    string
	Output   string
	Threads  string
}

// Outcome describes one converted archive.
type Outcome struct {
	Archive  string
	Size     int64
	IsDir    bool
	Duration time.Duration
}

// Result summarizes a successful invocation.
type Result struct {
	RunID     string
	OutputDir string
	Threads   int
	Outcomes  []Outcome
}

// Orchestrator drives the engine over a list of archives.
type Orchestrator struct {
	engine   convert.Engine
	cfg      Config
	out      io.Writer
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates an orchestrator that writes progress notices to w.
func New(engine convert.Engine, cfg Config, w io.Writer) *Orchestrator {
	return &Orchestrator{
		engine: engine,
		cfg:    cfg,
		out:    w,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// SetLogger sets the logger for dispatch events.
func (o *Orchestrator) SetLogger(l zerolog.Logger) { o.logger = l }

// SetRecorder sets where dispatch outcomes are recorded. A nil recorder
// disables recording.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// Validate checks the parameters that need no filesystem access and
// returns the worker count to use. Archive existence is checked per
// archive during Run.
func Validate(opts Options, defaultThreads int) (int, error) {
	if len(opts.Archives) == 0 {
		return 0, ErrNoArchives
	}
	if opts.Token == "" {
		return 0, ErrMissingCredential
	}
	return parseThreads(opts.Threads, defaultThreads)
}

// Run validates opts and converts each archive in order. It stops at the
// first missing archive or engine failure; archives before that point have
// already been converted. Engine errors are returned unchanged.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	threads, err := Validate(opts, o.cfg.DefaultThreads)
	if err != nil {
		return nil, err
	}

	outputDir, created, err := resolveOutput(opts.Output, o.cfg.TempDir)
	if err != nil {
		return nil, err
	}
	// A fresh temp directory is private to this run.
	if !created {
		lock, err := lockOutput(outputDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.release(); err != nil {
				o.logger.Warn().Err(err).Str("output", outputDir).Msg("releasing output lock")
			}
		}()
	}

	run := types.Run{
		ID:        uuid.NewString(),
		OutputDir: outputDir,
		Threads:   threads,
		StartedAt: o.now(),
	}
	log := o.logger.With().Str("run_id", run.ID).Logger()
	log.Info().
		Str("output", outputDir).
		Int("threads", threads).
		Int("archives", len(opts.Archives)).
		Msg("starting conversion run")

	result := &Result{RunID: run.ID, OutputDir: outputDir, Threads: threads}
	for _, path := range opts.Archives {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &ArchiveNotFoundError{Path: path, Err: err}
		}

		fmt.Fprintf(o.out, "Converting data from %s (%s) ...\n", path, describeSize(info))

		started := o.now()
		convErr := o.engine.Convert(ctx, path, outputDir, opts.Token, threads)
		finished := o.now()

		o.record(ctx, log, run, path, started, finished, convErr)
		if convErr != nil {
			return nil, convErr
		}

		log.Info().Str("archive", path).Dur("took", finished.Sub(started)).Msg("archive converted")
		result.Outcomes = append(result.Outcomes, Outcome{
			Archive:  path,
			Size:     info.Size(),
			IsDir:    info.IsDir(),
			Duration: finished.Sub(started),
		})
	}

	return result, nil
}

func (o *Orchestrator) record(ctx context.Context, log zerolog.Logger, run types.Run, path string, started, finished time.Time, convErr error) {
	if o.recorder == nil {
		return
	}
	rec := types.DispatchRecord{
		RunID:      run.ID,
		Archive:    path,
		OutputDir:  run.OutputDir,
		Threads:    run.Threads,
		Status:     types.DispatchConverted,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if convErr != nil {
		rec.Status = types.DispatchFailed
		rec.Error = convErr.Error()
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("archive", path).Msg("recording dispatch failed")
	}
}

func describeSize(info os.FileInfo) string {
	if info.IsDir() {
		return "directory"
	}
	return humanize.Bytes(uint64(info.Size()))
}

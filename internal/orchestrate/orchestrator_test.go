// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/slack-convert/pkg/types"
)

// engineCall captures the arguments of one Convert call.
type engineCall struct {
	archive, output, token string
	threads                int
}

// fakeEngine records calls and fails for the archives listed in errs.
type fakeEngine struct {
	calls []engineCall
	errs  map[string]error
}

func (f *fakeEngine) Convert(_ context.Context, archivePath, outputDir, token string, threads int) error {
	f.calls = append(f.calls, engineCall{archivePath, outputDir, token, threads})
	return f.errs[archivePath]
}

// fakeRecorder keeps records in memory and optionally fails.
type fakeRecorder struct {
	records []types.DispatchRecord
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, rec types.DispatchRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

// writeArchive creates a fake export zip under dir and returns its path.
func writeArchive(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("PK fake slack export"), 0o644))
	return path
}

// newTestOrchestrator returns an orchestrator whose temp directories are
// created under a per-test base so tests can observe them.
func newTestOrchestrator(t *testing.T, eng *fakeEngine) (*Orchestrator, string, *bytes.Buffer) {
	t.Helper()
	tempBase := t.TempDir()
	var out bytes.Buffer
	o := New(eng, Config{DefaultThreads: 6, TempDir: tempBase}, &out)
	return o, tempBase, &out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_TwoArchivesDefaultOutputAndThreads(t *testing.T) {
	src := t.TempDir()
	a := writeArchive(t, src, "first.zip")
	b := writeArchive(t, src, "second.zip")

	eng := &fakeEngine{}
	o, tempBase, out := newTestOrchestrator(t, eng)

	result, err := o.Run(context.Background(), Options{Archives: []string{a, b}, Token: "xoxp-1"})
	require.NoError(t, err)

	require.Len(t, eng.calls, 2)
	assert.Equal(t, a, eng.calls[0].archive)
	assert.Equal(t, b, eng.calls[1].archive)
	assert.Equal(t, eng.calls[0].output, eng.calls[1].output, "all archives share one output directory")
	for _, c := range eng.calls {
		assert.Equal(t, "xoxp-1", c.token)
		assert.Equal(t, 6, c.threads)
	}

	outDir := eng.calls[0].output
	assert.Equal(t, tempBase, filepath.Dir(outDir))
	assert.True(t, strings.HasPrefix(filepath.Base(outDir), TempDirPrefix))
	info, err := os.Stat(outDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Len(t, dirEntries(t, tempBase), 1, "exactly one directory is created per run")

	assert.Equal(t, outDir, result.OutputDir)
	assert.Equal(t, 6, result.Threads)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, int64(len("PK fake slack export")), result.Outcomes[0].Size)

	assert.Equal(t, 2, strings.Count(out.String(), "Converting data from"))
	assert.Contains(t, out.String(), "first.zip")
}

func TestRun_EachRunGetsFreshTempDir(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	eng := &fakeEngine{}
	o, tempBase, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Archives: []string{a}, Token: "t"})
	require.NoError(t, err)
	_, err = o.Run(context.Background(), Options{Archives: []string{a}, Token: "t"})
	require.NoError(t, err)

	require.Len(t, eng.calls, 2)
	assert.NotEqual(t, eng.calls[0].output, eng.calls[1].output)
	assert.Len(t, dirEntries(t, tempBase), 2)
}

func TestRun_MissingCredential(t *testing.T) {
	eng := &fakeEngine{}
	o, tempBase, out := newTestOrchestrator(t, eng)

	// The archive does not exist either; the token check comes first.
	_, err := o.Run(context.Background(), Options{Archives: []string{"/nope/export.zip"}})
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "--token")
	assert.True(t, IsValidation(err))

	assert.Empty(t, eng.calls)
	assert.Empty(t, dirEntries(t, tempBase), "no output directory is created")
	assert.Empty(t, out.String())
}

func TestRun_NoArchives(t *testing.T) {
	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Token: "t"})
	require.ErrorIs(t, err, ErrNoArchives)
	assert.True(t, IsValidation(err))
	assert.Empty(t, eng.calls)
}

func TestRun_Threads(t *testing.T) {
	tests := []struct {
		name        string
		threads     string
		defThreads  int
		wantThreads int
		wantErr     bool
	}{
		{name: "zero", threads: "0", defThreads: 6, wantErr: true},
		{name: "negative", threads: "-2", defThreads: 6, wantErr: true},
		{name: "non-numeric", threads: "many", defThreads: 6, wantErr: true},
		{name: "float", threads: "2.5", defThreads: 6, wantErr: true},
		{name: "non-positive default", threads: "", defThreads: 0, wantErr: true},
		{name: "explicit", threads: "3", defThreads: 6, wantThreads: 3},
		{name: "whitespace trimmed", threads: " 8 ", defThreads: 6, wantThreads: 8},
		{name: "default", threads: "", defThreads: 4, wantThreads: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := writeArchive(t, t.TempDir(), "a.zip")
			eng := &fakeEngine{}
			tempBase := t.TempDir()
			o := New(eng, Config{DefaultThreads: tt.defThreads, TempDir: tempBase}, &bytes.Buffer{})

			_, err := o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Threads: tt.threads})
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParallelism)
				assert.True(t, IsValidation(err))
				assert.Empty(t, eng.calls)
				assert.Empty(t, dirEntries(t, tempBase))
				return
			}
			require.NoError(t, err)
			require.Len(t, eng.calls, 1)
			assert.Equal(t, tt.wantThreads, eng.calls[0].threads)
		})
	}
}

func TestRun_ArchiveNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing-export.zip")
	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Archives: []string{missing}, Token: "t"})
	require.ErrorIs(t, err, ErrArchiveNotFound)
	assert.True(t, IsValidation(err))

	var notFound *ArchiveNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, missing, notFound.Path)
	assert.Contains(t, err.Error(), missing)
	assert.Empty(t, eng.calls)
}

func TestRun_StopsAtFirstMissingArchive(t *testing.T) {
	src := t.TempDir()
	a := writeArchive(t, src, "a.zip")
	missing := filepath.Join(src, "b.zip")
	c := writeArchive(t, src, "c.zip")

	eng := &fakeEngine{}
	rec := &fakeRecorder{}
	o, _, _ := newTestOrchestrator(t, eng)
	o.SetRecorder(rec)

	_, err := o.Run(context.Background(), Options{Archives: []string{a, missing, c}, Token: "t"})

	var notFound *ArchiveNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, missing, notFound.Path)

	require.Len(t, eng.calls, 1, "archives before the missing one are dispatched, later ones are not")
	assert.Equal(t, a, eng.calls[0].archive)
	require.Len(t, rec.records, 1)
	assert.Equal(t, types.DispatchConverted, rec.records[0].Status)
}

func TestRun_EngineErrorPropagatesUnchanged(t *testing.T) {
	src := t.TempDir()
	a := writeArchive(t, src, "a.zip")
	b := writeArchive(t, src, "b.zip")
	c := writeArchive(t, src, "c.zip")

	engineErr := errors.New("malformed users.json")
	eng := &fakeEngine{errs: map[string]error{b: engineErr}}
	rec := &fakeRecorder{}
	o, _, _ := newTestOrchestrator(t, eng)
	o.SetRecorder(rec)

	result, err := o.Run(context.Background(), Options{Archives: []string{a, b, c}, Token: "t"})
	assert.Nil(t, result)
	assert.Same(t, engineErr, err)
	assert.False(t, IsValidation(err))

	require.Len(t, eng.calls, 2)
	assert.Equal(t, b, eng.calls[1].archive)

	require.Len(t, rec.records, 2)
	assert.Equal(t, types.DispatchConverted, rec.records[0].Status)
	assert.Equal(t, types.DispatchFailed, rec.records[1].Status)
	assert.Equal(t, "malformed users.json", rec.records[1].Error)
	assert.Equal(t, rec.records[0].RunID, rec.records[1].RunID)
	assert.Equal(t, eng.calls[0].output, rec.records[1].OutputDir)
}

func TestRun_RecorderFailureDoesNotFailRun(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)
	o.SetRecorder(&fakeRecorder{err: errors.New("database is locked")})

	result, err := o.Run(context.Background(), Options{Archives: []string{a}, Token: "t"})
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 1)
}

func TestRun_RelativeOutputIsResolved(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	base := t.TempDir()
	chdir(t, base)

	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Output: "out/../converted"})
	require.NoError(t, err)

	resolvedBase, err := filepath.EvalSymlinks(base)
	require.NoError(t, err)
	require.Len(t, eng.calls, 1)
	assert.Equal(t, filepath.Join(resolvedBase, "converted"), eng.calls[0].output)
	assert.True(t, filepath.IsAbs(eng.calls[0].output))
}

func TestRun_SymlinkedOutputIsResolved(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	b := writeArchive(t, t.TempDir(), "b.zip")
	base := t.TempDir()
	target := filepath.Join(base, "real-output")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(base, "link-output")
	require.NoError(t, os.Symlink(target, link))

	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Archives: []string{a, b}, Token: "t", Output: link})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	require.Len(t, eng.calls, 2)
	assert.Equal(t, want, eng.calls[0].output)
	assert.Equal(t, want, eng.calls[1].output)
}

func TestRun_DotDotAfterSymlinkFollowsLinkTarget(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "a", "b"), 0o755))
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(filepath.Join(base, "a", "b"), link))

	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	// Joined by hand: filepath.Join would clean "link/.." away.
	output := link + string(os.PathSeparator) + ".." + string(os.PathSeparator) + "out"
	_, err = o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Output: output})
	require.NoError(t, err)

	want := filepath.Join(base, "a", "out")
	require.Len(t, eng.calls, 1)
	assert.Equal(t, want, eng.calls[0].output)
	assert.DirExists(t, want)
	assert.NoDirExists(t, filepath.Join(base, "out"))
}

func TestRun_OutputLocked(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	out := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, os.Mkdir(out, 0o755))
	resolved, err := filepath.EvalSymlinks(out)
	require.NoError(t, err)

	held := flock.New(resolved + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err = o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Output: out})
	require.ErrorIs(t, err, ErrOutputLocked)
	assert.False(t, IsValidation(err))
	assert.Empty(t, eng.calls)
}

func TestRun_ReleasesOutputLock(t *testing.T) {
	a := writeArchive(t, t.TempDir(), "a.zip")
	out := filepath.Join(t.TempDir(), "converted")

	eng := &fakeEngine{}
	o, _, _ := newTestOrchestrator(t, eng)

	_, err := o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Output: out})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(out)
	require.NoError(t, err)
	assert.FileExists(t, resolved+".lock", "lock file stays so every process locks the same inode")

	other := flock.New(resolved + ".lock")
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after the run")
	require.NoError(t, other.Unlock())

	// A second run can take the lock again.
	_, err = o.Run(context.Background(), Options{Archives: []string{a}, Token: "t", Output: out})
	require.NoError(t, err)
}

func TestRun_DirectoryArchive(t *testing.T) {
	exportDir := filepath.Join(t.TempDir(), "slack-export")
	require.NoError(t, os.Mkdir(exportDir, 0o755))

	eng := &fakeEngine{}
	o, _, out := newTestOrchestrator(t, eng)

	result, err := o.Run(context.Background(), Options{Archives: []string{exportDir}, Token: "t"})
	require.NoError(t, err)
	assert.True(t, result.Outcomes[0].IsDir)
	assert.Contains(t, out.String(), "(directory)")
}

func TestValidate(t *testing.T) {
	threads, err := Validate(Options{Archives: []string{"/does/not/matter.zip"}, Token: "t"}, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, threads)

	_, err = Validate(Options{Archives: []string{"a.zip"}, Token: "", Threads: "0"}, 6)
	assert.ErrorIs(t, err, ErrMissingCredential, "credential is checked before threads")

	_, err = Validate(Options{Archives: []string{"a.zip"}, Token: "t", Threads: "x"}, 6)
	assert.ErrorIs(t, err, ErrInvalidParallelism)
}

package downloader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/trackdl/models"
)

const trackURL = "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

// --- Mock types ---

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args)
	stdout, _ := a.Get(0).([]byte)
	stderr, _ := a.Get(1).([]byte)
	return stdout, stderr, a.Error(2)
}

// writeOutput simulates spotdl by creating name next to the --output template.
func writeOutput(t *testing.T, name string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		argv := args.Get(2).([]string)
		dir := filepath.Dir(argv[2])
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("ID3 "+name), 0o644))
	}
}

type fixture struct {
	root   string
	cfg    Config
	runner *MockRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	ffmpeg := filepath.Join(root, "ffmpeg", "bin", "ffmpeg")
	spotdl := filepath.Join(root, "venv", "bin", "spotdl")
	for _, p := range []string{ffmpeg, spotdl} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	}

	return &fixture{
		root: root,
		cfg: Config{
			FFmpegPath:    ffmpeg,
			SpotdlPath:    spotdl,
			DefaultFolder: filepath.Join(root, "temp"),
			Isolate:       true,
		},
		runner: new(MockRunner),
	}
}

func (f *fixture) service() *Service {
	return NewService(f.cfg, WithRunner(f.runner))
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var dErr *Error
	require.True(t, errors.As(err, &dErr), "expected *Error, got %T", err)
	assert.Equal(t, kind, dErr.Kind)
	return dErr
}

// --- Tests ---

func TestDownload_Success(t *testing.T) {
	f := newFixture(t)
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(writeOutput(t, "Rick Astley - Never Gonna Give You Up.mp3")).
		Return([]byte("Downloaded"), nil, nil).Once()

	file, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})
	require.NoError(t, err)

	assert.Equal(t, "Rick Astley - Never Gonna Give You Up.mp3", file.Name)
	assert.True(t, strings.HasPrefix(file.Path, f.cfg.DefaultFolder+string(os.PathSeparator)))

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "ID3 Rick Astley - Never Gonna Give You Up.mp3", string(data))

	args := f.runner.Calls[0].Arguments.Get(2).([]string)
	require.Len(t, args, 5)
	assert.Equal(t, trackURL, args[0])
	assert.Equal(t, "--output", args[1])
	assert.Equal(t, OutputTemplate, filepath.Base(args[2]))
	assert.Equal(t, filepath.Dir(file.Path), filepath.Dir(args[2]))
	assert.Equal(t, "--ffmpeg", args[3])
	assert.Equal(t, f.cfg.FFmpegPath, args[4])

	f.runner.AssertExpectations(t)
}

func TestDownload_SharedFolderWhenNotIsolated(t *testing.T) {
	f := newFixture(t)
	f.cfg.Isolate = false
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(writeOutput(t, "A - B.mp3")).
		Return(nil, nil, nil).Once()

	file, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.cfg.DefaultFolder, "A - B.mp3"), file.Path)
	args := f.runner.Calls[0].Arguments.Get(2).([]string)
	assert.Equal(t, filepath.Join(f.cfg.DefaultFolder, OutputTemplate), args[2])
}

func TestDownload_CustomFolder(t *testing.T) {
	f := newFixture(t)
	f.cfg.Isolate = false
	custom := filepath.Join(f.root, "custom", "nested")
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(writeOutput(t, "A - B.mp3")).
		Return(nil, nil, nil).Once()

	file, err := f.service().Download(context.Background(), models.DownloadRequest{
		SourceURL:    trackURL,
		OutputFolder: custom,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(custom, "A - B.mp3"), file.Path)
}

func TestDownload_MissingExecutable(t *testing.T) {
	tests := []struct {
		name    string
		remove  func(Config) string
		message string
	}{
		{"ffmpeg", func(c Config) string { return c.FFmpegPath }, "ffmpeg not found at: "},
		{"spotdl", func(c Config) string { return c.SpotdlPath }, "spotdl not found at: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			missing := tt.remove(f.cfg)
			require.NoError(t, os.Remove(missing))

			_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})

			dErr := requireKind(t, err, KindConfiguration)
			assert.Equal(t, tt.message+missing, dErr.Message)
			assert.Equal(t, http.StatusInternalServerError, dErr.StatusCode())
			f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDownload_ProcessFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Return([]byte("Processing query"), []byte("LookupError: track not found"), errors.New("exit status 1")).Once()

	_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})

	dErr := requireKind(t, err, KindProcess)
	assert.Equal(t, "Error downloading track: exit status 1", dErr.Message)
	assert.Equal(t, "Processing query", dErr.Stdout)
	assert.Equal(t, "LookupError: track not found", dErr.Stderr)
	assert.Equal(t, http.StatusInternalServerError, dErr.StatusCode())
}

func TestDownload_NoFileProduced(t *testing.T) {
	f := newFixture(t)
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Return(nil, nil, nil).Once()

	_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})

	dErr := requireKind(t, err, KindNotFound)
	assert.Equal(t, "No file was downloaded.", dErr.Message)
	assert.Equal(t, http.StatusNotFound, dErr.StatusCode())

	entries, err := os.ReadDir(f.cfg.DefaultFolder)
	require.NoError(t, err)
	assert.Empty(t, entries, "empty isolated folder should be removed")
}

func TestDownload_IgnoresOtherExtensions(t *testing.T) {
	f := newFixture(t)
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(writeOutput(t, "A - B.m4a")).
		Return(nil, nil, nil).Once()

	_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})
	requireKind(t, err, KindNotFound)
}

func TestDownload_SelectsMostRecentFile(t *testing.T) {
	f := newFixture(t)
	f.cfg.Isolate = false
	require.NoError(t, os.MkdirAll(f.cfg.DefaultFolder, 0o755))

	older := filepath.Join(f.cfg.DefaultFolder, "z - newest name.mp3")
	newer := filepath.Join(f.cfg.DefaultFolder, "a - oldest name.mp3")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o644))
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now, now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).Return(nil, nil, nil).Once()

	file, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})
	require.NoError(t, err)
	assert.Equal(t, newer, file.Path)
}

func TestDownload_RelativeFolderResolvedFirst(t *testing.T) {
	f := newFixture(t)
	f.cfg.Isolate = false
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).Return(nil, nil, nil).Once()

	var created []string
	svc := f.service()
	svc.mkdirAll = func(path string, _ os.FileMode) error {
		created = append(created, path)
		return nil
	}

	_, err := svc.Download(context.Background(), models.DownloadRequest{
		SourceURL:    trackURL,
		OutputFolder: filepath.Join("relative", "music"),
	})
	// The folder was never really created, so listing it fails.
	requireKind(t, err, KindUnexpected)

	want, err := filepath.Abs(filepath.Join("relative", "music"))
	require.NoError(t, err)
	require.Equal(t, []string{want}, created)

	args := f.runner.Calls[0].Arguments.Get(2).([]string)
	assert.Equal(t, filepath.Join(want, OutputTemplate), args[2])
}

func TestDownload_FolderCreationFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	svc.mkdirAll = func(string, os.FileMode) error { return os.ErrPermission }

	_, err := svc.Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})

	dErr := requireKind(t, err, KindUnexpected)
	assert.True(t, strings.HasPrefix(dErr.Message, "Internal server error: "))
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownload_InvalidSourceURL(t *testing.T) {
	f := newFixture(t)

	_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: "   "})

	dErr := requireKind(t, err, KindInvalidInput)
	assert.Equal(t, http.StatusUnprocessableEntity, dErr.StatusCode())
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownload_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(func(args mock.Arguments) {
			runCtx := args.Get(0).(context.Context)
			assert.NoError(t, runCtx.Err())
			writeOutput(t, "A - B.mp3")(args)
		}).
		Return(nil, nil, nil).Once()

	_, err := f.service().Download(ctx, models.DownloadRequest{SourceURL: trackURL})
	require.NoError(t, err)
}

func TestDownload_ProcessTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.ProcessTimeout = 20 * time.Millisecond

	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, nil, errors.New("signal: killed")).Once()

	_, err := f.service().Download(context.Background(), models.DownloadRequest{SourceURL: trackURL})

	dErr := requireKind(t, err, KindProcess)
	assert.Contains(t, dErr.Message, "process timed out after 20ms")
}

func TestDownload_ConcurrentRequestsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.runner.On("Run", mock.Anything, f.cfg.SpotdlPath, mock.Anything).
		Run(func(args mock.Arguments) {
			argv := args.Get(2).([]string)
			id := argv[0][strings.LastIndex(argv[0], "/")+1:]
			// Stagger so later requests write newer files.
			time.Sleep(5 * time.Millisecond)
			writeOutput(t, "Artist - "+id+".mp3")(args)
		}).
		Return(nil, nil, nil)

	svc := f.service()
	const n = 5
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://open.spotify.com/track/track%d", i)
			file, err := svc.Download(context.Background(), models.DownloadRequest{SourceURL: url})
			if assert.NoError(t, err) {
				results[i] = file.Name
			}
		}(i)
	}
	wg.Wait()

	for i, name := range results {
		assert.Equal(t, fmt.Sprintf("Artist - track%d.mp3", i), name)
	}
}

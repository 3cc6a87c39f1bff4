package downloader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/trackdl/logger"
	"github.com/nijaru/trackdl/models"
	"github.com/nijaru/trackdl/validation"
)

const (
	// OutputTemplate is the file name pattern handed to spotdl.
	OutputTemplate = "{artist} - {title}.mp3"
	// AudioExt is the extension of files considered as download output.
	AudioExt = ".mp3"
)

type Config struct {
	FFmpegPath     string
	SpotdlPath     string
	DefaultFolder  string
	Isolate        bool
	ProcessTimeout time.Duration
}

type Service struct {
	cfg      Config
	runner   Runner
	stat     func(string) (os.FileInfo, error)
	mkdirAll func(string, os.FileMode) error
	newID    func() string
}

type Option func(*Service)

// WithRunner replaces the os/exec runner.
func WithRunner(r Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		runner:   ExecRunner{},
		stat:     os.Stat,
		mkdirAll: os.MkdirAll,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Download runs spotdl for req and returns the newest audio file it left in
// the output folder. The child process is detached from ctx cancellation,
// so a dropped client connection does not stop it.
func (s *Service) Download(ctx context.Context, req models.DownloadRequest) (*models.OutputFile, error) {
	const op = "Service.Download"
	log := logger.FromContext(ctx)

	sourceURL, err := validation.ValidateSourceURL(req.SourceURL)
	if err != nil {
		return nil, InvalidInput(op, err, err.Error())
	}
	if err := validation.ValidateFolder(req.OutputFolder); err != nil {
		return nil, InvalidInput(op, err, err.Error())
	}

	paths, err := s.preparePaths(req.OutputFolder)
	if err != nil {
		return nil, Unexpected(op, err)
	}

	cwd, _ := os.Getwd()
	log = log.WithFields(logrus.Fields{
		"source_url":        sourceURL,
		"current_directory": cwd,
		"download_folder":   paths.OutputFolder,
	})
	log.Info("Using download folder")

	if err := s.checkTools(op, paths); err != nil {
		log.WithError(err).Error("Required executable missing")
		return nil, err
	}

	target := paths.OutputFolder
	if s.cfg.Isolate {
		target = filepath.Join(paths.OutputFolder, s.newID())
		if err := s.mkdirAll(target, 0o755); err != nil {
			return nil, Unexpected(op, errors.Wrap(err, "failed to create isolated download folder"))
		}
		log = log.WithField("isolated_folder", target)
	}

	file, err := s.run(ctx, log, sourceURL, target, paths)
	if err != nil {
		if s.cfg.Isolate {
			// Only succeeds when the folder is still empty.
			_ = os.Remove(target)
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"file": file.Path,
		"size": file.Size,
	}).Info("Serving downloaded file")

	return file, nil
}

func (s *Service) run(ctx context.Context, log *logrus.Entry, sourceURL, target string, paths models.ResolvedPaths) (*models.OutputFile, error) {
	const op = "Service.Download"

	args := []string{
		sourceURL,
		"--output", filepath.Join(target, OutputTemplate),
		"--ffmpeg", paths.TranscoderPath,
	}

	runCtx := context.WithoutCancel(ctx)
	if s.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.cfg.ProcessTimeout)
		defer cancel()
	}

	log.WithField("command", paths.DownloaderPath+" "+strings.Join(args, " ")).Info("Running downloader")

	start := time.Now()
	stdout, stderr, err := s.runner.Run(runCtx, paths.DownloaderPath, args)
	log = log.WithField("duration", time.Since(start))

	if len(stdout) > 0 {
		log.WithField("stdout", string(stdout)).Debug("Downloader output")
	}
	if len(stderr) > 0 {
		log.WithField("stderr", string(stderr)).Warn("Downloader error output")
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(err, "process timed out after %s", s.cfg.ProcessTimeout)
		}
		log.WithError(err).WithFields(logrus.Fields{
			"stdout": string(stdout),
			"stderr": string(stderr),
		}).Error("Downloader failed")
		return nil, ProcessError(op, err, stdout, stderr)
	}

	file, err := LatestFile(target, AudioExt)
	if err != nil {
		if errors.Is(err, errNoMatch) {
			log.Warn("Downloader exited cleanly but produced no file")
			return nil, NotFound(op, err)
		}
		return nil, Unexpected(op, err)
	}

	return file, nil
}

// preparePaths resolves the output folder against the working directory
// and creates it.
func (s *Service) preparePaths(folder string) (models.ResolvedPaths, error) {
	if folder == "" {
		folder = s.cfg.DefaultFolder
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return models.ResolvedPaths{}, errors.Wrapf(err, "failed to resolve %s", folder)
	}

	if err := s.mkdirAll(abs, 0o755); err != nil {
		return models.ResolvedPaths{}, errors.Wrapf(err, "failed to create %s", abs)
	}

	return models.ResolvedPaths{
		DownloaderPath: s.cfg.SpotdlPath,
		TranscoderPath: s.cfg.FFmpegPath,
		OutputFolder:   abs,
	}, nil
}

func (s *Service) checkTools(op string, paths models.ResolvedPaths) error {
	tools := []struct {
		name string
		path string
	}{
		{"ffmpeg", paths.TranscoderPath},
		{"spotdl", paths.DownloaderPath},
	}

	for _, tool := range tools {
		if _, err := s.stat(tool.path); err != nil {
			return ConfigurationError(op, tool.name, tool.path)
		}
	}
	return nil
}

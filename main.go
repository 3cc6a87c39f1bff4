package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nijaru/trackdl/config"
	"github.com/nijaru/trackdl/diagnostics"
	"github.com/nijaru/trackdl/downloader"
	"github.com/nijaru/trackdl/handlers"
	"github.com/nijaru/trackdl/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log, logFile, err := logger.New(logger.Options{
		Dir:    cfg.LogDir,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}
	defer logFile.Close()

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server stopped with error")
		logFile.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	if err := cfg.PrepareDirs(); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"ffmpeg_path":       cfg.FFmpegPath,
		"spotdl_path":       cfg.SpotdlPath,
		"download_folder":   cfg.DownloadFolder,
		"isolate_downloads": cfg.IsolateDownloads,
		"process_timeout":   cfg.ProcessTimeout,
	}).Info("Configuration loaded")

	svc := downloader.NewService(downloader.Config{
		FFmpegPath:     cfg.FFmpegPath,
		SpotdlPath:     cfg.SpotdlPath,
		DefaultFolder:  cfg.DownloadFolder,
		Isolate:        cfg.IsolateDownloads,
		ProcessTimeout: cfg.ProcessTimeout,
	})
	checker := diagnostics.NewChecker(diagnostics.Paths{
		FFmpegPath:     cfg.FFmpegPath,
		SpotdlPath:     cfg.SpotdlPath,
		DownloadFolder: cfg.DownloadFolder,
	})

	server := handlers.NewServer(cfg, handlers.NewHandler(svc, checker), handlers.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "could not listen on :%s", cfg.ServerPort)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}

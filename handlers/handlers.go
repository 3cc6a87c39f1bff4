package handlers

import (
	"context"
	"mime"
	"net/http"
	"os"

	"github.com/pkg/errors"

	"github.com/nijaru/trackdl/downloader"
	"github.com/nijaru/trackdl/logger"
	"github.com/nijaru/trackdl/models"
	"github.com/nijaru/trackdl/utils"
)

// Downloader fetches one track and returns the produced file.
type Downloader interface {
	Download(ctx context.Context, req models.DownloadRequest) (*models.OutputFile, error)
}

// PathChecker reports configured paths for the diagnostics endpoint.
type PathChecker interface {
	Check(folder string) models.PathReport
}

type Handler struct {
	downloader Downloader
	checker    PathChecker
}

func NewHandler(d Downloader, c PathChecker) *Handler {
	return &Handler{downloader: d, checker: c}
}

// HandleDownload serves GET /download.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.HandleDownload"

	// GET patterns also match HEAD; a HEAD must not start a download.
	if r.Method == http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		utils.HandleError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	file, err := h.downloader.Download(r.Context(), models.DownloadRequest{
		SourceURL:    query.Get("spotify_url"),
		OutputFolder: query.Get("download_folder"),
	})
	if err != nil {
		utils.RespondWithError(w, r, err)
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		utils.RespondWithError(w, r, downloader.Unexpected(op, errors.Wrap(err, "failed to open downloaded file")))
		return
	}
	defer f.Close()

	logger.FromContext(r.Context()).WithField("file", file.Name).Info("Sending file")

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": file.Name,
	}))
	http.ServeContent(w, r, file.Name, file.ModTime, f)
}

// HandleCheckPaths serves GET /check-paths.
func (h *Handler) HandleCheckPaths(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Check(r.URL.Query().Get("download_folder"))
	utils.RespondWithJSON(w, http.StatusOK, report)
}

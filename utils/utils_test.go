package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/nijaru/trackdl/downloader"
)

func TestHandleError(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleError(rr, "Test error", http.StatusBadRequest)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := `{"detail":"Test error"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "not found",
			err:        downloader.NotFound("op", nil),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"detail":"No file was downloaded."}`,
		},
		{
			name:       "configuration",
			err:        downloader.ConfigurationError("op", "ffmpeg", "/x/ffmpeg"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"ffmpeg not found at: /x/ffmpeg"}`,
		},
		{
			name:       "wrapped process error",
			err:        errors.Wrap(downloader.ProcessError("op", errors.New("exit status 2"), nil, nil), "handler"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"Error downloading track: exit status 2"}`,
		},
		{
			name:       "plain error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"Internal server error: disk on fire"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/download", nil)

			RespondWithError(rr, req, tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestRespondWithJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithJSON(rr, http.StatusOK, map[string]bool{"ok": true})

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"ok":true}` {
		t.Errorf("body = %s", got)
	}
}

func TestRespondWithJSON_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithJSON(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

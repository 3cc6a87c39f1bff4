package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/trackdl/downloader"
	"github.com/nijaru/trackdl/logger"
)

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Detail: message})
}

// RespondWithError maps err to its status code and writes the detail body.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	dErr := downloader.AsError(err)

	fields := logrus.Fields{
		"status_code": dErr.StatusCode(),
		"kind":        dErr.Kind.String(),
		"op":          dErr.Op,
	}
	entry := logger.FromContext(r.Context()).WithFields(fields).WithError(err)
	if dErr.StatusCode() >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request failed")
	}

	HandleError(w, dErr.Message, dErr.StatusCode())
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		HandleError(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

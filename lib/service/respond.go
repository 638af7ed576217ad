// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/fault"
)

// StatusFor maps an error's fault category to an HTTP status code.
func StatusFor(err error) int {
	switch fault.CategoryOf(err) {
	case fault.CategoryValidation:
		return http.StatusBadRequest
	case fault.CategoryNotFound:
		return http.StatusNotFound
	case fault.CategoryTransientNetwork:
		return http.StatusServiceUnavailable
	case fault.CategoryDataIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

// WriteJSON writes body as JSON with the given status.
func WriteJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	// The status line is already out; an encoding failure can only
	// truncate the body.
	_ = json.NewEncoder(writer).Encode(body)
}

// WriteError writes err as an [ErrorBody] with the status from
// [StatusFor]. Internal errors are logged; their message is still
// returned since the API is operator-facing.
func WriteError(writer http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	WriteJSON(writer, status, ErrorBody{
		Error:    err.Error(),
		Category: string(fault.CategoryOf(err)),
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AccessLog wraps next so every request is logged at debug level with
// its status and duration. The signature matches gorilla/mux
// middleware.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
			next.ServeHTTP(recorder, request)
			logger.Debug("http request",
				"method", request.Method,
				"path", request.URL.Path,
				"status", recorder.status,
				"duration", time.Since(started),
			)
		})
	}
}

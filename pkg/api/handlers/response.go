package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/api/middleware"
	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
)

// maxBodyBytes bounds request bodies. Answers are small JSON objects.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case types.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case types.IsUnauthorized(err):
		http.Error(w, err.Error(), http.StatusForbidden)
	case types.IsInvalidArgument(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		log.Error("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decodeBody reads an optional JSON body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return types.InvalidArgument("malformed request body: %v", err)
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		log.Error("failed to get user from context")
		http.Error(w, "Failed to get user from context", http.StatusUnauthorized)
	}
	return uid, ok
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/gorilla/mux"
)

func HandleListRuns(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		runs, err := repository.ListRuns(r.Context(), limit)
		if err != nil {
			log.Error("failed to list runs: %v", err)
			http.Error(w, "Failed to list runs", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func HandleGetRun(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := repository.GetRun(r.Context(), mux.Vars(r)["roomID"])
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Run not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get run: %v", err)
			http.Error(w, "Failed to get run", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/monitor"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/scheduler"

	"github.com/rs/zerolog/log"
)

type TypesRequest struct {
	Types []string `json:"types"`
}

type MonitoringResponse struct {
	Active  []models.TournamentType `json:"active"`
	Changed []models.TournamentType `json:"changed,omitempty"`
}

type CycleResponse struct {
	ID         string                  `json:"id"`
	Started    time.Time               `json:"started"`
	DurationMS int64                   `json:"duration_ms"`
	Finished   []string                `json:"finished"`
	Awarded    int                     `json:"awarded"`
	Exhausted  []models.TournamentType `json:"exhausted"`
	Skipped    []models.TournamentType `json:"skipped"`
	Failed     []models.TournamentType `json:"failed"`
	Error      string                  `json:"error,omitempty"`
}

func handleHealth(checkers map[string]Checker) http.HandlerFunc {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "healthy"}
		for _, name := range names {
			if err := checkers[name].Check(ctx); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
				report[name] = err.Error()
				report["status"] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		writeJSON(w, status, report)
	}
}

func handleStatus(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MonitoringResponse{Active: ctrl.Active()})
	}
}

func handleRun(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := ctrl.RunNow(r.Context())
		if errors.Is(err, scheduler.ErrIdle) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if result == nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := toCycleResponse(result)
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}

func handleLaunch(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, ok := readTypes(w, r)
		if !ok {
			return
		}
		changed := ctrl.Launch(types...)
		writeJSON(w, http.StatusOK, MonitoringResponse{Active: ctrl.Active(), Changed: changed})
	}
}

func handleBreak(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, ok := readTypes(w, r)
		if !ok {
			return
		}
		changed := ctrl.Break(types...)
		writeJSON(w, http.StatusOK, MonitoringResponse{Active: ctrl.Active(), Changed: changed})
	}
}

func readTypes(w http.ResponseWriter, r *http.Request) ([]models.TournamentType, bool) {
	var req TypesRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if len(req.Types) == 0 {
		writeError(w, http.StatusBadRequest, "types are required")
		return nil, false
	}

	types, err := models.ParseTournamentTypes(req.Types)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return types, true
}

func toCycleResponse(r *monitor.CycleResult) CycleResponse {
	return CycleResponse{
		ID:         r.ID,
		Started:    r.Started,
		DurationMS: r.Duration.Milliseconds(),
		Finished:   r.Finished,
		Awarded:    r.Awarded,
		Exhausted:  r.Exhausted,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
	}
}

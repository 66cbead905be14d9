package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bioscopeai/bioscope-core/internal/api/response"
	app "github.com/bioscopeai/bioscope-core/internal/app/classification"
	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
)

// resultResponse is the wire representation of a classification result.
type resultResponse struct {
	ID         uuid.UUID  `json:"id"`
	ImageID    uuid.UUID  `json:"image_id"`
	JobID      *uuid.UUID `json:"classification_id,omitempty"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	ModelName  string     `json:"model_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toResultResponses(results []*domain.Result) []resultResponse {
	out := make([]resultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, resultResponse{
			ID:         r.ResultID(),
			ImageID:    r.ImageID(),
			JobID:      r.JobID(),
			Label:      r.Label(),
			Confidence: r.Confidence(),
			ModelName:  r.ModelName(),
			CreatedAt:  r.CreatedAt(),
		})
	}
	return out
}

// NewListJobResultsHandler returns the handler for
// GET /api/classifications/{jobID}/results.
func NewListJobResultsHandler(results domain.ResultRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseIDParam(w, r, "jobID")
		if !ok {
			return
		}

		list, err := results.ListResultsByJob(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list results", nil)
			return
		}
		response.JSON(w, toResultResponses(list))
	}
}

// NewListImageResultsHandler returns the handler for
// GET /api/images/{imageID}/results.
func NewListImageResultsHandler(results domain.ResultRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imageID, ok := parseIDParam(w, r, "imageID")
		if !ok {
			return
		}

		list, err := results.ListResultsByImage(r.Context(), imageID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list results", nil)
			return
		}
		response.JSON(w, toResultResponses(list))
	}
}

// NewTodayStatisticsHandler returns the handler for
// GET /api/results/statistics/today.
func NewTodayStatisticsHandler(svc *app.StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.TodayStatistics(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute statistics", nil)
			return
		}
		response.JSON(w, stats)
	}
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the liveness handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]string{"status": "ok"})
	}
}

// NewReadinessHandler returns the readiness handler, which checks the
// database and cache connections.
func NewReadinessHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "cache": "ok"}
		healthy := true

		if err := db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "NOT_READY", "Dependency check failed", checks)
			return
		}
		response.JSON(w, checks)
	}
}

// Package api assembles the HTTP surface of the service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/bioscopeai/bioscope-core/internal/api/middleware"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Logger    *logger.Logger
	RateLimit *mw.RateLimit

	HealthHandler    http.HandlerFunc
	ReadinessHandler http.HandlerFunc

	RunJob     http.HandlerFunc
	ListJobs   http.HandlerFunc
	GetJob     http.HandlerFunc
	DeleteJob  http.HandlerFunc
	JobResults http.HandlerFunc

	ImageResults    http.HandlerFunc
	TodayStatistics http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logging(deps.Logger))
	r.Use(mw.Recovery(deps.Logger))

	// Probes are unauthenticated.
	r.Get("/health", deps.HealthHandler)
	r.Get("/ready", deps.ReadinessHandler)

	r.Group(func(r chi.Router) {
		r.Use(mw.Identity)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/classifications/run", deps.RunJob)
		r.Get("/api/classifications", deps.ListJobs)
		r.Get("/api/classifications/{jobID}", deps.GetJob)
		r.Delete("/api/classifications/{jobID}", deps.DeleteJob)
		r.Get("/api/classifications/{jobID}/results", deps.JobResults)

		r.Get("/api/images/{imageID}/results", deps.ImageResults)
		r.Get("/api/results/statistics/today", deps.TodayStatistics)
	})

	return r
}

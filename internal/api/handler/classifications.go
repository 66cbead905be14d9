// Package handler contains the HTTP handlers for the classification API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	mw "github.com/bioscopeai/bioscope-core/internal/api/middleware"
	"github.com/bioscopeai/bioscope-core/internal/api/response"
	app "github.com/bioscopeai/bioscope-core/internal/app/classification"
	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// runJobRequest is the body of POST /api/classifications/run.
type runJobRequest struct {
	DatasetID *uuid.UUID `json:"dataset_id"`
	ImageID   *uuid.UUID `json:"image_id"`
	ModelName string     `json:"model_name" validate:"omitempty,max=100"`
}

// jobResponse is the wire representation of a classification job.
type jobResponse struct {
	ID        uuid.UUID  `json:"id"`
	DatasetID *uuid.UUID `json:"dataset_id,omitempty"`
	ImageID   *uuid.UUID `json:"image_id,omitempty"`
	ModelName string     `json:"model_name,omitempty"`
	Status    string     `json:"status"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:        job.JobID(),
		DatasetID: job.DatasetID(),
		ImageID:   job.ImageID(),
		ModelName: job.ModelName(),
		Status:    string(job.Status()),
		CreatedBy: job.CreatedBy(),
		CreatedAt: job.CreatedAt(),
		UpdatedAt: job.UpdatedAt(),
	}
}

// NewRunJobHandler returns the handler for POST /api/classifications/run.
// On success it responds 201 with the created job's id and status; the rest
// of the lifecycle is observable via polling.
func NewRunJobHandler(svc *app.JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_IDENTITY", "Missing caller identity", nil)
			return
		}

		var req runJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		job, err := svc.CreateAndPublishJob(r.Context(), userID, req.DatasetID, req.ImageID, req.ModelName)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoTargetSpecified):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Exactly one of dataset_id or image_id must be provided", nil)
			case errors.Is(err, domain.ErrAmbiguousTarget):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Exactly one of dataset_id or image_id must be provided", nil)
			case errors.Is(err, domain.ErrImageNotFound):
				response.Error(w, http.StatusNotFound, "IMAGE_NOT_FOUND", "Image does not exist", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "JOB_SUBMISSION_FAILED",
					"Failed to submit classification job", nil)
			}
			return
		}

		response.Created(w, map[string]any{
			"id":     job.JobID(),
			"status": string(job.Status()),
		})
	}
}

// NewListJobsHandler returns the handler for GET /api/classifications.
// Supported query filters: status, dataset_id, image_id, created_by.
func NewListJobsHandler(svc *app.JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter domain.JobFilter

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := domain.ParseJobStatus(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown status filter", nil)
				return
			}
			filter.Status = &status
		}

		for param, dst := range map[string]**uuid.UUID{
			"dataset_id": &filter.DatasetID,
			"image_id":   &filter.ImageID,
			"created_by": &filter.CreatedBy,
		} {
			raw := r.URL.Query().Get(param)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", param+" must be a valid UUID", nil)
				return
			}
			*dst = &id
		}

		jobs, err := svc.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}

		out := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, toJobResponse(job))
		}
		response.JSON(w, out)
	}
}

// NewGetJobHandler returns the handler for GET /api/classifications/{jobID}.
func NewGetJobHandler(svc *app.JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseIDParam(w, r, "jobID")
		if !ok {
			return
		}

		job, err := svc.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Classification job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		response.JSON(w, toJobResponse(job))
	}
}

// NewDeleteJobHandler returns the handler for DELETE /api/classifications/{jobID}.
func NewDeleteJobHandler(svc *app.JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseIDParam(w, r, "jobID")
		if !ok {
			return
		}

		if err := svc.DeleteJob(r.Context(), jobID); err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Classification job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete job", nil)
			return
		}

		response.NoContent(w)
	}
}

// parseIDParam extracts and parses a UUID path parameter, writing a 400 on
// failure.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

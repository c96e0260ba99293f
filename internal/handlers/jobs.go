package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studylog-backend/internal/middleware"
	"studylog-backend/internal/models"
)

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// JobHandler enqueues the summary backfill job and exposes job status
// polling for clients that don't hold a websocket open.
type JobHandler struct {
	jobRepo jobStore
	redis   *redis.Client
}

func NewJobHandler(jobRepo jobStore, redisClient *redis.Client) *JobHandler {
	return &JobHandler{jobRepo: jobRepo, redis: redisClient}
}

// EnqueueBackfill creates a summary-backfill job for the current user and
// pushes it onto the worker queue. The rebuild itself runs asynchronously;
// completion arrives over the user's websocket and in the job row.
func (h *JobHandler) EnqueueBackfill(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	job := &models.Job{
		UserID: userID,
		Type:   models.JobTypeSummaryBackfill,
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	if h.redis == nil {
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Backfill queue is unavailable", r))
		return
	}

	if err := h.redis.LPush(r.Context(), "queue:summary-backfill", string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue summary-backfill job %s: %v", job.ID, err)
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue backfill job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
	})
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job id", r))
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil || job.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

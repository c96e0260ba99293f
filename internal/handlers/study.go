package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"studylog-backend/internal/middleware"
	"studylog-backend/internal/models"
)

type studyService interface {
	RecordSession(ctx context.Context, userID uuid.UUID, req models.RecordSessionRequest) (*models.StudySession, error)
	Log(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

type StudyHandler struct {
	study studyService
}

func NewStudyHandler(study studyService) *StudyHandler {
	return &StudyHandler{study: study}
}

// Record creates a study session and folds it into the daily summaries.
func (h *StudyHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.RecordSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	session, err := h.study.RecordSession(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Log returns the most recent sessions, newest first.
func (h *StudyHandler) Log(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.study.Log(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*models.StudySession{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studylog-backend/internal/middleware"
	"studylog-backend/internal/models"
)

type subjectStore interface {
	Create(ctx context.Context, s *models.Subject) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subject, error)
	Rename(ctx context.Context, userID, id uuid.UUID, name string) error
}

type SubjectHandler struct {
	subjects subjectStore
}

func NewSubjectHandler(subjects subjectStore) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// List returns the user's subjects, most recently studied first.
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	subjects, err := h.subjects.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch subjects", r))
		return
	}
	if subjects == nil {
		subjects = []*models.Subject{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subjects": subjects,
	})
}

func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"name": "Name must be 1-100 characters"}, r))
		return
	}

	subject := &models.Subject{UserID: userID, Name: name}
	if err := h.subjects.Create(r.Context(), subject); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "A subject with this name already exists", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create subject", r))
		return
	}

	writeJSON(w, http.StatusCreated, subject)
}

func (h *SubjectHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid subject id", r))
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"name": "Name must be 1-100 characters"}, r))
		return
	}

	if err := h.subjects.Rename(r.Context(), userID, id, name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Subject not found", r))
			return
		}
		if strings.Contains(err.Error(), "duplicate key") {
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "A subject with this name already exists", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to rename subject", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":   id,
		"name": name,
	})
}

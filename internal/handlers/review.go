package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"studylog-backend/internal/calendar"
	"studylog-backend/internal/middleware"
	"studylog-backend/internal/models"
)

type chartProvider interface {
	GetSeries(ctx context.Context, userID uuid.UUID, view, startDay, endDay string, subjectID *uuid.UUID, seq uint64) (*models.Series, error)
	Streak(ctx context.Context, userID uuid.UUID, referenceDay string) (int, error)
	SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// ReviewHandler serves the review screen: chart series, the streak counter,
// and the subject filter list.
type ReviewHandler struct {
	charts chartProvider
	loc    *time.Location
}

func NewReviewHandler(charts chartProvider, loc *time.Location) *ReviewHandler {
	return &ReviewHandler{charts: charts, loc: loc}
}

// Series returns chart buckets for ?view=day|week|month&start=...&end=...
// with optional ?subject_id= filter. ?seq= is a client-chosen monotonic tag;
// responses for superseded requests come back with "stale": true.
func (h *ReviewHandler) Series(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	var subjectID *uuid.UUID
	if raw := q.Get("subject_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"subject_id": "Invalid subject id"}, r))
			return
		}
		subjectID = &id
	}

	seq, _ := strconv.ParseUint(q.Get("seq"), 10, 64)

	series, err := h.charts.GetSeries(r.Context(), userID, q.Get("view"), q.Get("start"), q.Get("end"), subjectID, seq)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, series)
}

// Streak returns the consecutive-day streak ending at ?date= (default:
// today in the service timezone).
func (h *ReviewHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	day := r.URL.Query().Get("date")
	if day == "" {
		day = calendar.DayKey(time.Now(), h.loc)
	}

	streak, err := h.charts.Streak(r.Context(), userID, day)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   day,
		"streak": streak,
	})
}

// Subjects lists the subjects that have any recorded study time.
func (h *ReviewHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ids, err := h.charts.SubjectsWithData(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject_ids": ids,
	})
}

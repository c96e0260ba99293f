package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studylog-backend/internal/calendar"
	"studylog-backend/internal/models"
)

// Maximum minutes accepted for a single session (24 hours).
const maxSessionMinutes = 24 * 60

type sessionStore interface {
	Insert(ctx context.Context, s *models.StudySession) error
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

type summaryWriter interface {
	AddSession(ctx context.Context, userID, subjectID uuid.UUID, day string, minutes int, at time.Time) error
}

type subjectStore interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Subject, error)
	TouchAccess(ctx context.Context, userID, id uuid.UUID) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// StudyService records raw study sessions and keeps the daily summary store
// incrementally up to date.
type StudyService struct {
	sessions  sessionStore
	summaries summaryWriter
	subjects  subjectStore
	cache     cacheInvalidator
	loc       *time.Location
}

func NewStudyService(sessions sessionStore, summaries summaryWriter, subjects subjectStore, cache cacheInvalidator, loc *time.Location) *StudyService {
	return &StudyService{
		sessions:  sessions,
		summaries: summaries,
		subjects:  subjects,
		cache:     cache,
		loc:       loc,
	}
}

// RecordSession validates and persists one study session, then folds it into
// the daily summary for (user, subject, local day). Validation happens before
// any write; nothing is persisted for rejected input.
func (s *StudyService) RecordSession(ctx context.Context, userID uuid.UUID, req models.RecordSessionRequest) (*models.StudySession, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		fieldErrors["subject_id"] = "Invalid subject id"
	}
	if req.TimeMinutes <= 0 {
		fieldErrors["time_minutes"] = "Study time must be a positive number of minutes"
	} else if req.TimeMinutes > maxSessionMinutes {
		fieldErrors["time_minutes"] = "Study time cannot exceed 24 hours"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if _, err := s.subjects.GetByID(ctx, userID, subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Fields: map[string]string{"subject_id": "Unknown subject"}}
		}
		return nil, &StoreError{Op: "load subject", Err: err}
	}

	session := &models.StudySession{
		UserID:      userID,
		SubjectID:   subjectID,
		TimeMinutes: req.TimeMinutes,
	}
	if comment := req.Comment; comment != "" {
		session.Comment = &comment
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, &StoreError{Op: "insert study session", Err: err}
	}

	// Incremental maintenance of the denormalized daily summary. If this
	// write fails the raw event is already durable and a backfill run will
	// reconcile the summary, so the session is reported recorded either way.
	day := calendar.DayKey(session.CreatedAt, s.loc)
	if err := s.summaries.AddSession(ctx, userID, subjectID, day, session.TimeMinutes, session.CreatedAt); err != nil {
		return nil, &StoreError{Op: "update daily summary", Err: err}
	}

	if err := s.subjects.TouchAccess(ctx, userID, subjectID); err != nil {
		return nil, &StoreError{Op: "update subject access stats", Err: err}
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return session, nil
}

// Log returns the user's most recent sessions for the study log view.
func (s *StudyService) Log(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sessions, err := s.sessions.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, &StoreError{Op: "list study log", Err: err}
	}
	return sessions, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studylog-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) Insert(ctx context.Context, s *models.StudySession) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO study_times (id, user_id, subject_id, time_minutes, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.UserID, s.SubjectID, s.TimeMinutes, s.Comment,
	).Scan(&s.CreatedAt)
}

// ListRecent returns the user's latest sessions with subject names joined,
// newest first, for the study log view.
func (r *StudySessionRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT st.id, st.user_id, st.subject_id, st.time_minutes, st.comment, st.created_at, s.name
		FROM study_times st
		JOIN subjects s ON s.id = st.subject_id
		WHERE st.user_id = $1
		ORDER BY st.created_at DESC
		LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.StudySession
	for rows.Next() {
		s := &models.StudySession{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.SubjectID, &s.TimeMinutes, &s.Comment, &s.CreatedAt, &s.SubjectName); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListAll streams every raw session for the user ordered by creation time,
// ascending. The backfill job folds this into daily summaries.
func (r *StudySessionRepo) ListAll(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, subject_id, time_minutes, comment, created_at
		FROM study_times
		WHERE user_id = $1
		ORDER BY created_at ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.StudySession
	for rows.Next() {
		s := &models.StudySession{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.SubjectID, &s.TimeMinutes, &s.Comment, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

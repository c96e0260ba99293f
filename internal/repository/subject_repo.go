package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studylog-backend/internal/models"
)

type SubjectRepo struct {
	pool *pgxpool.Pool
}

func NewSubjectRepo(pool *pgxpool.Pool) *SubjectRepo {
	return &SubjectRepo{pool: pool}
}

func (r *SubjectRepo) Create(ctx context.Context, s *models.Subject) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		"INSERT INTO subjects (id, user_id, name) VALUES ($1, $2, $3) RETURNING created_at",
		s.ID, s.UserID, s.Name,
	).Scan(&s.CreatedAt)
}

func (r *SubjectRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Subject, error) {
	s := &models.Subject{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, created_at, last_accessed_at, access_count
		FROM subjects WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&s.ID, &s.UserID, &s.Name, &s.CreatedAt, &s.LastAccessedAt, &s.AccessCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByUser returns the user's subjects, most recently used first. This is
// the ordering the recorder UI shows in its subject picker.
func (r *SubjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subject, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, created_at, last_accessed_at, access_count
		FROM subjects WHERE user_id = $1
		ORDER BY last_accessed_at DESC NULLS LAST, access_count DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		s := &models.Subject{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.CreatedAt, &s.LastAccessedAt, &s.AccessCount); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func (r *SubjectRepo) Rename(ctx context.Context, userID, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE subjects SET name = $1 WHERE id = $2 AND user_id = $3",
		name, id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TouchAccess bumps access stats with a single atomic UPDATE. Concurrent
// session recordings must not lose increments, so the counter math happens
// in the database, not in a read-modify-write cycle.
func (r *SubjectRepo) TouchAccess(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subjects
		SET access_count = access_count + 1, last_accessed_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID,
	)
	return err
}

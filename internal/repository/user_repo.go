package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studylog-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, study_goal, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Name, &u.StudyGoal, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *models.User) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE users SET name = $1, study_goal = $2 WHERE id = $3",
		u.Name, u.StudyGoal, u.ID,
	)
	return err
}

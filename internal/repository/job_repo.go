package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studylog-backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = "pending"
	j.RetryCount = 0
	j.MaxRetries = 3
	if len(j.ResultJSON) == 0 {
		j.ResultJSON = json.RawMessage("{}")
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, user_id, type, status, retry_count, result_json)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		j.ID, j.UserID, j.Type, j.Status, j.RetryCount, j.ResultJSON,
	).Scan(&j.CreatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, status, retry_count, result_json, error_message, created_at, completed_at
		FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.UserID, &j.Type, &j.Status, &j.RetryCount, &j.ResultJSON,
		&j.ErrorMessage, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status == "completed" || status == "failed" {
		_, err := r.pool.Exec(ctx,
			"UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3", status, time.Now(), id)
		return err
	}
	_, err := r.pool.Exec(ctx, "UPDATE jobs SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *JobRepo) UpdateResult(ctx context.Context, id uuid.UUID, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, "UPDATE jobs SET result_json = $1 WHERE id = $2", data, id)
	return err
}

func (r *JobRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET error_message = $1, retry_count = $2 WHERE id = $3",
		errMsg, retryCount, id,
	)
	return err
}

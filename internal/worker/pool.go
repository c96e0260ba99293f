package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studylog-backend/internal/models"
	"studylog-backend/internal/services"
)

type jobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateResult(ctx context.Context, id uuid.UUID, result interface{}) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type backfillRunner interface {
	Run(ctx context.Context, userID uuid.UUID) (models.BackfillResult, error)
}

// Pool runs summary-backfill jobs pulled off the redis queue. Workers hold a
// per-job lock so a job re-queued for retry is never run twice at once.
type Pool struct {
	redis       *redis.Client
	backfill    backfillRunner
	jobRepo     jobStore
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, backfill backfillRunner, jobRepo jobStore, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		backfill:    backfill,
		jobRepo:     jobRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, "queue:summary-backfill").Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		var processErr error
		switch job.Type {
		case models.JobTypeSummaryBackfill:
			processErr = p.processBackfill(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processBackfill(ctx context.Context, job *models.Job) error {
	result, err := p.backfill.Run(ctx, job.UserID)
	if err != nil {
		return err
	}

	if err := p.jobRepo.UpdateResult(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to store backfill result: %w", err)
	}
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:         job.ID,
			MigratedCount: result.MigratedCount,
		},
	})

	log.Printf("Job %s completed: %d summary rows written", job.ID, result.MigratedCount)
	return nil
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	// Validation and auth failures won't heal on retry.
	if permanent(err) || job.RetryCount >= job.MaxRetries {
		log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		p.publish(ctx, job.UserID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_FAILED",
				ErrorMessage: errMsg,
			},
		})
		return
	}

	// Re-queue with backoff
	log.Printf("Job %s failed (attempt %d): %s - retrying", job.ID, job.RetryCount, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	jobBytes, _ := json.Marshal(job)
	backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
	time.AfterFunc(backoff, func() {
		p.redis.LPush(context.Background(), "queue:summary-backfill", string(jobBytes))
	})
}

func permanent(err error) bool {
	switch err.(type) {
	case *services.ValidationError, *services.UnauthorizedError:
		return true
	}
	return false
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	p.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}

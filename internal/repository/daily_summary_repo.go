package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studylog-backend/internal/models"
)

const dayLayout = "2006-01-02"

// DailySummaryRepo is the daily summary store: one row per
// (user, subject, calendar day), maintained incrementally on every recorded
// session and rebuilt wholesale by the backfill job.
type DailySummaryRepo struct {
	pool *pgxpool.Pool
}

func NewDailySummaryRepo(pool *pgxpool.Pool) *DailySummaryRepo {
	return &DailySummaryRepo{pool: pool}
}

// AddSession folds one session into the row for (userID, subjectID, day) as
// a single statement. The increment happens inside the database, so two
// sessions recorded concurrently for the same key both land; there is no
// read-modify-write window to lose an update in.
func (r *DailySummaryRepo) AddSession(ctx context.Context, userID, subjectID uuid.UUID, day string, minutes int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO study_time_user_subject_daily_summaries
			(user_id, subject_id, study_date, total_study_time, study_sessions_count, first_study_time, last_study_time, updated_at)
		VALUES ($1, $2, $3::date, $4, 1, $5, $5, NOW())
		ON CONFLICT (user_id, subject_id, study_date) DO UPDATE SET
			total_study_time     = study_time_user_subject_daily_summaries.total_study_time + EXCLUDED.total_study_time,
			study_sessions_count = study_time_user_subject_daily_summaries.study_sessions_count + 1,
			last_study_time      = EXCLUDED.last_study_time,
			updated_at           = NOW()`,
		userID, subjectID, day, minutes, at,
	)
	return err
}

// Replace writes a fully computed row, overwriting any existing one. The
// backfill job uses this; overwriting (rather than adding) is what makes a
// re-run idempotent.
func (r *DailySummaryRepo) Replace(ctx context.Context, s *models.DailySummary) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO study_time_user_subject_daily_summaries
			(user_id, subject_id, study_date, total_study_time, study_sessions_count, first_study_time, last_study_time, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, subject_id, study_date) DO UPDATE SET
			total_study_time     = EXCLUDED.total_study_time,
			study_sessions_count = EXCLUDED.study_sessions_count,
			first_study_time     = EXCLUDED.first_study_time,
			last_study_time      = EXCLUDED.last_study_time,
			updated_at           = NOW()`,
		s.UserID, s.SubjectID, s.StudyDate, s.TotalStudyTime, s.SessionsCount, s.FirstStudyTime, s.LastStudyTime,
	)
	return err
}

// QueryRange returns the rows for one subject between startDay and endDay
// inclusive, ascending by day. An inverted range simply matches no rows.
func (r *DailySummaryRepo) QueryRange(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, subject_id, study_date, total_study_time, study_sessions_count,
		       first_study_time, last_study_time, updated_at
		FROM study_time_user_subject_daily_summaries
		WHERE user_id = $1 AND subject_id = $2
		  AND study_date BETWEEN $3::date AND $4::date
		ORDER BY study_date ASC`,
		userID, subjectID, startDay, endDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.DailySummary
	for rows.Next() {
		s := &models.DailySummary{}
		var studyDate time.Time
		if err := rows.Scan(&s.UserID, &s.SubjectID, &studyDate, &s.TotalStudyTime, &s.SessionsCount,
			&s.FirstStudyTime, &s.LastStudyTime, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.StudyDate = studyDate.Format(dayLayout)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SubjectsWithData returns the distinct subjects that have at least one
// non-zero daily total for the user.
func (r *DailySummaryRepo) SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT subject_id
		FROM study_time_user_subject_daily_summaries
		WHERE user_id = $1 AND total_study_time <> 0`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveDays returns the distinct day keys on or after sinceDay with a
// non-zero total across any subject, for streak computation.
func (r *DailySummaryRepo) ActiveDays(ctx context.Context, userID uuid.UUID, sinceDay string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT study_date
		FROM study_time_user_subject_daily_summaries
		WHERE user_id = $1 AND total_study_time <> 0 AND study_date >= $2::date
		ORDER BY study_date DESC`,
		userID, sinceDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d.Format(dayLayout))
	}
	return days, rows.Err()
}

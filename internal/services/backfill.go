package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"studylog-backend/internal/calendar"
	"studylog-backend/internal/models"
)

type sessionHistory interface {
	ListAll(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
}

type summaryReplacer interface {
	Replace(ctx context.Context, s *models.DailySummary) error
}

// BackfillService rebuilds the daily summary store from raw session history.
// It is an explicit administrative operation, not part of the normal write
// path: re-running it with unchanged raw data writes identical rows, because
// each (day, subject) group overwrites its row instead of adding to it.
type BackfillService struct {
	sessions  sessionHistory
	summaries summaryReplacer
	cache     cacheInvalidator
	loc       *time.Location
}

func NewBackfillService(sessions sessionHistory, summaries summaryReplacer, cache cacheInvalidator, loc *time.Location) *BackfillService {
	return &BackfillService{sessions: sessions, summaries: summaries, cache: cache, loc: loc}
}

// Run groups the user's raw sessions by local day then subject, computes each
// group's totals, and upserts one summary row per group. MigratedCount is the
// number of groups written. On any store failure the result reports
// Success=false and the run can simply be repeated.
func (b *BackfillService) Run(ctx context.Context, userID uuid.UUID) (models.BackfillResult, error) {
	if err := requireUser(userID); err != nil {
		return models.BackfillResult{}, err
	}

	sessions, err := b.sessions.ListAll(ctx, userID)
	if err != nil {
		return models.BackfillResult{}, &StoreError{Op: "read raw sessions", Err: err}
	}

	type groupKey struct {
		day     string
		subject uuid.UUID
	}
	groups := make(map[groupKey]*models.DailySummary)
	var order []groupKey

	for _, s := range sessions {
		key := groupKey{day: calendar.DayKey(s.CreatedAt, b.loc), subject: s.SubjectID}
		g, ok := groups[key]
		if !ok {
			g = &models.DailySummary{
				UserID:         userID,
				SubjectID:      s.SubjectID,
				StudyDate:      key.day,
				FirstStudyTime: s.CreatedAt,
				LastStudyTime:  s.CreatedAt,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.TotalStudyTime += s.TimeMinutes
		g.SessionsCount++
		if s.CreatedAt.Before(g.FirstStudyTime) {
			g.FirstStudyTime = s.CreatedAt
		}
		if s.CreatedAt.After(g.LastStudyTime) {
			g.LastStudyTime = s.CreatedAt
		}
	}

	// Deterministic write order: by day, then subject.
	sort.Slice(order, func(i, j int) bool {
		if order[i].day != order[j].day {
			return order[i].day < order[j].day
		}
		return order[i].subject.String() < order[j].subject.String()
	})

	migrated := 0
	for _, key := range order {
		if err := b.summaries.Replace(ctx, groups[key]); err != nil {
			return models.BackfillResult{Success: false, MigratedCount: migrated},
				&StoreError{Op: "write daily summary", Err: err}
		}
		migrated++
	}

	if b.cache != nil {
		b.cache.Invalidate(ctx, userID)
	}
	return models.BackfillResult{Success: true, MigratedCount: migrated}, nil
}

// Package aggregation derives weekly/monthly summaries and cross-subject
// daily totals by folding the daily summary store over a date range, and
// computes consecutive-day streaks from the set of active days.
package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studylog-backend/internal/calendar"
	"studylog-backend/internal/models"
)

// How far back a streak is followed before giving up.
const streakBoundDays = 365

// Fan-out width for "all subjects" range queries.
const fanOutLimit = 4

// SummaryStore is the slice of the daily summary store the engine reads.
// *repository.DailySummaryRepo satisfies it; tests supply in-memory fakes.
type SummaryStore interface {
	SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	QueryRange(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error)
	ActiveDays(ctx context.Context, userID uuid.UUID, sinceDay string) ([]string, error)
}

// SubjectError marks a fan-out failure for one subject. The whole operation
// fails with it rather than returning a silently incomplete total.
type SubjectError struct {
	SubjectID uuid.UUID
	Err       error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("aggregating subject %s: %v", e.SubjectID, e.Err)
}

func (e *SubjectError) Unwrap() error { return e.Err }

type Engine struct {
	store SummaryStore
	loc   *time.Location
}

func New(store SummaryStore, loc *time.Location) *Engine {
	return &Engine{store: store, loc: loc}
}

// SubjectsWithData returns the subjects that have recorded data, in a
// deterministic order.
func (e *Engine) SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := e.store.SubjectsWithData(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects with data: %w", err)
	}
	// Subject ids are opaque; the sort is only for stable output.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// DailyBySubject returns one subject's daily rows in [startDay, endDay],
// ascending. Inverted or empty ranges yield an empty slice.
func (e *Engine) DailyBySubject(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error) {
	if startDay > endDay {
		return nil, nil
	}
	rows, err := e.store.QueryRange(ctx, userID, subjectID, startDay, endDay)
	if err != nil {
		return nil, &SubjectError{SubjectID: subjectID, Err: err}
	}
	return rows, nil
}

// DailyAllSubjects fans out across every subject with data, then folds the
// rows by day. Any subject's failure fails the whole call; the result is
// ascending by date.
func (e *Engine) DailyAllSubjects(ctx context.Context, userID uuid.UUID, startDay, endDay string) ([]models.DailyTotal, error) {
	rows, err := e.rangeRows(ctx, userID, nil, startDay, endDay)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*models.DailyTotal)
	for _, r := range rows {
		t, ok := byDay[r.StudyDate]
		if !ok {
			t = &models.DailyTotal{Date: r.StudyDate}
			byDay[r.StudyDate] = t
		}
		t.TotalTime += r.TotalStudyTime
		t.SessionsCount += r.SessionsCount
	}

	totals := make([]models.DailyTotal, 0, len(byDay))
	for _, t := range byDay {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Date < totals[j].Date })
	return totals, nil
}

// WeeklySummaries groups daily rows in range by ISO week. A nil subjectID
// means all subjects with data. Keys are zero-padded "YYYY-Www", so the
// ascending sort is plain lexicographic.
func (e *Engine) WeeklySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error) {
	return e.periodSummaries(ctx, userID, startDay, endDay, subjectID, func(day time.Time) string {
		return calendar.ISOWeekKey(day, e.loc)
	})
}

// MonthlySummaries groups daily rows in range by calendar month ("YYYY-MM").
func (e *Engine) MonthlySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error) {
	return e.periodSummaries(ctx, userID, startDay, endDay, subjectID, func(day time.Time) string {
		return calendar.MonthKey(day, e.loc)
	})
}

func (e *Engine) periodSummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID, keyOf func(time.Time) string) ([]models.PeriodSummary, error) {
	rows, err := e.rangeRows(ctx, userID, subjectID, startDay, endDay)
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[string]*models.PeriodSummary)
	for _, r := range rows {
		day, err := calendar.ParseDay(r.StudyDate, e.loc)
		if err != nil {
			return nil, err
		}
		key := keyOf(day)
		p, ok := byPeriod[key]
		if !ok {
			p = &models.PeriodSummary{PeriodKey: key}
			byPeriod[key] = p
		}
		p.TotalTime += r.TotalStudyTime
		p.SessionsCount += r.SessionsCount
	}

	periods := make([]models.PeriodSummary, 0, len(byPeriod))
	for _, p := range byPeriod {
		periods = append(periods, *p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].PeriodKey < periods[j].PeriodKey })
	return periods, nil
}

// rangeRows collects daily rows for one subject, or fans out across all
// subjects with data when subjectID is nil.
func (e *Engine) rangeRows(ctx context.Context, userID uuid.UUID, subjectID *uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error) {
	if startDay > endDay {
		return nil, nil
	}

	if subjectID != nil {
		return e.DailyBySubject(ctx, userID, *subjectID, startDay, endDay)
	}

	subjects, err := e.store.SubjectsWithData(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects with data: %w", err)
	}
	if len(subjects) == 0 {
		return nil, nil
	}

	perSubject := make([][]*models.DailySummary, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, id := range subjects {
		g.Go(func() error {
			rows, err := e.store.QueryRange(gctx, userID, id, startDay, endDay)
			if err != nil {
				return &SubjectError{SubjectID: id, Err: err}
			}
			perSubject[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*models.DailySummary
	for _, rows := range perSubject {
		all = append(all, rows...)
	}
	return all, nil
}

// ConsecutiveDayStreak walks backward day by day from referenceDay, counting
// consecutive days with a non-zero total across any subject, and stops at
// the first gap or after a year.
func (e *Engine) ConsecutiveDayStreak(ctx context.Context, userID uuid.UUID, referenceDay string) (int, error) {
	ref, err := calendar.ParseDay(referenceDay, e.loc)
	if err != nil {
		return 0, err
	}

	since := calendar.DayKey(ref.AddDate(0, 0, -(streakBoundDays-1)), e.loc)
	days, err := e.store.ActiveDays(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("list active days: %w", err)
	}

	active := make(map[string]struct{}, len(days))
	for _, d := range days {
		active[d] = struct{}{}
	}
	return StreakFrom(active, ref, e.loc), nil
}

// StreakFrom is the pure walk underlying ConsecutiveDayStreak.
func StreakFrom(active map[string]struct{}, ref time.Time, loc *time.Location) int {
	streak := 0
	for i := 0; i < streakBoundDays; i++ {
		day := calendar.DayKey(ref.AddDate(0, 0, -i), loc)
		if _, ok := active[day]; !ok {
			break
		}
		streak++
	}
	return streak
}

package aggregation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studylog-backend/internal/models"
)

type fakeStore struct {
	rows []*models.DailySummary

	failSubject uuid.UUID
	failErr     error
}

func (f *fakeStore) SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, r := range f.rows {
		if r.UserID == userID && r.TotalStudyTime != 0 && !seen[r.SubjectID] {
			seen[r.SubjectID] = true
			ids = append(ids, r.SubjectID)
		}
	}
	return ids, nil
}

func (f *fakeStore) QueryRange(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error) {
	if f.failErr != nil && subjectID == f.failSubject {
		return nil, f.failErr
	}
	var out []*models.DailySummary
	for _, r := range f.rows {
		if r.UserID == userID && r.SubjectID == subjectID && r.StudyDate >= startDay && r.StudyDate <= endDay {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveDays(ctx context.Context, userID uuid.UUID, sinceDay string) ([]string, error) {
	seen := make(map[string]bool)
	var days []string
	for _, r := range f.rows {
		if r.UserID == userID && r.TotalStudyTime != 0 && r.StudyDate >= sinceDay && !seen[r.StudyDate] {
			seen[r.StudyDate] = true
			days = append(days, r.StudyDate)
		}
	}
	return days, nil
}

func row(userID, subjectID uuid.UUID, day string, minutes, count int) *models.DailySummary {
	return &models.DailySummary{
		UserID:         userID,
		SubjectID:      subjectID,
		StudyDate:      day,
		TotalStudyTime: minutes,
		SessionsCount:  count,
	}
}

func TestDailyAllSubjects_MergesByDay(t *testing.T) {
	userID := uuid.New()
	math, english := uuid.New(), uuid.New()
	store := &fakeStore{rows: []*models.DailySummary{
		row(userID, math, "2024-05-01", 30, 1),
		row(userID, english, "2024-05-01", 45, 2),
		row(userID, math, "2024-05-03", 20, 1),
	}}
	e := New(store, time.UTC)

	totals, err := e.DailyAllSubjects(context.Background(), userID, "2024-05-01", "2024-05-31")
	if err != nil {
		t.Fatalf("DailyAllSubjects: %v", err)
	}

	if len(totals) != 2 {
		t.Fatalf("expected 2 days, got %d", len(totals))
	}
	if totals[0].Date != "2024-05-01" || totals[0].TotalTime != 75 || totals[0].SessionsCount != 3 {
		t.Fatalf("unexpected first day: %+v", totals[0])
	}
	if totals[1].Date != "2024-05-03" || totals[1].TotalTime != 20 {
		t.Fatalf("unexpected second day: %+v", totals[1])
	}
}

func TestDailyAllSubjects_NoData(t *testing.T) {
	e := New(&fakeStore{}, time.UTC)

	totals, err := e.DailyAllSubjects(context.Background(), uuid.New(), "2024-05-01", "2024-05-31")
	if err != nil {
		t.Fatalf("DailyAllSubjects: %v", err)
	}
	if len(totals) != 0 {
		t.Fatalf("expected empty result, got %d", len(totals))
	}
}

func TestDailyAllSubjects_SubjectFailureFailsWhole(t *testing.T) {
	userID := uuid.New()
	math, english := uuid.New(), uuid.New()
	store := &fakeStore{
		rows: []*models.DailySummary{
			row(userID, math, "2024-05-01", 30, 1),
			row(userID, english, "2024-05-01", 45, 1),
		},
		failSubject: english,
		failErr:     errors.New("connection refused"),
	}
	e := New(store, time.UTC)

	_, err := e.DailyAllSubjects(context.Background(), userID, "2024-05-01", "2024-05-31")
	if err == nil {
		t.Fatal("expected error when one subject's query fails")
	}

	var subjErr *SubjectError
	if !errors.As(err, &subjErr) {
		t.Fatalf("expected *SubjectError, got %T: %v", err, err)
	}
	if subjErr.SubjectID != english {
		t.Fatalf("expected failing subject %s, got %s", english, subjErr.SubjectID)
	}
}

func TestWeeklySummaries_ISOWeekGrouping(t *testing.T) {
	userID := uuid.New()
	subj := uuid.New()
	store := &fakeStore{rows: []*models.DailySummary{
		// Sunday 2023-01-01 belongs to 2022-W52; Monday 2023-01-02 opens 2023-W01.
		row(userID, subj, "2023-01-01", 60, 1),
		row(userID, subj, "2023-01-02", 30, 1),
		row(userID, subj, "2023-01-08", 15, 1),
	}}
	e := New(store, time.UTC)

	weeks, err := e.WeeklySummaries(context.Background(), userID, "2023-01-01", "2023-01-31", &subj)
	if err != nil {
		t.Fatalf("WeeklySummaries: %v", err)
	}

	if len(weeks) != 2 {
		t.Fatalf("expected 2 weeks, got %d: %+v", len(weeks), weeks)
	}
	if weeks[0].PeriodKey != "2022-W52" || weeks[0].TotalTime != 60 {
		t.Fatalf("unexpected first week: %+v", weeks[0])
	}
	if weeks[1].PeriodKey != "2023-W01" || weeks[1].TotalTime != 45 || weeks[1].SessionsCount != 2 {
		t.Fatalf("unexpected second week: %+v", weeks[1])
	}
}

func TestMonthlySummaries_FoldConsistency(t *testing.T) {
	userID := uuid.New()
	math, english := uuid.New(), uuid.New()
	store := &fakeStore{rows: []*models.DailySummary{
		row(userID, math, "2024-04-30", 10, 1),
		row(userID, math, "2024-05-01", 30, 1),
		row(userID, english, "2024-05-15", 45, 2),
		row(userID, math, "2024-05-31", 25, 1),
		row(userID, english, "2024-06-01", 5, 1),
	}}
	e := New(store, time.UTC)
	ctx := context.Background()

	months, err := e.MonthlySummaries(ctx, userID, "2024-04-01", "2024-06-30", nil)
	if err != nil {
		t.Fatalf("MonthlySummaries: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(months))
	}

	// The monthly total must equal the sum of the daily totals in the month.
	daily, err := e.DailyAllSubjects(ctx, userID, "2024-05-01", "2024-05-31")
	if err != nil {
		t.Fatalf("DailyAllSubjects: %v", err)
	}
	var daySum int
	for _, d := range daily {
		daySum += d.TotalTime
	}

	var may *models.PeriodSummary
	for i := range months {
		if months[i].PeriodKey == "2024-05" {
			may = &months[i]
		}
	}
	if may == nil {
		t.Fatal("2024-05 missing from monthly summaries")
	}
	if may.TotalTime != daySum {
		t.Fatalf("monthly total %d != sum of daily totals %d", may.TotalTime, daySum)
	}
	if may.TotalTime != 100 {
		t.Fatalf("expected May total 100, got %d", may.TotalTime)
	}
}

func TestWeeklySummaries_InvertedRangeIsEmpty(t *testing.T) {
	userID := uuid.New()
	subj := uuid.New()
	store := &fakeStore{rows: []*models.DailySummary{
		row(userID, subj, "2024-05-01", 30, 1),
	}}
	e := New(store, time.UTC)

	weeks, err := e.WeeklySummaries(context.Background(), userID, "2024-05-02", "2024-05-01", nil)
	if err != nil {
		t.Fatalf("inverted range must not error: %v", err)
	}
	if len(weeks) != 0 {
		t.Fatalf("expected empty result for inverted range, got %+v", weeks)
	}
}

func TestConsecutiveDayStreak(t *testing.T) {
	userID := uuid.New()
	subj := uuid.New()
	store := &fakeStore{rows: []*models.DailySummary{
		row(userID, subj, "2024-05-01", 30, 1),
		row(userID, subj, "2024-05-02", 30, 1),
		row(userID, subj, "2024-05-04", 30, 1),
	}}
	e := New(store, time.UTC)
	ctx := context.Background()

	// 05-04 present, 05-03 absent → streak stops after the gap... the walk
	// sees 05-04 then misses 05-03, so only 05-04 and nothing older counts.
	streak, err := e.ConsecutiveDayStreak(ctx, userID, "2024-05-04")
	if err != nil {
		t.Fatalf("ConsecutiveDayStreak: %v", err)
	}
	if streak != 1 {
		t.Fatalf("expected streak 1 from 2024-05-04, got %d", streak)
	}

	streak, err = e.ConsecutiveDayStreak(ctx, userID, "2024-05-02")
	if err != nil {
		t.Fatalf("ConsecutiveDayStreak: %v", err)
	}
	if streak != 2 {
		t.Fatalf("expected streak 2 from 2024-05-02, got %d", streak)
	}

	streak, err = e.ConsecutiveDayStreak(ctx, userID, "2024-05-01")
	if err != nil {
		t.Fatalf("ConsecutiveDayStreak: %v", err)
	}
	if streak != 1 {
		t.Fatalf("expected streak 1 from 2024-05-01, got %d", streak)
	}

	// Reference day with no activity at all.
	streak, err = e.ConsecutiveDayStreak(ctx, userID, "2024-05-03")
	if err != nil {
		t.Fatalf("ConsecutiveDayStreak: %v", err)
	}
	if streak != 0 {
		t.Fatalf("expected streak 0 from 2024-05-03, got %d", streak)
	}
}

func TestStreakFrom_Bounded(t *testing.T) {
	ref := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	active := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		active[ref.AddDate(0, 0, -i).Format("2006-01-02")] = struct{}{}
	}

	if got := StreakFrom(active, ref, time.UTC); got != streakBoundDays {
		t.Fatalf("expected streak capped at %d, got %d", streakBoundDays, got)
	}
}

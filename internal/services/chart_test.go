package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studylog-backend/internal/aggregation"
	"studylog-backend/internal/models"
)

type fakeEngine struct {
	lastCall string

	daily   []*models.DailySummary
	totals  []models.DailyTotal
	weekly  []models.PeriodSummary
	monthly []models.PeriodSummary
	streak  int
	err     error
}

func (f *fakeEngine) DailyBySubject(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error) {
	f.lastCall = "daily-subject"
	return f.daily, f.err
}

func (f *fakeEngine) DailyAllSubjects(ctx context.Context, userID uuid.UUID, startDay, endDay string) ([]models.DailyTotal, error) {
	f.lastCall = "daily-all"
	return f.totals, f.err
}

func (f *fakeEngine) WeeklySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error) {
	f.lastCall = "weekly"
	return f.weekly, f.err
}

func (f *fakeEngine) MonthlySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error) {
	f.lastCall = "monthly"
	return f.monthly, f.err
}

func (f *fakeEngine) ConsecutiveDayStreak(ctx context.Context, userID uuid.UUID, referenceDay string) (int, error) {
	f.lastCall = "streak"
	return f.streak, f.err
}

func (f *fakeEngine) SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.lastCall = "subjects"
	return nil, f.err
}

func TestGetSeries_DispatchesByView(t *testing.T) {
	userID := uuid.New()
	subjectID := uuid.New()
	engine := &fakeEngine{
		daily:   []*models.DailySummary{{StudyDate: "2024-05-01", TotalStudyTime: 30, SessionsCount: 1}},
		totals:  []models.DailyTotal{{Date: "2024-05-01", TotalTime: 45, SessionsCount: 2}},
		weekly:  []models.PeriodSummary{{PeriodKey: "2024-W18", TotalTime: 120, SessionsCount: 4}},
		monthly: []models.PeriodSummary{{PeriodKey: "2024-05", TotalTime: 300, SessionsCount: 9}},
	}
	svc := NewChartService(engine, nil, time.UTC)
	ctx := context.Background()

	tests := []struct {
		name     string
		view     string
		subject  *uuid.UUID
		wantCall string
		wantKey  string
		wantTot  int
	}{
		{"day one subject", models.ViewDay, &subjectID, "daily-subject", "2024-05-01", 30},
		{"day all subjects", models.ViewDay, nil, "daily-all", "2024-05-01", 45},
		{"week", models.ViewWeek, nil, "weekly", "2024-W18", 120},
		{"month", models.ViewMonth, nil, "monthly", "2024-05", 300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			series, err := svc.GetSeries(ctx, userID, tc.view, "2024-05-01", "2024-05-31", tc.subject, 0)
			if err != nil {
				t.Fatalf("GetSeries: %v", err)
			}
			if engine.lastCall != tc.wantCall {
				t.Fatalf("routed to %s, want %s", engine.lastCall, tc.wantCall)
			}
			if len(series.Points) != 1 {
				t.Fatalf("expected 1 point, got %d", len(series.Points))
			}
			if series.Points[0].Key != tc.wantKey || series.Points[0].TotalTime != tc.wantTot {
				t.Fatalf("point = %+v", series.Points[0])
			}
		})
	}
}

func TestGetSeries_ValidatesInput(t *testing.T) {
	svc := NewChartService(&fakeEngine{}, nil, time.UTC)
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name             string
		view, start, end string
	}{
		{"bad view", "year", "2024-05-01", "2024-05-31"},
		{"bad start", models.ViewDay, "05/01/2024", "2024-05-31"},
		{"bad end", models.ViewDay, "2024-05-01", "tomorrow"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetSeries(ctx, userID, tc.view, tc.start, tc.end, nil, 0)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestGetSeries_EmptyRangeIsEmptySlice(t *testing.T) {
	svc := NewChartService(&fakeEngine{}, nil, time.UTC)

	series, err := svc.GetSeries(context.Background(), uuid.New(), models.ViewDay, "2024-05-01", "2024-05-31", nil, 0)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if series.Points == nil {
		t.Fatal("no data must be an empty slice, not nil")
	}
	if len(series.Points) != 0 {
		t.Fatalf("expected no points, got %d", len(series.Points))
	}
}

func TestGetSeries_SubjectFailureSurfaces(t *testing.T) {
	failedSubject := uuid.New()
	engine := &fakeEngine{
		err: &aggregation.SubjectError{SubjectID: failedSubject, Err: errors.New("timeout")},
	}
	svc := NewChartService(engine, nil, time.UTC)

	_, err := svc.GetSeries(context.Background(), uuid.New(), models.ViewWeek, "2024-05-01", "2024-05-31", nil, 0)
	var pErr *PartialAggregationError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *PartialAggregationError, got %T: %v", err, err)
	}
	if pErr.SubjectID != failedSubject {
		t.Fatalf("wrong subject in error: %s", pErr.SubjectID)
	}
}

func TestGetSeries_StaleTagging(t *testing.T) {
	svc := NewChartService(&fakeEngine{}, nil, time.UTC)
	ctx := context.Background()
	userID := uuid.New()

	// Request 2 is issued before request 1 finishes; the late result must
	// come back tagged stale.
	newer, err := svc.GetSeries(ctx, userID, models.ViewDay, "2024-05-01", "2024-05-31", nil, 2)
	if err != nil {
		t.Fatalf("seq 2: %v", err)
	}
	if newer.Stale {
		t.Fatal("newest request must not be stale")
	}

	older, err := svc.GetSeries(ctx, userID, models.ViewDay, "2024-04-01", "2024-04-30", nil, 1)
	if err != nil {
		t.Fatalf("seq 1: %v", err)
	}
	if !older.Stale {
		t.Fatal("late result for an older request must be tagged stale")
	}

	// Other users are tracked independently.
	other, err := svc.GetSeries(ctx, uuid.New(), models.ViewDay, "2024-04-01", "2024-04-30", nil, 1)
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if other.Stale {
		t.Fatal("sequence tracking must be per user")
	}
}

func TestStreak(t *testing.T) {
	engine := &fakeEngine{streak: 4}
	svc := NewChartService(engine, nil, time.UTC)

	streak, err := svc.Streak(context.Background(), uuid.New(), "2024-05-04")
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 4 {
		t.Fatalf("streak = %d, want 4", streak)
	}

	if _, err := svc.Streak(context.Background(), uuid.New(), "not-a-day"); err == nil {
		t.Fatal("expected validation error for bad reference day")
	}
}

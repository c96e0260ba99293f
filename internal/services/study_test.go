package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studylog-backend/internal/models"
)

// memSummaryStore mirrors the SQL store's contract: AddSession is a single
// atomic increment per (user, subject, day) key.
type memSummaryStore struct {
	mu   sync.Mutex
	rows map[string]*models.DailySummary
}

func newMemSummaryStore() *memSummaryStore {
	return &memSummaryStore{rows: make(map[string]*models.DailySummary)}
}

func (m *memSummaryStore) AddSession(ctx context.Context, userID, subjectID uuid.UUID, day string, minutes int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID.String() + "|" + subjectID.String() + "|" + day
	row, ok := m.rows[key]
	if !ok {
		row = &models.DailySummary{
			UserID:         userID,
			SubjectID:      subjectID,
			StudyDate:      day,
			FirstStudyTime: at,
		}
		m.rows[key] = row
	}
	row.TotalStudyTime += minutes
	row.SessionsCount++
	row.LastStudyTime = at
	return nil
}

func (m *memSummaryStore) get(userID, subjectID uuid.UUID, day string) *models.DailySummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID.String()+"|"+subjectID.String()+"|"+day]
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions []*models.StudySession
}

func (m *memSessionStore) Insert(ctx context.Context, s *models.StudySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memSessionStore) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.StudySession
	for i := len(m.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.sessions[i].UserID == userID {
			out = append(out, m.sessions[i])
		}
	}
	return out, nil
}

func (m *memSessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type memSubjectStore struct {
	subjects map[uuid.UUID]*models.Subject

	mu      sync.Mutex
	touched int
}

func (m *memSubjectStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Subject, error) {
	s, ok := m.subjects[id]
	if !ok || s.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memSubjectStore) TouchAccess(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	m.touched++
	m.mu.Unlock()
	return nil
}

func newStudyFixture(userID uuid.UUID, subjectID uuid.UUID) (*StudyService, *memSessionStore, *memSummaryStore, *memSubjectStore) {
	sessions := &memSessionStore{}
	summaries := newMemSummaryStore()
	subjects := &memSubjectStore{subjects: map[uuid.UUID]*models.Subject{
		subjectID: {ID: subjectID, UserID: userID, Name: "math"},
	}}
	svc := NewStudyService(sessions, summaries, subjects, nil, time.UTC)
	return svc, sessions, summaries, subjects
}

func TestRecordSession_Additivity(t *testing.T) {
	userID, subjectID := uuid.New(), uuid.New()
	svc, sessions, summaries, subjects := newStudyFixture(userID, subjectID)
	ctx := context.Background()

	minutes := []int{25, 40, 5}
	for _, m := range minutes {
		if _, err := svc.RecordSession(ctx, userID, models.RecordSessionRequest{
			SubjectID:   subjectID.String(),
			TimeMinutes: m,
		}); err != nil {
			t.Fatalf("RecordSession(%d): %v", m, err)
		}
	}

	row := summaries.get(userID, subjectID, "2024-05-04")
	if row == nil {
		t.Fatal("daily summary row missing")
	}
	if row.TotalStudyTime != 70 {
		t.Fatalf("expected total 70, got %d", row.TotalStudyTime)
	}
	if row.SessionsCount != 3 {
		t.Fatalf("expected 3 sessions, got %d", row.SessionsCount)
	}
	if sessions.count() != 3 {
		t.Fatalf("expected 3 raw sessions, got %d", sessions.count())
	}
	if subjects.touched != 3 {
		t.Fatalf("expected 3 subject access bumps, got %d", subjects.touched)
	}
}

func TestRecordSession_ConcurrentIncrementsAllLand(t *testing.T) {
	userID, subjectID := uuid.New(), uuid.New()
	svc, _, summaries, _ := newStudyFixture(userID, subjectID)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, m := range []int{20, 15} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordSession(ctx, userID, models.RecordSessionRequest{
				SubjectID:   subjectID.String(),
				TimeMinutes: m,
			}); err != nil {
				t.Errorf("RecordSession(%d): %v", m, err)
			}
		}()
	}
	wg.Wait()

	row := summaries.get(userID, subjectID, "2024-05-04")
	if row == nil {
		t.Fatal("daily summary row missing")
	}
	// Lost-update regression: 20 or 15 alone means one increment clobbered
	// the other.
	if row.TotalStudyTime != 35 {
		t.Fatalf("expected total 35, got %d", row.TotalStudyTime)
	}
	if row.SessionsCount != 2 {
		t.Fatalf("expected 2 sessions, got %d", row.SessionsCount)
	}
}

func TestRecordSession_ValidatesBeforeWrite(t *testing.T) {
	userID, subjectID := uuid.New(), uuid.New()
	svc, sessions, _, _ := newStudyFixture(userID, subjectID)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.RecordSessionRequest
	}{
		{"zero minutes", models.RecordSessionRequest{SubjectID: subjectID.String(), TimeMinutes: 0}},
		{"negative minutes", models.RecordSessionRequest{SubjectID: subjectID.String(), TimeMinutes: -30}},
		{"over a day", models.RecordSessionRequest{SubjectID: subjectID.String(), TimeMinutes: 3000}},
		{"bad subject id", models.RecordSessionRequest{SubjectID: "not-a-uuid", TimeMinutes: 30}},
		{"unknown subject", models.RecordSessionRequest{SubjectID: uuid.New().String(), TimeMinutes: 30}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordSession(ctx, userID, tc.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
		})
	}

	if sessions.count() != 0 {
		t.Fatalf("rejected input must not be persisted, found %d sessions", sessions.count())
	}
}

func TestRecordSession_NoUser(t *testing.T) {
	userID, subjectID := uuid.New(), uuid.New()
	svc, _, _, _ := newStudyFixture(userID, subjectID)

	_, err := svc.RecordSession(context.Background(), uuid.Nil, models.RecordSessionRequest{
		SubjectID:   subjectID.String(),
		TimeMinutes: 30,
	})
	if err == nil {
		t.Fatal("expected error for missing user")
	}
	if _, ok := err.(*UnauthorizedError); !ok {
		t.Fatalf("expected *UnauthorizedError, got %T", err)
	}
}

func TestLog_ReturnsNewestFirst(t *testing.T) {
	userID, subjectID := uuid.New(), uuid.New()
	svc, _, _, _ := newStudyFixture(userID, subjectID)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordSession(ctx, userID, models.RecordSessionRequest{
			SubjectID:   subjectID.String(),
			TimeMinutes: 10 + i,
		}); err != nil {
			t.Fatalf("RecordSession: %v", err)
		}
	}

	log, err := svc.Log(ctx, userID, 2)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(log))
	}
	if log[0].TimeMinutes != 12 {
		t.Fatalf("expected newest entry first, got %d minutes", log[0].TimeMinutes)
	}
}

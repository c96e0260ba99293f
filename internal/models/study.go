package models

import (
	"time"

	"github.com/google/uuid"
)

// Subject access stats (LastAccessedAt, AccessCount) are bumped whenever a
// session is recorded against the subject; the repository does this with a
// single atomic UPDATE.
type Subject struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Name           string     `json:"name"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	AccessCount    int        `json:"access_count"`
}

// StudySession is a raw study event. Immutable once created.
type StudySession struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	SubjectID   uuid.UUID `json:"subject_id"`
	TimeMinutes int       `json:"time_minutes"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined for log listings; empty elsewhere.
	SubjectName string `json:"subject_name,omitempty"`
}

// DailySummary is the persisted per-(user, subject, day) aggregate.
// Invariant: TotalStudyTime equals the sum of TimeMinutes over all raw
// sessions for the key and SessionsCount equals their count.
type DailySummary struct {
	UserID         uuid.UUID `json:"user_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
	StudyDate      string    `json:"study_date"` // day key, "YYYY-MM-DD"
	TotalStudyTime int       `json:"total_study_time"`
	SessionsCount  int       `json:"study_sessions_count"`
	FirstStudyTime time.Time `json:"first_study_time"`
	LastStudyTime  time.Time `json:"last_study_time"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DailyTotal is a per-day fold across all subjects. Derived, never persisted.
type DailyTotal struct {
	Date          string `json:"date"`
	TotalTime     int    `json:"total_time"`
	SessionsCount int    `json:"sessions_count"`
}

// PeriodSummary is a weekly ("YYYY-Www") or monthly ("YYYY-MM") fold of
// daily summaries. Derived, never persisted.
type PeriodSummary struct {
	PeriodKey     string `json:"period_key"`
	TotalTime     int    `json:"total_time"`
	SessionsCount int    `json:"sessions_count"`
}

// View modes accepted by the chart façade.
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
)

// SeriesPoint is one chart bucket, uniform across view modes.
type SeriesPoint struct {
	Key           string `json:"key"`
	TotalTime     int    `json:"total_time"`
	SessionsCount int    `json:"sessions_count"`
}

// Series is a chart-ready result. Seq echoes the caller-supplied request
// sequence; Stale is set when a newer request for the same user was issued
// before this one finished, so the caller should discard the payload.
type Series struct {
	View   string        `json:"view"`
	Start  string        `json:"start"`
	End    string        `json:"end"`
	Points []SeriesPoint `json:"points"`
	Seq    uint64        `json:"seq"`
	Stale  bool          `json:"stale"`
}

type RecordSessionRequest struct {
	SubjectID   string `json:"subject_id"`
	TimeMinutes int    `json:"time_minutes"`
	Comment     string `json:"comment"`
}

// BackfillResult reports a completed daily-summary rebuild: MigratedCount is
// the number of (day, subject) groups written.
type BackfillResult struct {
	Success       bool `json:"success"`
	MigratedCount int  `json:"migrated_count"`
}

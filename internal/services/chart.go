package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studylog-backend/internal/calendar"
	"studylog-backend/internal/models"
)

type seriesEngine interface {
	DailyBySubject(ctx context.Context, userID, subjectID uuid.UUID, startDay, endDay string) ([]*models.DailySummary, error)
	DailyAllSubjects(ctx context.Context, userID uuid.UUID, startDay, endDay string) ([]models.DailyTotal, error)
	WeeklySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error)
	MonthlySummaries(ctx context.Context, userID uuid.UUID, startDay, endDay string, subjectID *uuid.UUID) ([]models.PeriodSummary, error)
	ConsecutiveDayStreak(ctx context.Context, userID uuid.UUID, referenceDay string) (int, error)
	SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// ChartCache keeps computed series in redis. Entries are keyed by a per-user
// version counter; any write for the user bumps the counter, so older entries
// are never served again and simply expire.
type ChartCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewChartCache(redisClient *redis.Client, ttl time.Duration) *ChartCache {
	return &ChartCache{redis: redisClient, ttl: ttl}
}

func (c *ChartCache) version(ctx context.Context, userID uuid.UUID) int64 {
	if c == nil {
		return 0
	}
	v, err := c.redis.Get(ctx, "chart_ver:"+userID.String()).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Invalidate bumps the user's chart version so cached series stop matching.
// Safe on a nil receiver; a nil cache is simply disabled.
func (c *ChartCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil {
		return
	}
	c.redis.Incr(ctx, "chart_ver:"+userID.String())
}

func (c *ChartCache) key(userID uuid.UUID, ver int64, view, start, end, subject string) string {
	return fmt.Sprintf("chart:%s:%d:%s:%s:%s:%s", userID, ver, view, start, end, subject)
}

func (c *ChartCache) get(ctx context.Context, key string) []models.SeriesPoint {
	if c == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var points []models.SeriesPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil
	}
	return points
}

func (c *ChartCache) set(ctx context.Context, key string, points []models.SeriesPoint) {
	if c == nil {
		return
	}
	data, err := json.Marshal(points)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, c.ttl)
}

// ChartService is the single entry point review UIs call for chart data. It
// routes to the aggregation engine per view mode and shapes the result
// uniformly; no aggregation logic lives here.
type ChartService struct {
	engine seriesEngine
	cache  *ChartCache // nil disables caching
	loc    *time.Location

	// Highest request sequence seen per user. A request that finishes after
	// a newer one was issued is tagged stale so the caller discards it:
	// the last request to complete must not clobber the last one issued.
	mu     sync.Mutex
	latest map[uuid.UUID]uint64
}

func NewChartService(engine seriesEngine, cache *ChartCache, loc *time.Location) *ChartService {
	return &ChartService{
		engine: engine,
		cache:  cache,
		loc:    loc,
		latest: make(map[uuid.UUID]uint64),
	}
}

func (c *ChartService) trackSeq(userID uuid.UUID, seq uint64) {
	if seq == 0 {
		return
	}
	c.mu.Lock()
	if seq > c.latest[userID] {
		c.latest[userID] = seq
	}
	c.mu.Unlock()
}

func (c *ChartService) isStale(userID uuid.UUID, seq uint64) bool {
	if seq == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq < c.latest[userID]
}

// GetSeries returns chart-ready buckets for (view, [startDay, endDay],
// optional subject filter). seq is an optional caller-chosen monotonic
// request tag; pass 0 to opt out of stale tracking.
func (c *ChartService) GetSeries(ctx context.Context, userID uuid.UUID, view, startDay, endDay string, subjectID *uuid.UUID, seq uint64) (*models.Series, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	switch view {
	case models.ViewDay, models.ViewWeek, models.ViewMonth:
	default:
		fieldErrors["view"] = "View must be day, week, or month"
	}
	if !calendar.IsDayKey(startDay) {
		fieldErrors["start"] = "Start must be a YYYY-MM-DD date"
	}
	if !calendar.IsDayKey(endDay) {
		fieldErrors["end"] = "End must be a YYYY-MM-DD date"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	c.trackSeq(userID, seq)

	series := &models.Series{View: view, Start: startDay, End: endDay, Seq: seq}

	subjectKey := ""
	if subjectID != nil {
		subjectKey = subjectID.String()
	}
	var cacheKey string
	if c.cache != nil {
		ver := c.cache.version(ctx, userID)
		cacheKey = c.cache.key(userID, ver, view, startDay, endDay, subjectKey)
		if points := c.cache.get(ctx, cacheKey); points != nil {
			series.Points = points
			series.Stale = c.isStale(userID, seq)
			return series, nil
		}
	}

	points, err := c.computeSeries(ctx, userID, view, startDay, endDay, subjectID)
	if err != nil {
		return nil, err
	}
	series.Points = points

	if c.cache != nil {
		c.cache.set(ctx, cacheKey, points)
	}

	series.Stale = c.isStale(userID, seq)
	return series, nil
}

func (c *ChartService) computeSeries(ctx context.Context, userID uuid.UUID, view, startDay, endDay string, subjectID *uuid.UUID) ([]models.SeriesPoint, error) {
	points := []models.SeriesPoint{}

	switch view {
	case models.ViewDay:
		if subjectID != nil {
			rows, err := c.engine.DailyBySubject(ctx, userID, *subjectID, startDay, endDay)
			if err != nil {
				return nil, storeFailure("daily series", err)
			}
			for _, r := range rows {
				points = append(points, models.SeriesPoint{Key: r.StudyDate, TotalTime: r.TotalStudyTime, SessionsCount: r.SessionsCount})
			}
			return points, nil
		}
		totals, err := c.engine.DailyAllSubjects(ctx, userID, startDay, endDay)
		if err != nil {
			return nil, storeFailure("daily series", err)
		}
		for _, t := range totals {
			points = append(points, models.SeriesPoint{Key: t.Date, TotalTime: t.TotalTime, SessionsCount: t.SessionsCount})
		}
		return points, nil

	case models.ViewWeek:
		periods, err := c.engine.WeeklySummaries(ctx, userID, startDay, endDay, subjectID)
		if err != nil {
			return nil, storeFailure("weekly series", err)
		}
		return periodPoints(periods), nil

	default: // models.ViewMonth, validated upstream
		periods, err := c.engine.MonthlySummaries(ctx, userID, startDay, endDay, subjectID)
		if err != nil {
			return nil, storeFailure("monthly series", err)
		}
		return periodPoints(periods), nil
	}
}

func periodPoints(periods []models.PeriodSummary) []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(periods))
	for _, p := range periods {
		points = append(points, models.SeriesPoint{Key: p.PeriodKey, TotalTime: p.TotalTime, SessionsCount: p.SessionsCount})
	}
	return points
}

// Streak reports the consecutive-day streak ending at referenceDay.
func (c *ChartService) Streak(ctx context.Context, userID uuid.UUID, referenceDay string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if !calendar.IsDayKey(referenceDay) {
		return 0, &ValidationError{Fields: map[string]string{"date": "Reference day must be a YYYY-MM-DD date"}}
	}

	streak, err := c.engine.ConsecutiveDayStreak(ctx, userID, referenceDay)
	if err != nil {
		return 0, storeFailure("streak", err)
	}
	return streak, nil
}

// SubjectsWithData lists the subjects that have recorded time, for the
// subject filter UI.
func (c *ChartService) SubjectsWithData(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ids, err := c.engine.SubjectsWithData(ctx, userID)
	if err != nil {
		return nil, storeFailure("subjects with data", err)
	}
	return ids, nil
}

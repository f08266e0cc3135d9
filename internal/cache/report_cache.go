package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"chatsurvey/internal/model"
)

// ReportCache keeps recently computed admin reports
type ReportCache interface {
	Get(ctx context.Context, surveyID string) (*model.ResponseReport, error)
	Set(ctx context.Context, report *model.ResponseReport) error
	Invalidate(ctx context.Context, surveyID string) error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportCache creates a report cache on redis
func NewRedisReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	return &redisReportCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *redisReportCache) key(surveyID string) string {
	return "survey:" + surveyID + ":report"
}

func (c *redisReportCache) Get(ctx context.Context, surveyID string) (*model.ResponseReport, error) {
	data, err := c.client.Get(ctx, c.key(surveyID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report model.ResponseReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *redisReportCache) Set(ctx context.Context, report *model.ResponseReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(report.SurveyID), data, c.ttl).Err()
}

func (c *redisReportCache) Invalidate(ctx context.Context, surveyID string) error {
	return c.client.Del(ctx, c.key(surveyID)).Err()
}

type memoryReportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	reports map[string]cachedReport
}

type cachedReport struct {
	report  *model.ResponseReport
	expires time.Time
}

// NewMemoryReportCache creates a process-local report cache
func NewMemoryReportCache(ttl time.Duration) ReportCache {
	return &memoryReportCache{
		ttl:     ttl,
		now:     time.Now,
		reports: map[string]cachedReport{},
	}
}

func (c *memoryReportCache) Get(_ context.Context, surveyID string) (*model.ResponseReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.reports[surveyID]
	if !ok {
		return nil, nil
	}
	if c.now().After(cached.expires) {
		delete(c.reports, surveyID)
		return nil, nil
	}
	return cached.report, nil
}

func (c *memoryReportCache) Set(_ context.Context, report *model.ResponseReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[report.SurveyID] = cachedReport{report: report, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryReportCache) Invalidate(_ context.Context, surveyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reports, surveyID)
	return nil
}

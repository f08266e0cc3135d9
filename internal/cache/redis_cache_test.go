package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

// redisClient connects to REDIS_TEST_ADDR or skips the test
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisSessionCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewRedisSessionCache(redisClient(t), time.Minute)

	cfg := &model.SurveyConfig{Blocks: model.NewBlockMap(
		&model.Block{ID: "z", Type: model.BlockTextInput, Content: model.Content{Text: "Name?"}},
		&model.Block{ID: "a", Type: model.BlockEnd},
	)}
	s := &model.RuntimeSession{
		SessionID: uuid.NewString(),
		Kind:      model.SessionRuntime,
		Config:    cfg,
		State:     model.NewSessionState("pulse", "resp-1", "z", "Ana"),
	}
	s.State.Record("z", model.ListAnswer("x", float64(2)))

	require.NoError(t, c.Set(ctx, s))
	got, err := c.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"z", "a"}, got.Config.Blocks.Keys())
	assert.Equal(t, s.State.Answers, got.State.Answers)
	assert.Equal(t, "Ana", got.State.Variables[model.RespondentNameVariable])

	require.NoError(t, c.Delete(ctx, s.SessionID))
	got, err = c.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisReportCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewRedisReportCache(redisClient(t), time.Minute)
	id := uuid.NewString()

	require.NoError(t, c.Set(ctx, &model.ResponseReport{SurveyID: id, TotalResponses: 2}))
	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.TotalResponses)

	require.NoError(t, c.Invalidate(ctx, id))
	got, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

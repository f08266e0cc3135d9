package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func session(id string) *model.RuntimeSession {
	return &model.RuntimeSession{
		SessionID: id,
		Kind:      model.SessionRuntime,
		State:     model.NewSessionState("s", "r-"+id, "b0", ""),
	}
}

func TestMemorySessionCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySessionCache()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, session("a")))
	got, err = c.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-a", got.State.ResponseID)

	replacement := session("a")
	replacement.State.CurrentBlockID = "b5"
	require.NoError(t, c.Set(ctx, replacement))
	got, _ = c.Get(ctx, "a")
	assert.Equal(t, "b5", got.State.CurrentBlockID)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, "a"))
	got, _ = c.Get(ctx, "a")
	assert.Nil(t, got)
	require.NoError(t, c.Delete(ctx, "a"), "deleting a missing entry is fine")
}

func TestMemorySessionCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySessionCache(WithMaxSessions(2))

	require.NoError(t, c.Set(ctx, session("a")))
	require.NoError(t, c.Set(ctx, session("b")))
	_, _ = c.Get(ctx, "a") // a becomes most recent
	require.NoError(t, c.Set(ctx, session("c")))

	a, _ := c.Get(ctx, "a")
	b, _ := c.Get(ctx, "b")
	cc, _ := c.Get(ctx, "c")
	assert.NotNil(t, a)
	assert.Nil(t, b)
	assert.NotNil(t, cc)
	assert.Equal(t, 2, c.Len())
}

func TestMemorySessionCache_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemorySessionCache(WithTTL(10*time.Minute), WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, session("idle")))
	require.NoError(t, c.Set(ctx, session("busy")))

	clock.Advance(6 * time.Minute)
	_, _ = c.Get(ctx, "busy")

	clock.Advance(6 * time.Minute)
	idle, _ := c.Get(ctx, "idle")
	busy, _ := c.Get(ctx, "busy")
	assert.Nil(t, idle, "idle for 12m")
	assert.NotNil(t, busy, "touched 6m ago")
}

func TestMemoryReportCache(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryReportCache(time.Minute).(*memoryReportCache)
	c.now = clock.Now

	require.NoError(t, c.Set(ctx, &model.ResponseReport{SurveyID: "pulse", TotalResponses: 3}))
	got, err := c.Get(ctx, "pulse")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalResponses)

	require.NoError(t, c.Invalidate(ctx, "pulse"))
	got, _ = c.Get(ctx, "pulse")
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, &model.ResponseReport{SurveyID: "pulse"}))
	clock.Advance(2 * time.Minute)
	got, _ = c.Get(ctx, "pulse")
	assert.Nil(t, got, "expired")
}

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size(), "unused keys are released")
}

func TestSubmitAnswer_ConcurrentSubmissionsAllRecorded(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store)

	blocks := ""
	for i := 0; i < 20; i++ {
		if i > 0 {
			blocks += ","
		}
		blocks += fmt.Sprintf(`"q%d": {"type": "text-input", "content": "Q%d"}`, i, i)
	}
	cfg := mustConfig(t, `{"blocks": {`+blocks+`}}`)

	start, err := svc.StartRuntime(ctx, cfg, model.StartOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitAnswer(ctx, SubmitRequest{
				SessionID:  start.SessionID,
				QuestionID: fmt.Sprintf("q%d", i),
				Answer:     raw(`"x"`),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state := cachedState(t, svc, start.SessionID)
	assert.Len(t, state.CompletedBlocks, 20)
	_, saves, _ := store.counts()
	assert.Equal(t, 20, saves)
}

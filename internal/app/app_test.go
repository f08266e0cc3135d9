package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/config"
	"chatsurvey/internal/model"
	"chatsurvey/internal/transport/rest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocks:\n  q:\n    type: text-input\n    content: Hi\n"), 0o644))

	return &config.Config{
		StoreDriver:      config.StoreSQLite,
		SQLitePath:       filepath.Join(dir, "app.db"),
		CacheDriver:      config.CacheMemory,
		SessionTTL:       time.Minute,
		MaxSessions:      10,
		MaxRoutingHops:   8,
		SurveyConfigPath: path,
		AdminUsername:    "admin",
		AdminPassword:    "pw",
		JWTSecret:        "secret",
	}
}

func TestNew_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	cfg, err := a.SurveyService.Active(ctx)
	require.NoError(t, err)

	start, err := a.RuntimeService.StartRuntime(ctx, cfg, model.StartOptions{})
	require.NoError(t, err)

	resp, err := a.Responses.GetResponseBySessionID(ctx, start.SessionID)
	require.NoError(t, err)
	require.NotNil(t, resp)

	srv := httptest.NewServer(rest.NewRouter(a.Container()))
	defer srv.Close()
	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "postgres"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

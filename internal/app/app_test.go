package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/data/db"
	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("DB_DRIVER", db.DriverSQLite)
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REDIS_ADDR", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewWiresQueueBackendWithoutOptionalProviders(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), logger.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.Bus)
	assert.Equal(t, []ideas.WorkerType{
		ideas.WorkerWebSearch,
		ideas.WorkerMarketplaceSearch,
		ideas.WorkerCodeSearch,
		ideas.WorkerCommunitySearch,
	}, a.Registry.Types())

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"title":       "Bike courier routing",
		"contentText": testutil.Words(25),
		"userId":      uuid.NewString(),
	}))
	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ideas", &buf))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Idea struct {
			ID string `json:"id"`
		} `json:"idea"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ideas/"+created.Idea.ID+"/research", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Only registered types are dispatched: four progress rows and four queued jobs.
	id := uuid.MustParse(created.Idea.ID)
	snap, err := a.Progress.GetProgress(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, snap.Progress, 4)
	assert.True(t, snap.Active)

	var queued int64
	require.NoError(t, a.DB.Table("research_job").Where("entity_id = ?", id).Count(&queued).Error)
	assert.EqualValues(t, 4, queued)
}

func TestNewRejectsTemporalWithoutReachableServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.DispatchBackend = BackendTemporal
	cfg.Temporal.Address = ""
	_, err := New(context.Background(), logger.Nop(), cfg)
	require.Error(t, err)
}

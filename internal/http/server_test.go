package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/trigger"
)

// recordingLauncher remembers every launch for assertions.
type recordingLauncher struct {
	mu       sync.Mutex
	launched []string
}

func (l *recordingLauncher) Launch(_ context.Context, skill *manifest.Skill, _ manifest.TriggerType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, skill.ID)
}

func (l *recordingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func newTestServer(t *testing.T) (*Server, *recordingLauncher) {
	t.Helper()

	dir := t.TempDir()
	writeSkill := func(id string, triggers string) {
		skillDir := filepath.Join(dir, id)
		require.NoError(t, os.MkdirAll(skillDir, 0o755))
		doc := `{
  "id": "` + id + `",
  "name": "` + id + `",
  "version": "1.0.0",
  "description": "test skill",
  "category": "remediation",
  "triggers": ` + triggers + `,
  "actions": [{"id": "noop", "type": "shell", "command": "true"}]
}`
		require.NoError(t, os.WriteFile(filepath.Join(skillDir, manifest.ManifestFileName), []byte(doc), 0o600))
	}
	writeSkill("hooked-skill", `[{"type": "webhook"}]`)
	writeSkill("plain-skill", `[]`)

	registry := manifest.NewRegistry(nil, zap.NewNop())
	_, err := registry.LoadDir(dir)
	require.NoError(t, err)

	launcher := &recordingLauncher{}
	dispatcher := trigger.NewDispatcher(registry, launcher, zap.NewNop())

	server, err := NewServer(registry, dispatcher, zap.NewNop(), nil)
	require.NoError(t, err)
	return server, launcher
}

func do(server *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiredCollaborators(t *testing.T) {
	_, err := NewServer(nil, nil, zap.NewNop(), nil)
	assert.Error(t, err)

	registry := manifest.NewRegistry(nil, zap.NewNop())
	dispatcher := trigger.NewDispatcher(registry, &recordingLauncher{}, zap.NewNop())

	_, err = NewServer(registry, dispatcher, nil, nil)
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Skills)
}

func TestHandleListSkills(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/api/v1/skills")
	require.Equal(t, http.StatusOK, rec.Code)

	var skills []SkillSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &skills))
	require.Len(t, skills, 2)
	assert.Equal(t, "hooked-skill", skills[0].ID)
	assert.Equal(t, 1, skills[0].ActionCount)
}

func TestHandleGetSkill(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/api/v1/skills/plain-skill")
	require.Equal(t, http.StatusOK, rec.Code)

	var skill manifest.Skill
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &skill))
	assert.Equal(t, "plain-skill", skill.ID)

	rec = do(server, http.MethodGet, "/api/v1/skills/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunSkill_ManualAlwaysPermitted(t *testing.T) {
	server, launcher := newTestServer(t)

	rec := do(server, http.MethodPost, "/api/v1/skills/plain-skill/run")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "plain-skill", resp.SkillID)
	assert.Equal(t, "manual", resp.Source)
	assert.Equal(t, 1, launcher.count())
}

func TestHandleRunSkill_UnknownSkill(t *testing.T) {
	server, launcher := newTestServer(t)

	rec := do(server, http.MethodPost, "/api/v1/skills/nope/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, launcher.count())
}

func TestHandleWebhook(t *testing.T) {
	server, launcher := newTestServer(t)

	rec := do(server, http.MethodPost, "/hooks/hooked-skill")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, launcher.count())

	// Skills must declare webhook triggers to be reachable this way.
	rec = do(server, http.MethodPost, "/hooks/plain-skill")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, launcher.count())
}

func TestHandleMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

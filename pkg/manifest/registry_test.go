package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string, s *Skill) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParse_Roundtrip(t *testing.T) {
	data, err := json.Marshal(newTestSkill())
	require.NoError(t, err)

	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "restart-flaky-deploy", s.ID)
	assert.Equal(t, ActionDeploy, s.Actions[2].Type)
	assert.Equal(t, []string{"patch-config"}, s.Actions[2].DependsOn)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"id": `))
	assert.Error(t, err)
}

func TestRegistry_LoadSingleSkillDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, newTestSkill())

	reg := NewRegistry(nil, nil)
	results, err := reg.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Report.Valid)

	s, err := reg.Get("restart-flaky-deploy")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", s.Version)
}

func TestRegistry_LoadDirOfSkills(t *testing.T) {
	dir := t.TempDir()

	first := newTestSkill()
	writeManifest(t, filepath.Join(dir, "restart-flaky-deploy"), first)

	second := newTestSkill()
	second.ID = "bump-pinned-deps"
	second.Name = "Bump pinned dependencies"
	writeManifest(t, filepath.Join(dir, "bump-pinned-deps"), second)

	broken := newTestSkill()
	broken.ID = "Broken Skill"
	writeManifest(t, filepath.Join(dir, "broken"), broken)

	reg := NewRegistry(nil, nil)
	results, err := reg.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	valid := 0
	for _, res := range results {
		if res.Report.Valid {
			valid++
		}
	}
	assert.Equal(t, 2, valid)

	skills := reg.List()
	require.Len(t, skills, 2)
	assert.Equal(t, "bump-pinned-deps", skills[0].ID)
	assert.Equal(t, "restart-flaky-deploy", skills[1].ID)

	_, err = reg.Get("Broken Skill")
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestRegistry_DuplicateSkillID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "one"), newTestSkill())
	writeManifest(t, filepath.Join(dir, "two"), newTestSkill())

	reg := NewRegistry(nil, nil)
	results, err := reg.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Directory order admits "one"; "two" collides.
	assert.True(t, results[0].Report.Valid)
	assert.False(t, results[1].Report.Valid)
	assert.True(t, containsSubstring(results[1].Report.Errors, "already registered"))
	assert.Len(t, reg.List(), 1)
}

func TestRegistry_EmptyDir(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_, err := reg.LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNoManifests)
}

func TestRegistry_UnreadableManifestReported(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "garbled")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, ManifestFileName), []byte("{nope"), 0o644))

	reg := NewRegistry(nil, nil)
	results, err := reg.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Report.Valid)
	assert.Nil(t, results[0].Skill)
}

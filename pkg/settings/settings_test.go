package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	s, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	want := DefaultSettings()
	want.DisplayName = "Ada"
	want.Picture = "avatars/ada.png"
	want.Scene = "museum"
	want.FPS = 30
	require.NoError(t, m.Save(want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "displayName: Ada")

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: -3\nsampleIntervalMs: 0\nscene: sponza\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	s, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, 60, s.FPS)
	assert.Equal(t, 100, s.SampleIntervalMs)
	assert.Equal(t, "sponza", s.Scene)
	assert.Equal(t, "json", s.Codec)
}

func TestLoadInvalidYAMLFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: [unterminated\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	s, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestDefaultPathHonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, AppName, "config.yaml"), path)
}

func TestEnsureIdentity(t *testing.T) {
	s := DefaultSettings()
	require.True(t, s.EnsureIdentity())
	assert.NotEmpty(t, s.DisplayName)
	assert.NotEmpty(t, s.Picture)
	assert.False(t, s.EnsureIdentity())

	s = UserSettings{DisplayName: "Me"}
	require.True(t, s.EnsureIdentity())
	assert.Equal(t, "Me", s.DisplayName)
	assert.NotEmpty(t, s.Picture)
}

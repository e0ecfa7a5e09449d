package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_BasicManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[connections.openai]
api_key_env = "OPENAI_API_KEY"
default_model = "gpt-4o"
timeout = 30
retry = 2

[hosts.sleeper]
command = "bash"
args = ["-lc", "sleep 5"]
timeout = 1
`)
	path := filepath.Join(dir, FileName)
	m, err := Load(path)
	require.NoError(t, err)

	require.Contains(t, m.Connections, "openai")
	assert.Equal(t, "OPENAI_API_KEY", m.Connections["openai"].APIKeyEnv)
	assert.Equal(t, "gpt-4o", m.Connections["openai"].DefaultModel)

	require.Contains(t, m.Hosts, "sleeper")
	assert.Equal(t, "bash", m.Hosts["sleeper"].Command)
	assert.Equal(t, 1, m.Hosts["sleeper"].Timeout)
	// Defaulted since the table didn't set it.
	assert.Equal(t, defaultTerminateGraceSeconds, m.Hosts["sleeper"].TerminateGraceSeconds)
}

func TestLoad_HostExplicitTerminateGraceIsPreserved(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[hosts.sleeper]
command = "bash"
terminate_grace_seconds = 10
`)
	m, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, 10, m.Hosts["sleeper"].TerminateGraceSeconds)
}

func TestFind_WalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[connections]\n")
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok := Find(nested)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, FileName), found)
}

func TestFind_NotFoundReturnsFalse(t *testing.T) {
	_, ok := Find(t.TempDir())
	assert.False(t, ok)
}

func TestExpandEnvVars_BracedAndDefault(t *testing.T) {
	t.Setenv("CONCERTO_TEST_VAR", "set-value")
	dir := t.TempDir()
	writeManifest(t, dir, `
[connections.openai]
api_key_env = "${CONCERTO_TEST_VAR}"
default_model = "${CONCERTO_TEST_MISSING:-fallback-model}"
`)
	m, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "set-value", m.Connections["openai"].APIKeyEnv)
	assert.Equal(t, "fallback-model", m.Connections["openai"].DefaultModel)
}

func TestLoad_DotEnvSidecarIsLoadedFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CONCERTO_SIDECAR_VAR=from-dotenv\n"), 0o644))
	writeManifest(t, dir, `
[connections.openai]
api_key_env = "${CONCERTO_SIDECAR_VAR}"
`)
	m, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", m.Connections["openai"].APIKeyEnv)
}

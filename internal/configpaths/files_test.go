package configpaths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "tpm2gen"), dir)

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/user")
	dir, err = DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user", ".config", "tpm2gen"), dir)

	p, err := DefaultNamedConfigPath("generate", "yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user", ".config", "tpm2gen", "generate.yaml"), p)
}

func TestConfigCandidatePaths(t *testing.T) {
	jsonPaths, yamlPaths, tomlPaths := ConfigCandidatePaths("custom.toml")
	require.NotEmpty(t, tomlPaths)
	assert.Equal(t, "custom.toml", tomlPaths[0])
	assert.NotContains(t, jsonPaths, "custom.toml")
	assert.Len(t, yamlPaths, 2*len(jsonPaths))

	jsonPaths, _, _ = ConfigCandidatePaths("custom.conf")
	assert.Equal(t, "custom.conf", jsonPaths[0])
}

func TestConfigCandidatePathsCoverInitOutputs(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	jsonPaths, yamlPaths, tomlPaths := ConfigCandidatePaths("")

	for _, cmd := range []string{"generate", "check", "dump", "verify"} {
		assert.Contains(t, jsonPaths, filepath.Join(wd, cmd+".json"))
		assert.Contains(t, yamlPaths, filepath.Join(wd, cmd+".yaml"))
		assert.Contains(t, tomlPaths, filepath.Join(wd, cmd+".toml"))
		if runtime.GOOS != "windows" {
			assert.Contains(t, jsonPaths, filepath.Join("/etc/tpm2gen", cmd+".json"))
		}
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureDir(filepath.Join(dir, "a", "b", "config.json")))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}

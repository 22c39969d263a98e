package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-cards/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	require.NoError(t, err)

	err = os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, ".cards"), cfg.DataDirAbs)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, config.CacheStore, cfg.Cache.Backend)
	require.Empty(t, cfg.Sources.Global)
	require.Empty(t, cfg.Sources.Project)
}

func Test_Load_Layers_Project_Over_Global_When_Both_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := t.TempDir()

	writeFile(t, filepath.Join(xdg, "cards", "config.json"), `{
		// global
		"user": "david",
		"llm": {"provider": "gemini", "model": "gemini-2.0-flash"},
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"data_dir": "store", "llm": {"model": "gemini-2.5-pro"}}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: dir,
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg, "GEMINI_API_KEY": "g-key"},
	})
	require.NoError(t, err)

	require.Equal(t, "david", cfg.User)
	require.Equal(t, "gemini", cfg.LLM.Provider)
	require.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	require.Equal(t, "g-key", cfg.LLM.APIKey)
	require.Equal(t, filepath.Join(dir, "store"), cfg.DataDirAbs)
	require.NotEmpty(t, cfg.Sources.Global)
	require.NotEmpty(t, cfg.Sources.Project)
}

func Test_Load_Applies_CLI_Overrides_When_Given(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"data_dir": "from-file", "user": "jz"}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: dir,
		DataDirOverride: "from-cli",
		UserOverride:    "kevin",
		Env:             map[string]string{"CARDS_USER": "andy"},
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "from-cli"), cfg.DataDirAbs)
	require.Equal(t, "kevin", cfg.User)
}

func Test_Load_Fails_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty data dir": `{"data_dir": ""}`,
		"unknown key":    `{"ticket_dir": "x"}`,
		"bad provider":   `{"llm": {"provider": "parrot"}}`,
		"bad ttl":        `{"cache": {"ttl": "soon"}}`,
		"bad backend":    `{"cache": {"backend": "redis"}}`,
		"not json":       `{`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), content)

			_, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
			require.Error(t, err)
		})
	}
}

func Test_Load_Fails_When_Explicit_Config_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{
		WorkDirOverride: t.TempDir(),
		ConfigPath:      "missing.json",
		Env:             map[string]string{},
	})
	if !errors.Is(err, config.ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func Test_WriteDefault_Produces_Loadable_Config_When_Absent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path, err := config.WriteDefault(dir)
	require.NoError(t, err)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)
	require.Equal(t, path, cfg.Sources.Project)

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, ttl)

	again, err := config.WriteDefault(dir)
	require.ErrorIs(t, err, config.ErrExists, "second write must not overwrite")
	require.Equal(t, path, again)
}

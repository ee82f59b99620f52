package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// isolatedEnv points the global config at an empty directory.
func isolatedEnv(t *testing.T) map[string]string {
	t.Helper()

	return map[string]string{"XDG_CONFIG_HOME": t.TempDir()}
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: isolatedEnv(t)})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, config.DefaultStorageDir), cfg.StorageDirAbs)
	require.Equal(t, config.DefaultLocale, cfg.Locale)
	require.Equal(t, 200*time.Millisecond, cfg.WatchDebounceDur)
	require.False(t, cfg.CrossProcessLocking())
	require.Empty(t, cfg.Sources.Global)
	require.Empty(t, cfg.Sources.Project)
}

func Test_Load_Applies_Precedence_When_All_Layers_Are_Present(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := isolatedEnv(t)

	writeFile(t, filepath.Join(env["XDG_CONFIG_HOME"], "dictctl", "config.json"), `{
		// global
		"storage_dir": "global-store",
		"locale": "de",
		"log_format": "json",
		"cross_process_lock": true,
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"storage_dir": "project-store", "watch_debounce": "1s"}`)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: env, LocaleOverride: "fr"})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "project-store"), cfg.StorageDirAbs)
	require.Equal(t, "fr", cfg.Locale)
	require.Equal(t, "json", cfg.LogFormat)
	require.True(t, cfg.CrossProcessLocking())
	require.Equal(t, time.Second, cfg.WatchDebounceDur)
	require.NotEmpty(t, cfg.Sources.Global)
	require.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)
}

func Test_Load_Uses_Explicit_File_Instead_Of_Project_File_When_Given(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, config.FileName), `{"storage_dir": "project-store"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"storage_dir": "custom-store"}`)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, ConfigPath: "custom.json", Env: isolatedEnv(t)})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "custom-store"), cfg.StorageDirAbs)
}

func Test_Load_Overrides_Storage_Dir_When_Flag_Is_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"storage_dir": "from-file"}`)

	override := "/abs/store"

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, StorageDirOverride: &override, Env: isolatedEnv(t)})
	require.NoError(t, err)
	require.Equal(t, override, cfg.StorageDirAbs)
}

func Test_Load_Resolves_Dictionaries_When_Configured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{
		"dictionaries": [
			{"name": "main", "source": "words/main.tsv"},
			{"name": "history", "type": "user", "updatable": true},
		],
	}`)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: isolatedEnv(t)})
	require.NoError(t, err)

	main, err := cfg.Dictionary("main")
	require.NoError(t, err)
	require.Equal(t, "main", main.Type)
	require.Equal(t, filepath.Join(dir, "words", "main.tsv"), main.SourceAbs)

	history, err := cfg.Dictionary("history")
	require.NoError(t, err)
	require.Equal(t, "user", history.Type)
	require.True(t, history.Updatable)

	_, err = cfg.Dictionary("missing")
	require.ErrorIs(t, err, config.ErrDictionaryNotFound)
}

func Test_Load_Returns_Error_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty storage dir", content: `{"storage_dir": ""}`, wantErr: config.ErrStorageDirEmpty},
		{name: "malformed", content: `{"storage_dir": `, wantErr: config.ErrConfigInvalid},
		{name: "bad debounce", content: `{"watch_debounce": "soon"}`, wantErr: config.ErrConfigInvalid},
		{name: "bad log format", content: `{"log_format": "xml"}`, wantErr: config.ErrConfigInvalid},
		{name: "unnamed dictionary", content: `{"dictionaries": [{"source": "a.tsv"}]}`, wantErr: config.ErrConfigInvalid},
		{name: "name with dot", content: `{"dictionaries": [{"name": "a.b"}]}`, wantErr: config.ErrConfigInvalid},
		{
			name:    "duplicate dictionary",
			content: `{"dictionaries": [{"name": "a"}, {"name": "a"}]}`,
			wantErr: config.ErrDuplicateDictionary,
		},
		{
			name:    "updatable with source",
			content: `{"dictionaries": [{"name": "a", "source": "a.tsv", "updatable": true}]}`,
			wantErr: config.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: isolatedEnv(t)})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func Test_Load_Returns_Not_Found_When_Explicit_File_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{WorkDirOverride: t.TempDir(), ConfigPath: "nope.json", Env: isolatedEnv(t)})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func Test_Load_Rejects_Empty_Storage_Dir_When_Flag_Is_Empty(t *testing.T) {
	t.Parallel()

	empty := ""

	_, err := config.Load(config.LoadInput{WorkDirOverride: t.TempDir(), StorageDirOverride: &empty, Env: isolatedEnv(t)})
	require.ErrorIs(t, err, config.ErrStorageDirEmpty)
}

// Package config loads dictctl configuration from JSONC files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	StorageDir       string       `json:"storage_dir"`
	Locale           string       `json:"locale,omitempty"`
	LogLevel         string       `json:"log_level,omitempty"`
	LogFormat        string       `json:"log_format,omitempty"`
	CrossProcessLock *bool        `json:"cross_process_lock,omitempty"`
	WatchDebounce    string       `json:"watch_debounce,omitempty"`
	Dictionaries     []Dictionary `json:"dictionaries,omitempty"`

	// Resolved values (computed, not serialized)
	EffectiveCwd     string        `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	StorageDirAbs    string        `json:"-"` // Absolute path to the storage directory
	WatchDebounceDur time.Duration `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Dictionary configures one named dictionary.
type Dictionary struct {
	Name string `json:"name"`

	// Type tags the dictionary in logs and metrics. Defaults to Name.
	Type string `json:"type,omitempty"`

	// Source is a word list file. Relative paths are resolved against the
	// working directory. Empty for updatable dictionaries.
	Source string `json:"source,omitempty"`

	// Updatable dictionaries keep their words in their own dictionary
	// file and accept add/remove commands.
	Updatable bool `json:"updatable,omitempty"`

	// SourceAbs is Source resolved to an absolute path.
	SourceAbs string `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// CrossProcessLocking reports the effective cross_process_lock setting.
func (c Config) CrossProcessLocking() bool {
	return c.CrossProcessLock != nil && *c.CrossProcessLock
}

// Dictionary returns the dictionary named name.
func (c Config) Dictionary(name string) (Dictionary, error) {
	for _, d := range c.Dictionaries {
		if d.Name == name {
			return d, nil
		}
	}

	return Dictionary{}, fmt.Errorf("%w: %s", ErrDictionaryNotFound, name)
}

// Default values.
const (
	DefaultStorageDir    = ".dictcache"
	DefaultLocale        = "en"
	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "text"
	DefaultWatchDebounce = "200ms"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StorageDir:    DefaultStorageDir,
		Locale:        DefaultLocale,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		WatchDebounce: DefaultWatchDebounce,
	}
}

// FileName is the default project config file name.
const FileName = ".dictctl.json"

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/dictctl/config.json if set, otherwise
// ~/.config/dictctl/config.json. Returns empty string if home directory
// cannot be determined.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "dictctl", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "dictctl", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride    string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath         string            // -c/--config flag value
	StorageDirOverride *string           // --storage-dir flag value; nil means no override
	LocaleOverride     string            // --locale flag value
	LogLevelOverride   string            // --log-level flag value
	Env                map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/dictctl/config.json or $XDG_CONFIG_HOME/dictctl/config.json)
// 3. Project config file at default location (.dictctl.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := DefaultConfig()

	globalCfg, globalCfgPath, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalCfgPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	// Apply CLI overrides
	if input.StorageDirOverride != nil {
		cfg.StorageDir = *input.StorageDirOverride
	}

	if input.LocaleOverride != "" {
		cfg.Locale = input.LocaleOverride
	}

	if input.LogLevelOverride != "" {
		cfg.LogLevel = input.LogLevelOverride
	}

	err = validate(&cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.StorageDirAbs = resolve(workDir, cfg.StorageDir)

	for i := range cfg.Dictionaries {
		if cfg.Dictionaries[i].Type == "" {
			cfg.Dictionaries[i].Type = cfg.Dictionaries[i].Name
		}

		if cfg.Dictionaries[i].Source != "" {
			cfg.Dictionaries[i].SourceAbs = resolve(workDir, cfg.Dictionaries[i].Source)
		}
	}

	return cfg, nil
}

func resolve(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

// loadGlobal loads the global user config file if it exists.
// Returns the config, the path if loaded, and any error.
func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, explicitEmpty, loaded, err := loadFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["storage_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrStorageDirEmpty)
	}

	return cfg, path, nil
}

// loadProject loads the project config file (.dictctl.json) or an explicit
// config file. Returns the config, the path if loaded, and any error.
func loadProject(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = resolve(workDir, configPath)
		mustExist = true

		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, FileName)
	}

	cfg, explicitEmpty, loaded, err := loadFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["storage_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, ErrStorageDirEmpty)
	}

	return cfg, cfgFile, nil
}

// loadFile loads a config file. If mustExist is false, missing files return
// zero config. Returns the config, a map of explicitly empty fields,
// whether the file was loaded, and any error.
func loadFile(path string, mustExist bool) (Config, map[string]bool, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil, false, nil
		}

		if mustExist {
			return Config{}, nil, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, nil, false, nil
	}

	cfg, explicitEmpty, parseErr := parse(data)
	if parseErr != nil {
		return Config{}, nil, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, explicitEmpty, true, nil
}

func parse(data []byte) (Config, map[string]bool, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	// Check which fields were explicitly set to empty
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	if val, exists := raw["storage_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty["storage_dir"] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func merge(base, overlay Config) Config {
	if overlay.StorageDir != "" {
		base.StorageDir = overlay.StorageDir
	}

	if overlay.Locale != "" {
		base.Locale = overlay.Locale
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	if overlay.CrossProcessLock != nil {
		base.CrossProcessLock = overlay.CrossProcessLock
	}

	if overlay.WatchDebounce != "" {
		base.WatchDebounce = overlay.WatchDebounce
	}

	// Dictionary lists replace each other; they are not merged by name.
	if overlay.Dictionaries != nil {
		base.Dictionaries = overlay.Dictionaries
	}

	return base
}

func validate(cfg *Config) error {
	if cfg.StorageDir == "" {
		return ErrStorageDirEmpty
	}

	if cfg.Locale == "" || strings.ContainsRune(cfg.Locale, filepath.Separator) {
		return fmt.Errorf("%w: locale %q", ErrConfigInvalid, cfg.Locale)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q (want text or json)", ErrConfigInvalid, cfg.LogFormat)
	}

	debounce, err := time.ParseDuration(cfg.WatchDebounce)
	if err != nil || debounce < 0 {
		return fmt.Errorf("%w: watch_debounce %q", ErrConfigInvalid, cfg.WatchDebounce)
	}

	cfg.WatchDebounceDur = debounce

	seen := make(map[string]bool, len(cfg.Dictionaries))

	for _, d := range cfg.Dictionaries {
		if d.Name == "" || strings.ContainsAny(d.Name, "./"+string(filepath.Separator)) {
			return fmt.Errorf("%w: dictionary name %q", ErrConfigInvalid, d.Name)
		}

		if seen[d.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateDictionary, d.Name)
		}

		seen[d.Name] = true

		if d.Updatable && d.Source != "" {
			return fmt.Errorf("%w: dictionary %s: updatable dictionaries cannot have a source", ErrConfigInvalid, d.Name)
		}
	}

	return nil
}

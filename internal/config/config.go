// Package config loads layered JSONC configuration for the cards CLI.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// FileName is the project config file name.
const FileName = ".cards.json"

// Error variables for config loading.
var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config file")
	ErrDataDirEmpty = errors.New("data-dir cannot be empty")
	ErrUnknownLLM   = errors.New("unknown llm provider")
	ErrExists       = errors.New("config file already exists")
)

// LLM configures the language-model chat backend.
type LLM struct {
	Provider string `json:"provider,omitempty"` // openai or gemini
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Translation cache backends.
const (
	CacheStore  = "store"  // CacheStore keeps replies in the card store.
	CacheMemory = "memory" // CacheMemory keeps replies for the life of the process.
)

// Cache configures the translation cache.
type Cache struct {
	Backend string `json:"backend,omitempty"`
	// TTL is a Go duration string; empty or "0" keeps entries forever.
	TTL string `json:"ttl,omitempty"`
}

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir  string `json:"data_dir"`
	User     string `json:"user,omitempty"`
	LogLevel string `json:"log_level,omitempty"`
	LLM      LLM    `json:"llm"`
	Cache    Cache  `json:"cache"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"`
	DataDirAbs   string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:  ".cards",
		LogLevel: "warn",
		LLM: LLM{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Cache: Cache{Backend: CacheStore},
	}
}

// CacheTTL parses Cache.TTL. Zero means entries never expire.
func (c Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("%w: cache.ttl: %w", ErrInvalid, err)
	}

	return d, nil
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	DataDirOverride string            // --data-dir flag value; empty means no override
	UserOverride    string            // --user flag value; empty means no override
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/cards/config.json or ~/.config/cards/config.json)
// 3. Project config file at default location (.cards.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. Environment (CARDS_USER, OPENAI_API_KEY / GEMINI_API_KEY when no key is configured)
// 6. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = merge(cfg, globalCfg)
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = merge(cfg, projectCfg)
	}

	if user := input.Env["CARDS_USER"]; user != "" {
		cfg.User = user
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = input.Env["OPENAI_API_KEY"]
		case "gemini":
			cfg.LLM.APIKey = input.Env["GEMINI_API_KEY"]
		}
	}

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	if input.UserOverride != "" {
		cfg.User = input.UserOverride
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.DataDir) {
		cfg.DataDirAbs = cfg.DataDir
	} else {
		cfg.DataDirAbs = filepath.Join(workDir, cfg.DataDir)
	}

	return cfg, nil
}

// WriteDefault writes a commented default project config to dir. It refuses to
// overwrite an existing file and returns its path with [ErrExists].
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)

	_, err := os.Stat(path)
	if err == nil {
		return path, fmt.Errorf("%w: %s", ErrExists, path)
	}

	content := `{
	// Directory holding cards.sqlite, relative to this file's directory.
	"data_dir": ".cards",
	// Name of the acting user (must exist in the store).
	"user": "",
	"log_level": "warn",
	"llm": {
		// openai or gemini; the API key is read from OPENAI_API_KEY / GEMINI_API_KEY.
		"provider": "openai",
		"model": "gpt-4o-mini",
	},
	"cache": {
		// store keeps translations in the data directory, memory only for one run.
		"backend": "store",
		"ttl": "24h",
	},
}
`

	err = atomic.WriteFile(path, strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// globalConfigPath returns the path to the global config file.
// Returns empty string if home directory cannot be determined.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "cards", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "cards", "config.json")
	}

	return ""
}

// loadFile loads a config file. If mustExist is false, missing files return zero config.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrFileRead, path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	if cfg.DataDir == "" && hasExplicitEmpty(data, "data_dir") {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, ErrDataDirEmpty)
	}

	return cfg, true, nil
}

// Parse decodes JSONC config bytes. Unknown keys are rejected so typos surface.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func hasExplicitEmpty(data []byte, key string) bool {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return false
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	val, exists := raw[key]
	if !exists {
		return false
	}

	str, ok := val.(string)

	return ok && str == ""
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.User != "" {
		base.User = overlay.User
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LLM.Provider != "" {
		base.LLM.Provider = overlay.LLM.Provider
	}

	if overlay.LLM.Model != "" {
		base.LLM.Model = overlay.LLM.Model
	}

	if overlay.LLM.APIKey != "" {
		base.LLM.APIKey = overlay.LLM.APIKey
	}

	if overlay.LLM.BaseURL != "" {
		base.LLM.BaseURL = overlay.LLM.BaseURL
	}

	if overlay.Cache.Backend != "" {
		base.Cache.Backend = overlay.Cache.Backend
	}

	if overlay.Cache.TTL != "" {
		base.Cache.TTL = overlay.Cache.TTL
	}

	return base
}

func validate(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrDataDirEmpty
	}

	switch cfg.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLLM, cfg.LLM.Provider)
	}

	switch cfg.Cache.Backend {
	case CacheStore, CacheMemory:
	default:
		return fmt.Errorf("%w: cache.backend %q", ErrInvalid, cfg.Cache.Backend)
	}

	_, err := cfg.CacheTTL()

	return err
}

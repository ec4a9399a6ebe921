// Package config resolves the dbc configuration from files, environment and
// flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Errors returned by [Load].
var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config file")
	ErrEmptyValue   = errors.New("value must not be empty")
	ErrNoHome       = errors.New("cannot determine home directory: HOME is not set")
)

// Environment variables read by [Load].
const (
	EnvRegistry = "DBCOLLECTION_REGISTRY"
	EnvCacheDir = "DBCOLLECTION_CACHE_DIR"
	EnvDataDir  = "DBCOLLECTION_DATA_DIR"
)

// Config keys.
const (
	keyRegistry = "registry"
	keyCacheDir = "default_cache_dir"
	keyDataDir  = "default_data_dir"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Registry        string `json:"registry"`
	DefaultCacheDir string `json:"default_cache_dir"`
	DefaultDataDir  string `json:"default_data_dir"`

	// Home is the user's home directory all relative paths resolve against.
	Home string `json:"-"`

	// Sources tracks where values came from (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files and variables were applied.
type Sources struct {
	Global   string   // Path to global config if loaded, empty otherwise
	Explicit string   // Path to --config file if given, empty otherwise
	Env      []string // Environment variables that were set
}

// Default returns the default configuration for home.
func Default(home string) Config {
	return Config{
		Registry:        filepath.Join(home, ".dbcollection.json"),
		DefaultCacheDir: filepath.Join(home, "dbcollection"),
		DefaultDataDir:  filepath.Join(home, "dbcollection"),
		Home:            home,
	}
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDir          string            // base for a relative ConfigPath; os.Getwd() if empty
	ConfigPath       string            // -c/--config flag value
	RegistryOverride string            // --registry flag value; empty means no override
	Env              map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/dbcollection/config.json or
// ~/.config/dbcollection/config.json)
// 3. Explicit config file via ConfigPath (must exist)
// 4. Environment variables
// 5. CLI overrides.
//
// All paths in the returned Config are absolute.
func Load(input LoadInput) (Config, error) {
	home := input.Env["HOME"]
	if home == "" {
		return Config{}, ErrNoHome
	}

	cfg := Default(home)

	globalPath := GlobalPath(input.Env)
	if globalPath != "" {
		fileCfg, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = merge(cfg, fileCfg)
		}
	}

	if input.ConfigPath != "" {
		path, err := explicitPath(input.WorkDir, input.ConfigPath)
		if err != nil {
			return Config{}, err
		}

		fileCfg, _, err := loadFile(path, true)
		if err != nil {
			return Config{}, err
		}

		cfg.Sources.Explicit = path
		cfg = merge(cfg, fileCfg)
	}

	for _, env := range []struct {
		name string
		dst  *string
	}{
		{EnvRegistry, &cfg.Registry},
		{EnvCacheDir, &cfg.DefaultCacheDir},
		{EnvDataDir, &cfg.DefaultDataDir},
	} {
		if val := input.Env[env.name]; val != "" {
			*env.dst = val
			cfg.Sources.Env = append(cfg.Sources.Env, env.name)
		}
	}

	if input.RegistryOverride != "" {
		cfg.Registry = input.RegistryOverride
	}

	cfg.Registry = resolve(home, cfg.Registry)
	cfg.DefaultCacheDir = resolve(home, cfg.DefaultCacheDir)
	cfg.DefaultDataDir = resolve(home, cfg.DefaultDataDir)

	return cfg, nil
}

// GlobalPath returns the path of the global config file.
// Uses $XDG_CONFIG_HOME/dbcollection/config.json if set, otherwise
// ~/.config/dbcollection/config.json. Empty if neither is known.
func GlobalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "dbcollection", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "dbcollection", "config.json")
	}

	return ""
}

func explicitPath(workDir, configPath string) (string, error) {
	path := configPath

	if !filepath.IsAbs(path) {
		if workDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("cannot get working directory: %w", err)
			}

			workDir = wd
		}

		path = filepath.Join(workDir, path)
	}

	_, statErr := os.Stat(path)
	if statErr != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
	}

	return path, nil
}

// loadFile loads a config file. If mustExist is false, missing files return
// a zero config.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w %s: %w", ErrFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	// Reject keys explicitly set to ""
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	for _, key := range []string{keyRegistry, keyCacheDir, keyDataDir} {
		if val, exists := raw[key]; exists {
			if str, ok := val.(string); ok && str == "" {
				return Config{}, fmt.Errorf("%s: %w", key, ErrEmptyValue)
			}
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Registry != "" {
		base.Registry = overlay.Registry
	}

	if overlay.DefaultCacheDir != "" {
		base.DefaultCacheDir = overlay.DefaultCacheDir
	}

	if overlay.DefaultDataDir != "" {
		base.DefaultDataDir = overlay.DefaultDataDir
	}

	return base
}

// resolve expands a leading "~/" and makes relative paths absolute against
// home.
func resolve(home, path string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Join(home, path)
	}
}

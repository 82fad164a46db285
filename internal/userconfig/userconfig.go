// Package userconfig manages Launchpad's per-user configuration file at
// ~/.config/launchpad/config.json.
//
// Unlike the teacher's dotted-string Get/Set over an untyped tree, every
// recognized key here is backed by a concrete field and a typed accessor
// registered in keyRegistry. Unknown keys are rejected at write time
// instead of silently no-oping (see spec.md §9, "Dynamic config access").
package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/log"
)

// DatabaseConfig holds default credentials handed to service placeholder
// expansion (§4.9 {dbUsername}, {dbPassword}, {authMethod}).
type DatabaseConfig struct {
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	AuthMethod string `json:"authMethod,omitempty"`
}

// ServicesConfig holds the services.* configuration options.
type ServicesConfig struct {
	LogDir          string        `json:"logDir,omitempty"`
	AutoRestart     bool          `json:"autoRestart"`
	StartupTimeout  time.Duration `json:"startupTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
	Database        DatabaseConfig `json:"database"`
}

// ProfilesConfig holds the profiles.* configuration options.
type ProfilesConfig struct {
	Active string   `json:"active,omitempty"`
	Custom []string `json:"custom,omitempty"`
}

// Config is the full set of recognized options from spec.md §6.
type Config struct {
	InstallPath               string         `json:"installPath,omitempty"`
	Verbose                   bool           `json:"verbose"`
	ForceReinstall            bool           `json:"forceReinstall"`
	InstallDependencies       bool           `json:"installDependencies"`
	AutoAddToPath             bool           `json:"autoAddToPath"`
	ShimPath                  string         `json:"shimPath,omitempty"`
	Services                  ServicesConfig `json:"services"`
	ExcludeDependencies       []string       `json:"excludeDependencies,omitempty"`
	ExcludeGlobalDependencies []string       `json:"excludeGlobalDependencies,omitempty"`
	Profiles                  ProfilesConfig `json:"profiles"`
}

// DefaultConfig returns a Config with spec-mandated defaults.
func DefaultConfig() *Config {
	return &Config{
		InstallDependencies: true,
		AutoAddToPath:       true,
		Services: ServicesConfig{
			AutoRestart:     true,
			StartupTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads the config file and returns the configuration.
// Returns defaults if the file doesn't exist; read and parse errors are
// returned.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}
	return loadFromPath(cfg.ConfigFile)
}

// loadFromPath reads config from a specific file path (for testing).
func loadFromPath(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		mode := info.Mode().Perm()
		if mode&0077 != 0 {
			log.Default().Warn("config file has permissive permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", mode),
				"expected", "0600",
			)
		}
	}

	if err := json.Unmarshal(data, userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.saveToPath(cfg.ConfigFile)
}

// saveToPath writes config to a specific path using atomic create-temp-then-rename,
// with 0600 permissions, mirroring the teacher's saveToPath idiom.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.json.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// keyDef is a typed accessor for one enumerated config key.
type keyDef struct {
	description string
	get         func(c *Config) string
	set         func(c *Config, raw string) error
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("must be true or false")
	}
}

func parseStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	// Accept a JSON array, matching spec.md §6 "values ... JSON are auto-parsed".
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formatStringList(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return strings.Join(list, ",")
}

var keyRegistry = map[string]keyDef{
	"installPath": {
		description: "Directory packages are installed into when not project-scoped",
		get:         func(c *Config) string { return c.InstallPath },
		set:         func(c *Config, raw string) error { c.InstallPath = raw; return nil },
	},
	"verbose": {
		description: "Emit operational context to stderr (true/false)",
		get:         func(c *Config) string { return strconv.FormatBool(c.Verbose) },
		set: func(c *Config, raw string) error {
			b, err := parseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid value for verbose: %w", err)
			}
			c.Verbose = b
			return nil
		},
	},
	"forceReinstall": {
		description: "Reinstall packages even if already present in the store (true/false)",
		get:         func(c *Config) string { return strconv.FormatBool(c.ForceReinstall) },
		set: func(c *Config, raw string) error {
			b, err := parseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid value for forceReinstall: %w", err)
			}
			c.ForceReinstall = b
			return nil
		},
	},
	"installDependencies": {
		description: "Install transitive dependencies during resolution (true/false)",
		get:         func(c *Config) string { return strconv.FormatBool(c.InstallDependencies) },
		set: func(c *Config, raw string) error {
			b, err := parseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid value for installDependencies: %w", err)
			}
			c.InstallDependencies = b
			return nil
		},
	},
	"autoAddToPath": {
		description: "Materialize symlinks into env bin/ for resolved runtime packages (true/false)",
		get:         func(c *Config) string { return strconv.FormatBool(c.AutoAddToPath) },
		set: func(c *Config, raw string) error {
			b, err := parseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid value for autoAddToPath: %w", err)
			}
			c.AutoAddToPath = b
			return nil
		},
	},
	"shimPath": {
		description: "Override directory generated shims are written into",
		get:         func(c *Config) string { return c.ShimPath },
		set:         func(c *Config, raw string) error { c.ShimPath = raw; return nil },
	},
	"services.logDir": {
		description: "Override directory service logs are written into",
		get:         func(c *Config) string { return c.Services.LogDir },
		set:         func(c *Config, raw string) error { c.Services.LogDir = raw; return nil },
	},
	"services.autoRestart": {
		description: "Restart services on failure by default (true/false)",
		get:         func(c *Config) string { return strconv.FormatBool(c.Services.AutoRestart) },
		set: func(c *Config, raw string) error {
			b, err := parseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid value for services.autoRestart: %w", err)
			}
			c.Services.AutoRestart = b
			return nil
		},
	},
	"services.startupTimeout": {
		description: "Maximum time to wait for a service health check on start (duration, e.g. 30s)",
		get:         func(c *Config) string { return c.Services.StartupTimeout.String() },
		set: func(c *Config, raw string) error {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid value for services.startupTimeout: must be a duration")
			}
			c.Services.StartupTimeout = d
			return nil
		},
	},
	"services.shutdownTimeout": {
		description: "Maximum time to wait for graceful shutdown before force-stop (duration, e.g. 10s)",
		get:         func(c *Config) string { return c.Services.ShutdownTimeout.String() },
		set: func(c *Config, raw string) error {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid value for services.shutdownTimeout: must be a duration")
			}
			c.Services.ShutdownTimeout = d
			return nil
		},
	},
	"services.database.username": {
		description: "Default database username handed to {dbUsername} placeholders",
		get:         func(c *Config) string { return c.Services.Database.Username },
		set:         func(c *Config, raw string) error { c.Services.Database.Username = raw; return nil },
	},
	"services.database.password": {
		description: "Default database password handed to {dbPassword} placeholders",
		get:         func(c *Config) string { return c.Services.Database.Password },
		set:         func(c *Config, raw string) error { c.Services.Database.Password = raw; return nil },
	},
	"services.database.authMethod": {
		description: "Default auth method handed to {authMethod} placeholders",
		get:         func(c *Config) string { return c.Services.Database.AuthMethod },
		set:         func(c *Config, raw string) error { c.Services.Database.AuthMethod = raw; return nil },
	},
	"excludeDependencies": {
		description: "Domains excluded from resolution regardless of manifest (comma-separated or JSON array)",
		get:         func(c *Config) string { return formatStringList(c.ExcludeDependencies) },
		set: func(c *Config, raw string) error {
			c.ExcludeDependencies = parseStringList(raw)
			return nil
		},
	},
	"excludeGlobalDependencies": {
		description: "Domains excluded from global-scope resolution (comma-separated or JSON array)",
		get:         func(c *Config) string { return formatStringList(c.ExcludeGlobalDependencies) },
		set: func(c *Config, raw string) error {
			c.ExcludeGlobalDependencies = parseStringList(raw)
			return nil
		},
	},
	"profiles.active": {
		description: "Name of the currently active service profile",
		get:         func(c *Config) string { return c.Profiles.Active },
		set:         func(c *Config, raw string) error { c.Profiles.Active = raw; return nil },
	},
	"profiles.custom": {
		description: "Names of user-defined profiles (comma-separated or JSON array)",
		get:         func(c *Config) string { return formatStringList(c.Profiles.Custom) },
		set: func(c *Config, raw string) error {
			c.Profiles.Custom = parseStringList(raw)
			return nil
		},
	},
}

// Get returns the value of a recognized config key as a string.
// Returns false if the key is not in the enumerated grammar.
func (c *Config) Get(key string) (string, bool) {
	def, ok := keyRegistry[key]
	if !ok {
		return "", false
	}
	return def.get(c), true
}

// Set updates a config value from a string, using the key's typed accessor.
// Unknown keys are rejected rather than silently accepted.
func (c *Config) Set(key, value string) error {
	def, ok := keyRegistry[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	return def.set(c, value)
}

// AvailableKeys returns every recognized key with its description, sorted.
func AvailableKeys() map[string]string {
	out := make(map[string]string, len(keyRegistry))
	for k, def := range keyRegistry {
		out[k] = def.description
	}
	return out
}

// SortedKeys returns the enumerated key grammar in stable, sorted order —
// used by `launchpad config list` for deterministic output.
func SortedKeys() []string {
	keys := make([]string, 0, len(keyRegistry))
	for k := range keyRegistry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package config handles loading taskgraph.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/amonks/taskgraph/internal/paths"
)

// ProjectFile is the name of the per-project config file.
const ProjectFile = "taskgraph.toml"

// ActorEnv overrides the configured user name.
const ActorEnv = "TG_ACTOR"

// DefaultAddr is the API listen address when none is configured.
const DefaultAddr = "127.0.0.1:8080"

// Config represents a taskgraph.toml configuration file.
type Config struct {
	Store  Store  `toml:"store"`
	Server Server `toml:"server"`
	User   User   `toml:"user"`
}

// Store selects and locates the task store.
type Store struct {
	// Backend is "jsonl" or "sqlite".
	Backend string `toml:"backend"`

	// Dir is the data directory. A relative dir in a project file is
	// resolved against that file's directory.
	Dir string `toml:"dir"`
}

// Server configures `tg serve`.
type Server struct {
	Addr string `toml:"addr"`
}

// User names the acting user.
type User struct {
	Name string `toml:"name"`
}

// Load loads configuration from dir and the global config file. Keys the
// project file defines win. Returns an empty config if no config files exist.
func Load(dir string) (*Config, error) {
	globalPath, err := paths.GlobalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, globalMeta, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}
	if projectMeta.IsDefined("store", "dir") {
		projectCfg.Store.Dir = resolveDir(dir, projectCfg.Store.Dir)
	}

	return mergeConfigs(globalCfg, projectCfg, globalMeta, projectMeta), nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: unknown key %s", path, undecoded[0])
	}

	return &cfg, meta, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, globalMeta, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	merged := Config{}
	merged.Store.Backend = mergeString(projectMeta.IsDefined("store", "backend"), projectCfg.Store.Backend, globalCfg.Store.Backend)
	merged.Store.Dir = mergeString(projectMeta.IsDefined("store", "dir"), projectCfg.Store.Dir, globalCfg.Store.Dir)
	merged.Server.Addr = mergeString(projectMeta.IsDefined("server", "addr"), projectCfg.Server.Addr, globalCfg.Server.Addr)
	merged.User.Name = mergeString(projectMeta.IsDefined("user", "name"), projectCfg.User.Name, globalCfg.User.Name)
	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}

func resolveDir(base, dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// DataDir returns the configured data directory, or the default one.
func (c *Config) DataDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	return paths.DefaultDataDir()
}

// Addr returns the configured listen address, or DefaultAddr.
func (c *Config) Addr() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return DefaultAddr
}

// Actor returns the acting user: $TG_ACTOR, then user.name, then $USER.
func (c *Config) Actor() string {
	if actor := strings.TrimSpace(os.Getenv(ActorEnv)); actor != "" {
		return actor
	}
	if c.User.Name != "" {
		return c.User.Name
	}
	return strings.TrimSpace(os.Getenv("USER"))
}

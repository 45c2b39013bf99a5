// Package config handles configuration loading, validation, and persistence
// for the relay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
	DefaultAPIPort    = 5000
	DefaultGamePort   = 2050

	// MinReconnectDelaySec is the shortest reconnect delay the game
	// servers tolerate.
	MinReconnectDelaySec = 5
)

// Environment variables that override the first account and server. They
// allow a single-account start without editing config.json.
const (
	EnvBuildVersion = "NRELAY_BUILD_VERSION"
	EnvGUID         = "NRELAY_GUID"
	EnvPassword     = "NRELAY_PASSWORD"
	EnvServer       = "NRELAY_SERVER"
	EnvCharID       = "NRELAY_CHAR_ID"
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Client     ClientConfig     `json:"client"`
	Servers    []ServerConfig   `json:"servers"`
	Accounts   []AccountConfig  `json:"accounts"`
	Resources  ResourcesConfig  `json:"resources"`
	Extensions ExtensionsConfig `json:"extensions"`
	Logging    LoggingConfig    `json:"logging"`
	MQTT       MQTTConfig       `json:"mqtt"`
	API        APIConfig        `json:"api"`
	Database   DatabaseConfig   `json:"database"`
}

// ClientConfig holds settings shared by every session.
type ClientConfig struct {
	BuildVersion      string `json:"build_version"`
	ReconnectDelaySec int    `json:"reconnect_delay_sec"`
	ConnectTimeoutSec int    `json:"connect_timeout_sec"`
	StatsIntervalSec  int    `json:"stats_interval_sec"`
	// StrictDecoding rejects unknown packet types and trailing payload bytes
	// instead of dropping them.
	StrictDecoding bool `json:"strict_decoding"`
}

// ServerConfig names a game server endpoint.
type ServerConfig struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// AccountConfig is one account to log in. Server refers to ServerConfig.Name.
type AccountConfig struct {
	GUID     string `json:"guid"`
	Password string `json:"password"`
	Server   string `json:"server"`
	CharID   int32  `json:"char_id"`
}

// ResourcesConfig points at static game data files.
type ResourcesConfig struct {
	TileSpeedsFile string `json:"tile_speeds_file"`
}

// ExtensionsConfig configures the bundled extensions.
type ExtensionsConfig struct {
	Notifier  NotifierConfig  `json:"notifier"`
	Waypoints WaypointConfig  `json:"waypoints"`
	PacketTap PacketTapConfig `json:"packet_tap"`
}

// NotifierRule maps a keyword in server text to a notification level. When
// MaxCount is positive the rule only fires if the number in the text is at
// most MaxCount.
type NotifierRule struct {
	Keyword  string `json:"keyword"`
	Level    string `json:"level"`
	MaxCount int    `json:"max_count,omitempty"`
}

// NotifierConfig configures the text keyword notifier.
type NotifierConfig struct {
	Enabled bool           `json:"enabled"`
	Rules   []NotifierRule `json:"rules"`
}

// Waypoint is a map position in tiles.
type Waypoint struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// WaypointConfig configures the waypoint walker.
type WaypointConfig struct {
	Enabled bool       `json:"enabled"`
	Path    []Waypoint `json:"path"`
}

// PacketTapConfig configures the packet tap that feeds the API websocket.
type PacketTapConfig struct {
	Enabled bool     `json:"enabled"`
	Types   []string `json:"types"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Console    bool   `json:"console"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// APIConfig holds the control API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	Token          string   `json:"token"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// DatabaseConfig holds the connection journal settings.
type DatabaseConfig struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
	PruneTime     string `json:"prune_time"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ReconnectDelaySec: 5,
			ConnectTimeoutSec: 10,
			StatsIntervalSec:  300,
		},
		Servers:  []ServerConfig{},
		Accounts: []AccountConfig{},
		Resources: ResourcesConfig{
			TileSpeedsFile: "resources/tiles.json",
		},
		Extensions: ExtensionsConfig{
			Notifier: NotifierConfig{
				Enabled: true,
				Rules:   DefaultNotifierRules(),
			},
			Waypoints: WaypointConfig{
				Path: []Waypoint{},
			},
			PacketTap: PacketTapConfig{
				Types: []string{"TEXT", "MAPINFO", "FAILURE"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Console:    true,
		},
		MQTT: MQTTConfig{
			Port:        1883,
			TopicPrefix: "nrelay",
		},
		API: APIConfig{
			Port:           DefaultAPIPort,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   20,
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "data/nrelay.db",
			RetentionDays: 30,
			PruneTime:     "04:00",
		},
	}
}

// DefaultNotifierRules returns the realm event keywords worth surfacing.
func DefaultNotifierRules() []NotifierRule {
	return []NotifierRule{
		{Keyword: "Lich", Level: "error", MaxCount: 4},
		{Keyword: "Avatar", Level: "success"},
		{Keyword: "Shatters", Level: "success"},
		{Keyword: "Sphinx", Level: "success"},
		{Keyword: "Hermit", Level: "success"},
		{Keyword: "Cube", Level: "message"},
		{Keyword: "Ghost", Level: "message"},
		{Keyword: "Lord", Level: "message"},
		{Keyword: "Pentaract", Level: "message"},
		{Keyword: "Skull", Level: "message"},
	}
}

// Load reads configuration from a JSON file, then applies the .env overlay.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	// The overlay is applied after saving so credentials from the
	// environment never end up in config.json.
	cfg.applyEnv()
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("environment file loaded")
	return nil
}

// applyEnv overrides the first account from the environment.
func (c *Config) applyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv(EnvBuildVersion); v != "" {
		c.Client.BuildVersion = v
	}

	guid := os.Getenv(EnvGUID)
	if guid == "" {
		return
	}
	if len(c.Accounts) == 0 {
		c.Accounts = append(c.Accounts, AccountConfig{})
	}
	acc := &c.Accounts[0]
	acc.GUID = guid
	if v := os.Getenv(EnvPassword); v != "" {
		acc.Password = v
	}
	if v := os.Getenv(EnvServer); v != "" {
		acc.Server = v
	}
	if v := os.Getenv(EnvCharID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 32); err == nil {
			acc.CharID = int32(id)
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid " + EnvCharID)
		}
	}
	log.Info().Msg("first account overridden from environment")
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetClient returns a copy of the client settings.
func (c *Config) GetClient() ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Client
}

// GetAccounts returns a copy of the configured accounts.
func (c *Config) GetAccounts() []AccountConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AccountConfig, len(c.Accounts))
	copy(out, c.Accounts)
	return out
}

// AddAccount appends an account.
func (c *Config) AddAccount(acc AccountConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts = append(c.Accounts, acc)
}

// GetServers returns a copy of the configured servers.
func (c *Config) GetServers() []ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServerConfig, len(c.Servers))
	copy(out, c.Servers)
	return out
}

// FindServer looks up a server by name.
func (c *Config) FindServer(name string) (ServerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// AddServer appends a server, replacing one with the same name.
func (c *Config) AddServer(srv ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Servers {
		if c.Servers[i].Name == srv.Name {
			c.Servers[i] = srv
			return
		}
	}
	c.Servers = append(c.Servers, srv)
}

// GetExtensions returns a copy of the extension settings.
func (c *Config) GetExtensions() ExtensionsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Extensions
}

// GetMQTT returns a copy of the MQTT settings.
func (c *Config) GetMQTT() MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MQTT
}

// GetAPI returns a copy of the API settings.
func (c *Config) GetAPI() APIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.API
}

// GetDatabase returns a copy of the database settings.
func (c *Config) GetDatabase() DatabaseConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database
}

// GetLogging returns a copy of the logging settings.
func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// GetResources returns a copy of the resource settings.
func (c *Config) GetResources() ResourcesConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resources
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if no account is configured yet.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Accounts) == 0 || len(c.Servers) == 0
}

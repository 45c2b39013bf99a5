package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/nrelay-go/nrelay/internal/protocol"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

var validLevels = map[string]bool{"message": true, "success": true, "error": true}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	result := &ValidationResult{}

	validateClient(&cfg.Client, result)
	servers := validateServers(cfg.Servers, result)
	validateAccounts(cfg.Accounts, servers, result)
	validateExtensions(&cfg.Extensions, result)
	validateServices(cfg, result)

	return result
}

func validateClient(c *ClientConfig, result *ValidationResult) {
	if strings.TrimSpace(c.BuildVersion) == "" {
		result.AddError("client.build_version", "build version is required")
	}
	if c.ReconnectDelaySec < MinReconnectDelaySec {
		result.AddError("client.reconnect_delay_sec",
			fmt.Sprintf("reconnect delay must be at least %d seconds", MinReconnectDelaySec))
	}
	if c.ConnectTimeoutSec < 1 {
		result.AddError("client.connect_timeout_sec", "connect timeout must be at least 1 second")
	}
}

func validateServers(servers []ServerConfig, result *ValidationResult) map[string]bool {
	names := make(map[string]bool, len(servers))
	for i, s := range servers {
		field := fmt.Sprintf("servers[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			result.AddError(field+".name", "server name is required")
		} else if names[s.Name] {
			result.AddError(field+".name", fmt.Sprintf("duplicate server name %q", s.Name))
		}
		names[s.Name] = true

		if strings.TrimSpace(s.Host) == "" {
			result.AddError(field+".host", "server host is required")
		}
		if s.Port != 0 {
			validatePort(s.Port, field+".port", result)
		}
	}
	return names
}

func validateAccounts(accounts []AccountConfig, servers map[string]bool, result *ValidationResult) {
	if len(accounts) == 0 {
		result.AddError("accounts", "at least one account is required")
		return
	}

	seen := make(map[string]bool, len(accounts))
	for i, a := range accounts {
		field := fmt.Sprintf("accounts[%d]", i)
		if strings.TrimSpace(a.GUID) == "" {
			result.AddError(field+".guid", "account guid is required")
		} else if seen[a.GUID] {
			result.AddWarning(field+".guid", "account is listed twice, sessions will kick each other")
		}
		seen[a.GUID] = true

		if strings.TrimSpace(a.Password) == "" {
			result.AddError(field+".password", "account password is required")
		}
		if !servers[a.Server] {
			result.AddError(field+".server", fmt.Sprintf("unknown server %q", a.Server))
		}
		if a.CharID < 0 {
			result.AddError(field+".char_id", "char_id must not be negative")
		}
	}
}

func validateExtensions(e *ExtensionsConfig, result *ValidationResult) {
	for i, r := range e.Notifier.Rules {
		field := fmt.Sprintf("extensions.notifier.rules[%d]", i)
		if strings.TrimSpace(r.Keyword) == "" {
			result.AddError(field+".keyword", "keyword is required")
		}
		if !validLevels[r.Level] {
			result.AddError(field+".level", fmt.Sprintf("invalid level %q (message, success, error)", r.Level))
		}
	}
	if e.Waypoints.Enabled && len(e.Waypoints.Path) == 0 {
		result.AddWarning("extensions.waypoints.path", "waypoint walker enabled with an empty path")
	}
	for i, name := range e.PacketTap.Types {
		if _, ok := protocol.ParsePacketType(name); !ok {
			result.AddError(fmt.Sprintf("extensions.packet_tap.types[%d]", i), fmt.Sprintf("unknown packet type %q", name))
		}
	}
}

func validateServices(cfg *Config, result *ValidationResult) {
	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
			result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			result.AddError("mqtt.port", "invalid MQTT port")
		}
	}

	if cfg.API.Enabled {
		validatePort(cfg.API.Port, "api.port", result)
		if cfg.API.Token == "" {
			result.AddWarning("api.token", "API has no token, anyone who can reach it can control sessions")
		}
	}

	if cfg.Database.Enabled && strings.TrimSpace(cfg.Database.Path) == "" {
		result.AddError("database.path", "database path is required when enabled")
	}

	if f := cfg.Resources.TileSpeedsFile; f != "" {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			result.AddWarning("resources.tile_speeds_file",
				fmt.Sprintf("file does not exist: %s, all tiles will use speed 1", f))
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Package util provides logging and host helpers shared by the relay's
// components.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Console    bool   `json:"console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Console:    true,
	}
}

// InitLogger initializes the zerolog global logger with a rotating file and
// optional console output.
func InitLogger(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	logFilePath := filepath.Join(cfg.Directory, "nrelay.log")

	// File writer (JSON format for machine parsing), rotated by size
	var writers []io.Writer
	writers = append(writers, &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "nrelay").
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")

	return nil
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Success starts an info-level event marked as a success, for milestones
// such as a character entering the game.
func Success(l *zerolog.Logger) *zerolog.Event {
	return l.Info().Str("status", "success")
}

var guidPattern = regexp.MustCompile(`.+?(.+?)(?:@|\+\d+).+?(.+?)\.`)

// CensorGUID masks the local part and the domain of an e-mail GUID so it
// can be written to logs. GUIDs too short for the pattern, and ids that are
// not e-mails, are masked down to their first character; ids under four
// characters are masked entirely.
func CensorGUID(guid string) string {
	m := guidPattern.FindStringSubmatchIndex(guid)
	if m == nil {
		return maskGUID(guid)
	}
	// Replace group 2 first so the offsets of group 1 stay valid.
	out := guid[:m[4]] + "***" + guid[m[5]:]
	return out[:m[2]] + "***" + out[m[3]:]
}

func maskGUID(guid string) string {
	if guid == "" {
		return ""
	}
	runes := []rune(guid)
	if len(runes) < 4 {
		return "***"
	}
	out := string(runes[0]) + "***"
	if at := strings.LastIndexByte(guid, '@'); at >= 0 {
		if dot := strings.LastIndexByte(guid, '.'); dot > at {
			out += "@***" + guid[dot:]
		}
	}
	return out
}

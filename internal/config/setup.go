package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration, reading
// answers from in and writing prompts to out.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	p := prompter{reader: reader, out: out}

	fmt.Fprintln(out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║           nrelay - First Run Setup           ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	cfg.mu.Lock()

	fmt.Fprintln(out, "── Client ──")
	cfg.Client.BuildVersion = p.string("Game build version", cfg.Client.BuildVersion)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Server ──")
	srv := ServerConfig{Port: DefaultGamePort}
	srv.Name = p.string("Server name (e.g. USEast)", "USEast")
	srv.Host = p.string("Server host", srv.Host)
	srv.Port = p.int("Server port", srv.Port)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Account ──")
	acc := AccountConfig{Server: srv.Name}
	acc.GUID = p.string("Account e-mail", "")
	acc.Password = p.string("Account password", "")
	acc.CharID = int32(p.int("Character id (0 creates a new character)", 0))

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Services ──")
	cfg.API.Enabled = p.bool("Enable control API", cfg.API.Enabled)
	cfg.MQTT.Enabled = p.bool("Enable MQTT telemetry", cfg.MQTT.Enabled)
	if cfg.MQTT.Enabled {
		cfg.MQTT.BrokerURL = p.string("MQTT broker host", cfg.MQTT.BrokerURL)
	}

	cfg.mu.Unlock()

	cfg.AddServer(srv)
	cfg.AddAccount(acc)

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved successfully!")
	fmt.Fprintln(out)

	return nil
}

type prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func (p prompter) read() string {
	input, _ := p.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (p prompter) string(prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(p.out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(p.out, "  %s: ", prompt)
	}

	if input := p.read(); input != "" {
		return input
	}
	return defaultVal
}

func (p prompter) int(prompt string, defaultVal int) int {
	fmt.Fprintf(p.out, "  %s [%d]: ", prompt, defaultVal)

	input := p.read()
	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(p.out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (p prompter) bool(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(p.out, "  %s [%s]: ", prompt, defaultStr)

	input := strings.ToLower(p.read())
	if input == "" {
		return defaultVal
	}
	return input == "yes" || input == "y" || input == "true" || input == "1"
}

// Package config loads the runtime configuration from defaults, a YAML
// file, environment variables and CLI overrides, in that order of
// precedence (later wins).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Serve     ServeConfig     `koanf:"serve"`
	Audit     AuditConfig     `koanf:"audit"`
	Script    ScriptConfig    `koanf:"script"`
	MCP       MCPConfig       `koanf:"mcp"`
	HTTP      HTTPConfig      `koanf:"http"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool              `koanf:"enabled"`
	Exporter     string            `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string            `koanf:"otlp_endpoint"`
	OTLPInsecure bool              `koanf:"otlp_insecure"`
	OTLPHeaders  map[string]string `koanf:"otlp_headers"`
	OTLPUser     string            `koanf:"otlp_user"`
	OTLPToken    string            `koanf:"otlp_token"`
}

type ServeConfig struct {
	Addr string `koanf:"addr"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Store   string `koanf:"store"` // memory, sqlite
	Path    string `koanf:"path"`  // sqlite database path
}

type ScriptConfig struct {
	MaxDepth int `koanf:"max_depth"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes one MCP server whose tools are bound into the
// root environment under "<name>." prefixed names.
type MCPServerConfig struct {
	Name      string   `koanf:"name"`
	Transport string   `koanf:"transport"` // stdio, http
	Command   string   `koanf:"command"`
	Args      []string `koanf:"args"`
	URL       string   `koanf:"url"`
}

type HTTPConfig struct {
	Services []HTTPServiceConfig `koanf:"services"`
}

// HTTPServiceConfig describes one remote service whose tools are bound
// into the root environment under "<name>." prefixed names.
type HTTPServiceConfig struct {
	Name      string `koanf:"name"`
	URL       string `koanf:"url"`
	TimeoutMs int    `koanf:"timeout_ms"`
}

// Load reads the configuration from defaults, the given file (if any)
// and LOOM_-prefixed environment variables.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile loads the base file and then overlays the profile
// variant next to it (config.yaml + profile "dev" -> config.dev.yaml).
// A profile without a matching file falls back to the base alone.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI loads configuration driven by CLI arguments: --config and
// --profile (alias --env) select the files, --set key=value entries win
// over everything else.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.ConfigPath, opts.Profile, sets)
}

func load(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	k.Set("serve.addr", ":8080")

	k.Set("audit.enabled", true)
	k.Set("audit.store", "memory")
	k.Set("audit.path", "loom-audit.db")

	k.Set("script.max_depth", 1000)

	// 1. Load from file, then the profile overlay
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}
	if overlay := profileConfigPath(path, profile); overlay != "" {
		if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (LOOM_SERVE_ADDR -> serve.addr)
	if err := k.Load(env.Provider("LOOM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LOOM_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// 3. CLI --set overrides
	for _, entry := range sets {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", entry)
		}
		k.Set(key, parseOverrideValue(raw))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

type cliOptions struct {
	ConfigPath string
	Profile    string
}

// parseCLIOverrides extracts --config, --profile/--env and --set entries
// from args, accepting both "--flag value" and "--flag=value" spellings.
// Unrecognized arguments pass through untouched.
func parseCLIOverrides(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	var sets []string
	for i := 0; i < len(args); i++ {
		name, inline, hasInline := strings.Cut(args[i], "=")
		if name != "--config" && name != "--profile" && name != "--env" && name != "--set" {
			continue
		}
		value := inline
		if !hasInline {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("flag %s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			opts.ConfigPath = value
		case "--profile", "--env":
			opts.Profile = value
		case "--set":
			if !strings.Contains(value, "=") {
				return opts, nil, fmt.Errorf("invalid --set %q, want key=value", value)
			}
			sets = append(sets, value)
		}
	}
	return opts, sets, nil
}

// parseOverrideValue decodes a --set value: JSON when it parses, the
// raw string otherwise, so both --set script.max_depth=50 and
// --set mcp.servers=[{...}] do what they look like.
func parseOverrideValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}
	return raw
}

// profileConfigPath resolves the profile overlay next to the base file,
// or "" when the base, profile or overlay file is missing.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	overlay := filepath.Join(dir, name+"."+profile+ext)
	if _, err := os.Stat(overlay); err != nil {
		return ""
	}
	return overlay
}

package conf

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	z "github.com/Oudwins/zog"
)

type Config struct {
	Version string       `json:"-"`
	Server  ServerConfig `json:"server"`
	Runner  RunnerConfig `json:"runner"`
}

type ServerConfig struct {
	DataDir string `json:"data_dir"`
}

type RunnerConfig struct {
	Shell string `json:"shell"`
}

var serverSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default("~/.local/share/lucy-agent").Transform(expandPathTransform),
})

var runnerSchema = z.Struct(z.Shape{
	"Shell": z.String().Default("/bin/sh"),
})

var ConfigSchema = z.Struct(z.Shape{
	"server": serverSchema,
	"runner": runnerSchema,
})

var config *Config

// GetConfig loads lucy-agent.json from the data dir, falling back to schema
// defaults when the file is absent or empty.
func GetConfig() *Config {
	if config == nil {
		defaults := &Config{}
		if err := ConfigSchema.Parse(map[string]any{}, defaults); err != nil {
			log.Fatal("[lucyd] Failed to parse config", err)
		}
		defaults.Version = "0.1.0"

		dataDir, err := expandPath(defaults.Server.DataDir)
		if err != nil {
			log.Fatal("[lucyd] Failed to expand config data dir", err)
		}

		configPath := filepath.Join(filepath.Clean(dataDir), "lucy-agent.json")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				config = defaults
				return config
			}
			log.Fatal("[lucyd] Failed to read config file", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			config = defaults
			return config
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Fatal("[lucyd] Failed to parse config file", err)
		}
		parsed := &Config{}
		if err := ConfigSchema.Parse(payload, parsed); err != nil {
			log.Fatal("[lucyd] Failed to parse config", err)
		}
		parsed.Version = defaults.Version
		config = parsed
	}

	return config
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := expandPath(*ptr)
	*ptr = expanded
	return err
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

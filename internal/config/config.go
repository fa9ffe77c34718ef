package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mindloom/nudged/internal/settings"
)

// Config is the runtime configuration, resolved as defaults, then the YAML
// file, then NUDGED_* environment variables.
type Config struct {
	DBPath               string                       `yaml:"db_path"`
	PlanBaseURL          string                       `yaml:"plan_base_url"`
	DesktopNotifications bool                         `yaml:"desktop_notifications"`
	SocketPath           string                       `yaml:"socket_path"`
	LogFile              string                       `yaml:"log_file"`
	BridgeBuffer         int                          `yaml:"bridge_buffer"`
	Presets              map[string]settings.Settings `yaml:"presets"`
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		DBPath:               filepath.Join(dataDir, "nudged.db"),
		SocketPath:           filepath.Join(dataDir, "nudged.sock"),
		LogFile:              filepath.Join(dataDir, "nudged.log"),
		DesktopNotifications: true,
		BridgeBuffer:         64,
	}
}

// DefaultConfigPath is where FromFile looks when no --config flag is given.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "nudged")
	}
	return ".nudged"
}

// FromFile layers a YAML config file over base. A missing file is not an
// error; a malformed one is, so a typo does not silently vanish.
func FromFile(base Config, path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func FromEnv(base Config) Config {
	cfg := base
	if v := strings.TrimSpace(os.Getenv("NUDGED_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("NUDGED_PLAN_BASE_URL")); v != "" {
		cfg.PlanBaseURL = v
	}
	if v, ok := getEnvBool("NUDGED_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v := strings.TrimSpace(os.Getenv("NUDGED_SOCKET_PATH")); v != "" {
		cfg.SocketPath = v
	}
	if v := strings.TrimSpace(os.Getenv("NUDGED_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v, ok := getEnvInt("NUDGED_BRIDGE_BUFFER"); ok && v > 0 {
		cfg.BridgeBuffer = v
	}
	return cfg
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ServerOptions are process-level options read from the environment
type ServerOptions struct {
	Addr       string `env:"DASHBOARD_ADDR" envDefault:":8080"`
	ConfigPath string `env:"MINISTRY_CONFIG" envDefault:"configs/config.yaml"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath    string `env:"LOG_PATH"`
}

// LoadEnv loads the existing .env files and reports how many were found
func LoadEnv(envFiles ...string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadServerOptions reads .env files (if any) and parses ServerOptions
func LoadServerOptions(envFiles ...string) (*ServerOptions, error) {
	if _, err := LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	opts := &ServerOptions{}
	if err := env.Parse(opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return opts, nil
}

// LogrusLevel maps LOG_LEVEL to a logrus level
func (o *ServerOptions) LogrusLevel() logrus.Level {
	switch o.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

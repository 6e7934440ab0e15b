// Package config resolves runtime configuration from the environment, an
// optional .env file, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Transport names accepted by STUDYGRAPH_TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Default document filenames, used when no path is configured.
const (
	DefaultGraphFile    = "studygraph.json"
	DefaultSessionsFile = "sessions.json"
)

// Config holds all application configuration.
type Config struct {
	GraphPath    string `env:"STUDYGRAPH_GRAPH_PATH"`
	SessionsPath string `env:"STUDYGRAPH_SESSIONS_PATH"`
	VocabPath    string `env:"STUDYGRAPH_VOCAB_PATH"`
	Transport    string `env:"STUDYGRAPH_TRANSPORT" envDefault:"stdio"`
	HTTPAddr     string `env:"STUDYGRAPH_HTTP_ADDR" envDefault:":8080"`
	Environment  string `env:"STUDYGRAPH_ENV" envDefault:"production"`
}

// Load reads .env when present, then parses the environment. Paths are left
// as given so flag overrides can still apply; call ResolvePaths afterwards.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects unsupported transport names.
func (c *Config) Validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("unsupported transport %q (want stdio or http)", c.Transport)
	}
	return nil
}

// ResolvePaths fixes the document paths: absolute paths are kept verbatim,
// relative paths resolve against the working directory, and empty paths fall
// back to the default filename alongside the running executable.
func (c *Config) ResolvePaths() error {
	var err error
	if c.GraphPath, err = resolvePath(c.GraphPath, DefaultGraphFile); err != nil {
		return err
	}
	if c.SessionsPath, err = resolvePath(c.SessionsPath, DefaultSessionsFile); err != nil {
		return err
	}
	return nil
}

func resolvePath(path, defaultName string) (string, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		return filepath.Join(filepath.Dir(exe), defaultName), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(path)
}

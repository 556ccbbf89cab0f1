package config

import (
	"errors"
	errorpkg "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	fileName = ".nexdb.yml"

	EnvConfigPath = "NEXDB_CONFIG"
	EnvHost       = "NEXDB_HOST"
	EnvAccessKey  = "NEXDB_ACCESS_KEY"
)

var ErrNotConfigured = errors.New("nexdb is not configured, run 'nexdb config init' first")

type Config struct {
	Host string `yaml:"host"`
	// AccessKey is only written to the file when the system keyring is unavailable
	AccessKey string `yaml:"access_key,omitempty"`
}

// Path returns the location of the client configuration, ~/.nexdb.yml unless NEXDB_CONFIG is set
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errorpkg.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, fileName), nil
}

// Load reads the configuration file and resolves the access key. Environment variables win
// over the file so the client can run from crontab without a keyring session.
func Load() (Config, error) {
	c := Config{}
	path, err := Path()
	if err != nil {
		return c, err
	}

	value, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return c, errorpkg.Wrap(err, "failed to read "+path)
	default:
		if err := yaml.Unmarshal(value, &c); err != nil {
			return c, errorpkg.Wrap(err, "failed to parse "+path)
		}
	}

	if host := os.Getenv(EnvHost); host != "" {
		c.Host = host
	}

	if key := os.Getenv(EnvAccessKey); key != "" {
		c.AccessKey = key
	}

	if c.AccessKey == "" {
		if key, err := loadAccessKey(); err == nil {
			c.AccessKey = key
		}
	}

	if c.Host == "" {
		return c, ErrNotConfigured
	}
	return c, nil
}

// Save writes c to the configuration file. The access key goes to the system keyring when
// possible; inKeyring reports false when it had to be written to the file instead.
func Save(c Config) (inKeyring bool, err error) {
	path, err := Path()
	if err != nil {
		return false, err
	}

	inKeyring = true
	if c.AccessKey != "" {
		if err := storeAccessKey(c.AccessKey); err == nil {
			c.AccessKey = ""
		} else {
			inKeyring = false
		}
	}

	value, err := yaml.Marshal(c)
	if err != nil {
		return false, err
	}

	if err := os.WriteFile(path, value, 0o600); err != nil {
		return false, errorpkg.Wrap(err, "failed to write "+path)
	}
	return inKeyring, nil
}

package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/depwalk/pkg/errors"
)

// fileConfig is the optional depwalk.toml configuration file. Values act
// as defaults; flags given on the command line always win.
type fileConfig struct {
	Interpreter string `toml:"interpreter"`
	Workers     int    `toml:"workers"`
	MaxNodes    int    `toml:"max_nodes"`
	CacheDir    string `toml:"cache_dir"`
	Redis       string `toml:"redis"`

	Serve serveConfig `toml:"serve"`
}

type serveConfig struct {
	Addr     string `toml:"addr"`
	MongoURI string `toml:"mongo_uri"`
	MongoDB  string `toml:"mongo_db"`
}

// loadConfig reads the configuration file at path, or the default
// location when path is empty. A missing file at the default location is
// not an error; a missing file named explicitly is.
func loadConfig(path string) (fileConfig, error) {
	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return fileConfig{}, nil
		}
		path = p
	}

	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return fileConfig{}, nil
		}
		return fileConfig{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "load config file %s", path)
	}
	return cfg, nil
}

// defaultConfigPath returns the config file location using the XDG
// standard (~/.config/depwalk/depwalk.toml).
func defaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "depwalk.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "depwalk.toml"), nil
}

package config

import (
	"fmt"
	"os"
	"path"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const rangeserveConfigDirName = "rangeserve"
const rangeserveConfigFileName = "server.toml"

// A Config represents the on-disk configuration of a video server.
type Config struct {
	Profiles map[string]Profile `json:"profiles,omitempty"`
}

// LoadFile loads a config from path.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open rangeserve configuration file")
	}
	defer file.Close()

	decoder := toml.NewDecoder(file).SetTagName("json")

	var cfg Config
	err = decoder.Decode(&cfg)

	if err != nil {
		err = errors.Wrap(err, "failed to decode TOML config")
	}

	return &cfg, err
}

// DefaultPath returns the location of the configuration file in the user configuration directory.
func DefaultPath() (string, error) {
	configPath, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get the user configuration directory")
	}

	return path.Join(configPath, rangeserveConfigDirName, rangeserveConfigFileName), nil
}

// LoadDefault loads a config from the default path.
// A missing file yields an empty config.
func LoadDefault() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{Profiles: map[string]Profile{}}, nil
	}

	return LoadFile(configPath)
}

// Profile returns the named profile with defaults applied.
// The default profile is synthesized when the config does not declare it.
func (c *Config) Profile(profileName string) (*Profile, error) {
	if profile, ok := c.Profiles[profileName]; ok {
		profile = profile.WithDefaults()
		return &profile, nil
	}

	if profileName == DefaultProfileName {
		profile := DefaultProfile()
		return &profile, nil
	}

	return nil, errors.New(fmt.Sprintf("profile '%s' not found", profileName))
}

// LoadProfile loads a single profile, from configPath when set and from the default location otherwise.
func LoadProfile(configPath string, profileName string) (*Profile, error) {
	var cfg *Config
	var err error
	if configPath != "" {
		cfg, err = LoadFile(configPath)
	} else {
		cfg, err = LoadDefault()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile from configuration")
	}

	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}

	if err := profile.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid profile '%s'", profileName)
	}

	return profile, nil
}

package config

import "github.com/pkg/errors"

const (
	DefaultListen      = ":5000"
	DefaultRoot        = "videos"
	DefaultFile        = "sample.mp4"
	DefaultChunkSize   = 8192
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultProfileName = "default"
)

// A Profile contains everything needed to run a video server.
type Profile struct {
	Listen      string `json:"listen,omitempty"`
	Root        string `json:"root,omitempty"`
	DefaultFile string `json:"default_file,omitempty"`
	ChunkSize   int    `json:"chunk_size,omitempty"`

	// AllowOrigin is sent as Access-Control-Allow-Origin when set.
	AllowOrigin string `json:"allow_origin,omitempty"`

	// NoStore disables client and proxy caching of video responses.
	NoStore bool `json:"no_store,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultProfile returns the profile used when no configuration file exists.
func DefaultProfile() Profile {
	return Profile{
		Listen:      DefaultListen,
		Root:        DefaultRoot,
		DefaultFile: DefaultFile,
		ChunkSize:   DefaultChunkSize,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
	}
}

// WithDefaults returns a copy of the profile with every unset field taken from DefaultProfile.
func (p Profile) WithDefaults() Profile {
	defaults := DefaultProfile()
	if p.Listen == "" {
		p.Listen = defaults.Listen
	}
	if p.Root == "" {
		p.Root = defaults.Root
	}
	if p.DefaultFile == "" {
		p.DefaultFile = defaults.DefaultFile
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = defaults.ChunkSize
	}
	if p.LogLevel == "" {
		p.LogLevel = defaults.LogLevel
	}
	if p.LogFormat == "" {
		p.LogFormat = defaults.LogFormat
	}
	return p
}

// Validate checks the values a server cannot start without.
func (p Profile) Validate() error {
	if p.Root == "" {
		return errors.New("storage root is required")
	}
	if p.ChunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", p.ChunkSize)
	}
	if p.LogFormat != "text" && p.LogFormat != "json" {
		return errors.Errorf("unknown log format '%s'", p.LogFormat)
	}
	return nil
}

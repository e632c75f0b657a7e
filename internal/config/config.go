package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional vinyl configuration file. Every field is a
// pointer (or nil slice) so an unset value is distinguishable from an
// explicit one; flags given on the command line always win.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Tools    ToolsConfig    `toml:"tools"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Jobs             *int     `toml:"jobs"`
	TargetFormat     *string  `toml:"target_format"`
	TranscodeFormats []string `toml:"transcode_formats"`
	EncoderOptions   *string  `toml:"encoder_options"`
	ChecksumTags     *bool    `toml:"checksum_tags"`
	Verify           *bool    `toml:"verify"`
	IncludeHidden    *bool    `toml:"include_hidden"`
}

// ToolsConfig holds external tool locations. An explicit empty rsync path
// disables rsync the same way --no-rsync does.
type ToolsConfig struct {
	FFmpeg *string `toml:"ffmpeg"`
	Rsync  *string `toml:"rsync"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "vinyl", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

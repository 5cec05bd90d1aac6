// Package config holds the settings for each command, with defaults that can be
// overridden by a YAML file, the environment and flags, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sammcj/deskchores/internal/marker"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMarker is appended to the stem of locked files.
	DefaultMarker = marker.Default

	// DefaultComicsList is the list file read when none is given.
	DefaultComicsList = "main_page_update_comics.csv"

	// DefaultUserAgent identifies the comics downloader to the sites it polls.
	DefaultUserAgent = "deskchores/1.0 (+https://github.com/sammcj/deskchores)"
)

// Config is every command's settings.
type Config struct {
	Logging  Logging  `yaml:"logging"`
	Paranoia Paranoia `yaml:"paranoia"`
	Excel    Excel    `yaml:"excel"`
	Comics   Comics   `yaml:"comics"`
}

// Logging controls the debug log file.
type Logging struct {
	// Debug turns on the command's debug file in the working directory.
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

// Paranoia configures bulk locking and unlocking.
type Paranoia struct {
	// Root is where folders are searched for. Empty means the home directory.
	Root                string `yaml:"root"`
	Recursive           bool   `yaml:"recursive"`
	Marker              string `yaml:"marker" validate:"required,excludesall=./\\"`
	Ext                 string `yaml:"ext" validate:"required,startswith=.,excludesall=/\\"`
	TrashDir            string `yaml:"trash_dir"`
	StopOnVerifyFailure bool   `yaml:"stop_on_verify_failure"`
}

// Excel configures workbook conversion.
type Excel struct {
	// Out is where CSV files are written. Empty means next to the workbooks.
	Out string `yaml:"out"`
}

// Comics configures the webcomic downloader.
type Comics struct {
	List      string        `yaml:"list" validate:"required"`
	Out       string        `yaml:"out" validate:"required"`
	Rate      float64       `yaml:"rate" validate:"gt=0"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" validate:"required"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: "debug"},
		Paranoia: Paranoia{
			Recursive: true,
			Marker:    DefaultMarker,
			Ext:       ".pdf",
		},
		Comics: Comics{
			List:      DefaultComicsList,
			Out:       "webcomics",
			Rate:      1,
			Timeout:   30 * time.Second,
			UserAgent: DefaultUserAgent,
		},
	}
}

// Path returns the location of the config file.
func Path() string {
	if customPath := os.Getenv("DESKCHORES_CONFIG"); customPath != "" {
		return customPath
	}

	homeDir, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".deskchores", "config.yaml")
	}
	return filepath.Join(homeDir, ".deskchores", "config.yaml")
}

// Load reads the file at path over the defaults. A missing file is not an error.
// Unknown keys are, so typos don't go unnoticed.
func Load(path string) (*Config, error) {
	cfg := Default()

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	f, err := os.Open(expanded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", expanded, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", expanded, err)
	}
	return cfg, nil
}

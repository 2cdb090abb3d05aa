// Package config loads the scriptcam settings from a YAML file, SCRIPTCAM_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scriptcam/internal/capture"
	perr "github.com/ivlev/scriptcam/internal/errors"
	"github.com/ivlev/scriptcam/internal/layout"
	"github.com/ivlev/scriptcam/internal/scroll"
)

const (
	DefaultFile         = "scriptcam.yaml"
	DefaultOutputDir    = "output"
	DefaultScriptsDir   = "scripts"
	DefaultListenAddr   = "127.0.0.1:8787"
	DefaultFFmpeg       = "ffmpeg"
	DefaultFFprobe      = "ffprobe"
	DefaultEncoder      = "auto"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultMinFreeBytes = 512 << 20
)

type Config struct {
	OutputDir    string              `yaml:"outputDir" validate:"required"`
	ScriptsDir   string              `yaml:"scriptsDir" validate:"required"`
	ListenAddr   string              `yaml:"listenAddr" validate:"required,hostname_port"`
	FFmpeg       string              `yaml:"ffmpeg" validate:"required"`
	FFprobe      string              `yaml:"ffprobe" validate:"required"`
	Input        capture.FFmpegInput `yaml:"input"`
	Encoder      string              `yaml:"encoder" validate:"required"`
	Quality      int                 `yaml:"quality" validate:"gte=0,lte=100"`
	KeepOriginal bool                `yaml:"keepOriginal"`
	MinFreeBytes uint64              `yaml:"minFreeBytes"`
	Workers      int                 `yaml:"workers" validate:"gte=0,lte=64"`

	TickInterval time.Duration `yaml:"tickInterval" validate:"gte=1ms,lte=1s"`
	Grace        time.Duration `yaml:"grace" validate:"gte=0,lte=10s"`
	TopPadding   float64       `yaml:"topPadding" validate:"gte=0"`
	FontSize     float64       `yaml:"fontSize" validate:"gt=0,lte=400"`
	ViewWidth    float64       `yaml:"viewWidth" validate:"gt=0"`
	SidePadding  float64       `yaml:"sidePadding" validate:"gte=0"`

	LogLevel  string `yaml:"logLevel" validate:"oneof=trace debug info warn error"`
	LogFormat string `yaml:"logFormat" validate:"oneof=console json"`
}

// Default returns a configuration recording from the lavfi test source.
func Default() Config {
	return Config{
		OutputDir:  DefaultOutputDir,
		ScriptsDir: DefaultScriptsDir,
		ListenAddr: DefaultListenAddr,
		FFmpeg:     DefaultFFmpeg,
		FFprobe:    DefaultFFprobe,
		Input: capture.FFmpegInput{
			Format: "lavfi",
			Video:  "testsrc2=size=1280x720:rate=30",
			FPS:    30,
		},
		Encoder:      DefaultEncoder,
		MinFreeBytes: DefaultMinFreeBytes,
		TickInterval: scroll.DefaultTickInterval,
		Grace:        scroll.DefaultGrace,
		TopPadding:   scroll.DefaultTopPadding,
		FontSize:     layout.DefaultFontSize,
		ViewWidth:    layout.DefaultViewWidth,
		SidePadding:  layout.DefaultSidePadding,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
	}
}

var validate = validator.New()

// Validate checks field ranges and reports the first failure as an
// invalid_config error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidConfig, "config: validate")
	}
	return nil
}

// Loader loads the configuration. Tests override Lookup and ReadFile to
// inject deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load reads path (if it exists) over the defaults and applies environment
// overrides. A missing file is not an error unless path was set explicitly.
// The result is not validated; callers apply flags first, then Validate.
func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
		if v, ok := l.Lookup("SCRIPTCAM_CONFIG"); ok && strings.TrimSpace(v) != "" {
			path, explicit = strings.TrimSpace(v), true
		}
	}
	data, err := l.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, perr.Wrapf(err, perr.ErrorCodeInvalidConfig, "config: decode %s", path)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, perr.Wrapf(err, perr.ErrorCodeInvalidConfig, "config: read %s", path)
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	overrideString(l.Lookup, "SCRIPTCAM_OUTPUT_DIR", &cfg.OutputDir)
	overrideString(l.Lookup, "SCRIPTCAM_SCRIPTS_DIR", &cfg.ScriptsDir)
	overrideString(l.Lookup, "SCRIPTCAM_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "SCRIPTCAM_FFMPEG", &cfg.FFmpeg)
	overrideString(l.Lookup, "SCRIPTCAM_FFPROBE", &cfg.FFprobe)
	overrideString(l.Lookup, "SCRIPTCAM_INPUT_FORMAT", &cfg.Input.Format)
	overrideString(l.Lookup, "SCRIPTCAM_INPUT_VIDEO", &cfg.Input.Video)
	overrideString(l.Lookup, "SCRIPTCAM_INPUT_AUDIO", &cfg.Input.Audio)
	overrideString(l.Lookup, "SCRIPTCAM_ENCODER", &cfg.Encoder)
	overrideString(l.Lookup, "SCRIPTCAM_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "SCRIPTCAM_LOG_FORMAT", &cfg.LogFormat)

	if err := overrideInt(l.Lookup, "SCRIPTCAM_QUALITY", &cfg.Quality); err != nil {
		return err
	}
	if err := overrideInt(l.Lookup, "SCRIPTCAM_WORKERS", &cfg.Workers); err != nil {
		return err
	}
	if err := overrideBool(l.Lookup, "SCRIPTCAM_KEEP_ORIGINAL", &cfg.KeepOriginal); err != nil {
		return err
	}
	return overrideDuration(l.Lookup, "SCRIPTCAM_TICK_INTERVAL", &cfg.TickInterval)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return perr.InvalidConfigf("config: %s: %v", key, err)
	}
	*target = n
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return perr.InvalidConfigf("config: %s: %v", key, err)
	}
	*target = b
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return perr.InvalidConfigf("config: %s: %v", key, err)
	}
	*target = d
	return nil
}

// Write stores cfg as YAML at path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

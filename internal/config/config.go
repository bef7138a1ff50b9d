// Package config loads spark.toml and applies environment overrides.
//
//	[device]
//	driver = "host"       # "", "host" or "opencl"
//	type = "gpu"          # default|cpu|gpu|accelerator
//	platform = ""
//	index = 0
//
//	[build]
//	options = "-cl-fast-relaxed-math"
//	cache = true
//	cache_dir = ""        # empty: $XDG_CACHE_HOME/spark
//
//	[trace]
//	level = "off"         # off|error|stage|kernel|debug
//	mode = "ring"         # stream|ring|both
//	output = ""
//	format = "auto"       # auto|text|ndjson
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"spark/internal/device"
	"spark/internal/kcache"
	"spark/internal/trace"
)

// FileName is the configuration file looked up by Find.
const FileName = "spark.toml"

const (
	EnvDriver   = "SPARK_DRIVER"
	EnvCacheDir = "SPARK_CACHE_DIR"
)

type Config struct {
	Device DeviceConfig `toml:"device"`
	Build  BuildConfig  `toml:"build"`
	Trace  TraceConfig  `toml:"trace"`

	// Path is the file the values came from; empty for defaults.
	Path string `toml:"-"`
}

type DeviceConfig struct {
	Driver   string `toml:"driver"`
	Type     string `toml:"type"`
	Platform string `toml:"platform"`
	Index    int    `toml:"index"`
}

type BuildConfig struct {
	Options  string `toml:"options"`
	Cache    bool   `toml:"cache"`
	CacheDir string `toml:"cache_dir"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
	Format string `toml:"format"`
}

func Default() Config {
	return Config{
		Device: DeviceConfig{Type: "default"},
		Build:  BuildConfig{Cache: true},
		Trace:  TraceConfig{Level: "off", Mode: "ring", Format: "auto"},
	}
}

// Find walks up from startDir to locate spark.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults. Keys the file does not set keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("build", "cache_dir") && strings.TrimSpace(cfg.Build.CacheDir) == "" {
		return Config{}, fmt.Errorf("%s: [build].cache_dir is empty; remove it to use the default", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads an explicit path, or the nearest spark.toml above dir, or
// the defaults, and then applies the environment.
func Resolve(explicit, dir string) (Config, error) {
	cfg := Default()
	path := explicit
	if path == "" {
		found, ok, err := Find(dir)
		if err != nil {
			return Config{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides values from SPARK_DRIVER and SPARK_CACHE_DIR.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDriver); ok {
		c.Device.Driver = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvCacheDir); ok && strings.TrimSpace(v) != "" {
		c.Build.CacheDir = strings.TrimSpace(v)
	}
}

func (c Config) Validate() error {
	switch c.Device.Driver {
	case "", "host", "opencl":
	default:
		return fmt.Errorf("unknown driver %q (expected: host|opencl)", c.Device.Driver)
	}
	if _, err := c.Kind(); err != nil {
		return err
	}
	if c.Device.Index < 0 {
		return fmt.Errorf("device index %d must not be negative", c.Device.Index)
	}
	if _, err := c.TraceConfig(); err != nil {
		return err
	}
	return nil
}

func (c Config) Kind() (device.Kind, error) {
	return device.ParseKind(c.Device.Type)
}

// TraceConfig converts the [trace] table into a tracer configuration.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{Level: level, Mode: mode, Format: format, OutputPath: c.Trace.Output}, nil
}

// OpenCache opens the build cache, or returns nil when caching is off.
func (c Config) OpenCache() (*kcache.Cache, error) {
	if !c.Build.Cache {
		return nil, nil
	}
	dir := c.Build.CacheDir
	if dir == "" {
		var err error
		if dir, err = kcache.DefaultDir("spark"); err != nil {
			return nil, err
		}
	}
	return kcache.Open(dir)
}

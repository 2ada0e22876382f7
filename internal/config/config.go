// Package config loads orcha settings from an optional config file, ORCHA_*
// environment variables (a .env file in the working directory is read
// first) and, through viper flag bindings, command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/matzehuels/orcha/pkg/cache"
	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/force"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/graph"
)

// EnvPrefix prefixes every environment variable, e.g. ORCHA_SERVER_ADDR.
const EnvPrefix = "ORCHA"

// CacheConfig configures the pipeline cache.
type CacheConfig struct {
	Dir      string        `mapstructure:"dir"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
	Disabled bool          `mapstructure:"disabled"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	MongoURI string `mapstructure:"mongo_uri"` // empty keeps layouts in memory
	MongoDB  string `mapstructure:"mongo_db"`
	Ticks    int    `mapstructure:"ticks"`     // steps re-run after a parameter change
	MaxTicks int    `mapstructure:"max_ticks"` // upper bound for ?ticks=
}

// LayoutConfig holds build and render defaults.
type LayoutConfig struct {
	Width      float64 `mapstructure:"width"`
	Height     float64 `mapstructure:"height"`
	Seed       uint64  `mapstructure:"seed"`
	FontSize   float64 `mapstructure:"font_size"`
	RootSize   float64 `mapstructure:"root_size"`
	StreamSize float64 `mapstructure:"stream_size"`
	Ticks      int     `mapstructure:"ticks"`
	View       string  `mapstructure:"view"`
}

// Config holds all runtime configuration.
type Config struct {
	Cache  CacheConfig  `mapstructure:"cache"`
	Server ServerConfig `mapstructure:"server"`
	Layout LayoutConfig `mapstructure:"layout"`
	Force  force.Config `mapstructure:"force"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SetDefaults registers the built-in default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", cache.TTLLayout)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.disabled", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mongo_uri", "")
	v.SetDefault("server.mongo_db", "orcha")
	v.SetDefault("server.ticks", 50)
	v.SetDefault("server.max_ticks", 1000)

	v.SetDefault("layout.width", build.DefaultCanvasWidth)
	v.SetDefault("layout.height", build.DefaultCanvasHeight)
	v.SetDefault("layout.seed", build.DefaultSeed)
	v.SetDefault("layout.font_size", build.DefaultFontSize)
	v.SetDefault("layout.root_size", build.DefaultRootSize)
	v.SetDefault("layout.stream_size", build.DefaultStreamSize)
	v.SetDefault("layout.ticks", 0)
	v.SetDefault("layout.view", graph.ViewStream)

	def := force.DefaultConfig()
	for name, val := range def.Values() {
		key := "force." + name
		switch {
		case name == "seed":
			v.SetDefault(key, uint64(val))
		case force.IsInteger(name):
			v.SetDefault(key, int(val))
		default:
			v.SetDefault(key, val)
		}
	}
}

// Load reads configuration into a Config. path names an explicit config
// file; when empty, orcha.{yaml,toml,json} is looked up in the working
// directory and the user config directory, and a missing file is fine.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "read .env")
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("orcha")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "orcha"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode config")
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Force.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BuildOptions returns the builder settings from the layout section.
func (c Config) BuildOptions() build.Options {
	return build.Options{
		Seed:         c.Layout.Seed,
		StreamSize:   c.Layout.StreamSize,
		FontSize:     c.Layout.FontSize,
		RootSize:     c.Layout.RootSize,
		CanvasWidth:  c.Layout.Width,
		CanvasHeight: c.Layout.Height,
	}
}

// CacheDir returns the cache directory, defaulting to the XDG cache home.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if home := os.Getenv("XDG_CACHE_HOME"); home != "" {
		return filepath.Join(home, "orcha"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "orcha"), nil
}

// Package config loads the settings shared by every awari command.
//
// Values come from defaults, then an optional YAML file, then AWARI_*
// environment variables; command line flags are applied on top by the caller.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/storage"
)

// GameConfig selects the board geometry.
type GameConfig struct {
	Pits       int `yaml:"pits"`
	StartSeeds int `yaml:"start_seeds"`
}

// StorageConfig selects where the table lives.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Codec      string `yaml:"codec"`
	BlockShift int    `yaml:"block_shift"`
	MaxBlocks  int    `yaml:"max_blocks"`
	Recency    int    `yaml:"recency"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Color  bool   `yaml:"color"`  // colored console output
}

// ServerConfig configures the query server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxWorkers   int           `yaml:"max_workers"`
}

// Config is the complete configuration.
type Config struct {
	Game    GameConfig    `yaml:"game"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// Default returns the built-in configuration: 4 pits a side with 3 seeds
// each, analysed in RAM.
func Default() Config {
	return Config{
		Game: GameConfig{Pits: 4, StartSeeds: 3},
		Storage: StorageConfig{
			Backend:    string(storage.KindRAM),
			Path:       "awari.tbl",
			Codec:      "compact",
			BlockShift: 16,
			MaxBlocks:  16,
			Recency:    4,
		},
		Log: LogConfig{Level: "info", Format: "console", Color: true},
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxWorkers:   8,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any) and the environment, then validates it. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	loadEnv(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}

	num("AWARI_PITS", &cfg.Game.Pits)
	num("AWARI_START_SEEDS", &cfg.Game.StartSeeds)
	str("AWARI_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("AWARI_STORAGE_PATH", &cfg.Storage.Path)
	str("AWARI_STORAGE_CODEC", &cfg.Storage.Codec)
	num("AWARI_BLOCK_SHIFT", &cfg.Storage.BlockShift)
	num("AWARI_MAX_BLOCKS", &cfg.Storage.MaxBlocks)
	num("AWARI_RECENCY", &cfg.Storage.Recency)
	if v := getenv("AWARI_SYNC_WRITES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.SyncWrites = b
		}
	}
	str("AWARI_LOG_LEVEL", &cfg.Log.Level)
	str("AWARI_LOG_FORMAT", &cfg.Log.Format)
	str("AWARI_HOST", &cfg.Server.Host)
	num("AWARI_PORT", &cfg.Server.Port)
}

// Validate checks every field that has a constrained range.
func (c Config) Validate() error {
	if _, err := awari.NewGeometry(c.Game.Pits, c.Game.StartSeeds); err != nil {
		return err
	}
	if _, err := storage.ParseKind(c.Storage.Backend); err != nil {
		return err
	}
	if c.Storage.Codec != "compact" && c.Storage.Codec != "wide" {
		return fmt.Errorf("codec must be compact or wide, got %q", c.Storage.Codec)
	}
	if c.Storage.BlockShift < 0 || c.Storage.BlockShift > 30 {
		return fmt.Errorf("block_shift must be between 0 and 30")
	}
	if c.Storage.MaxBlocks < 1 {
		return fmt.Errorf("max_blocks must be >= 1")
	}
	if c.Storage.Recency < 0 {
		return fmt.Errorf("recency must be >= 0")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if c.Server.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1")
	}
	return nil
}

// Geometry builds the configured geometry.
func (c Config) Geometry() (*awari.Geometry, error) {
	return awari.NewGeometry(c.Game.Pits, c.Game.StartSeeds)
}

// StorageOptions translates the storage section for storage.Create.
func (c Config) StorageOptions(log zerolog.Logger, obs storage.Observer) storage.Options {
	cache := storage.DefaultCacheConfig()
	cache.BlockShift = c.Storage.BlockShift
	cache.MaxBlocks = c.Storage.MaxBlocks
	cache.Recency = c.Storage.Recency
	cache.Logger = log
	if obs != nil {
		cache.Observer = obs
	}
	return storage.Options{
		Kind:       storage.Kind(c.Storage.Backend),
		Path:       c.Storage.Path,
		SyncWrites: c.Storage.SyncWrites,
		Cache:      cache,
	}
}

// Logger builds the root logger writing to w.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: !c.Log.Color, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simp-lee/epubsplit"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Convert ConvertConfig `yaml:"convert"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ConvertConfig struct {
	MarkerPattern   string `yaml:"marker"`
	DefaultLanguage string `yaml:"language"`
	NoChapters      string `yaml:"no_chapters"`
	KeepCover       bool   `yaml:"keep_cover"`
	SkipLicense     bool   `yaml:"skip_license"`

	// Verification through the external reader
	Verify     bool   `yaml:"verify"`
	StagingDir string `yaml:"staging_dir"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8090",
			MaxUploadBytes:  52428800, // 50MB
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Convert: ConvertConfig{
			DefaultLanguage: epubsplit.DefaultLanguage,
			NoChapters:      epubsplit.NoChaptersSingle.String(),
		},
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then applies EPUBSPLIT_* environment overrides. Unknown YAML keys
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Server
	s.Addr = envOr("EPUBSPLIT_ADDR", s.Addr)
	s.MaxUploadBytes = envInt64("EPUBSPLIT_MAX_UPLOAD_BYTES", s.MaxUploadBytes)
	s.ReadTimeout = envDuration("EPUBSPLIT_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = envDuration("EPUBSPLIT_WRITE_TIMEOUT", s.WriteTimeout)
	s.ShutdownTimeout = envDuration("EPUBSPLIT_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	c := &cfg.Convert
	c.MarkerPattern = envOr("EPUBSPLIT_MARKER", c.MarkerPattern)
	c.DefaultLanguage = envOr("EPUBSPLIT_LANGUAGE", c.DefaultLanguage)
	c.NoChapters = envOr("EPUBSPLIT_NO_CHAPTERS", c.NoChapters)
	c.KeepCover = envBool("EPUBSPLIT_KEEP_COVER", c.KeepCover)
	c.SkipLicense = envBool("EPUBSPLIT_SKIP_LICENSE", c.SkipLicense)
	c.Verify = envBool("EPUBSPLIT_VERIFY", c.Verify)
	c.StagingDir = envOr("EPUBSPLIT_STAGING_DIR", c.StagingDir)

	cfg.Log.Development = envBool("EPUBSPLIT_LOG_DEVELOPMENT", cfg.Log.Development)
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if _, err := epubsplit.NewSegmenter(c.Convert.MarkerPattern); err != nil {
		return fmt.Errorf("convert.marker: %w", err)
	}
	if _, err := epubsplit.ParseNoChaptersPolicy(c.Convert.NoChapters); err != nil {
		return fmt.Errorf("convert.no_chapters: %w", err)
	}
	return nil
}

// ConverterOptions maps the convert section to epubsplit.Options.
func (c Config) ConverterOptions() (epubsplit.Options, error) {
	policy, err := epubsplit.ParseNoChaptersPolicy(c.Convert.NoChapters)
	if err != nil {
		return epubsplit.Options{}, err
	}
	return epubsplit.Options{
		MarkerPattern:   c.Convert.MarkerPattern,
		DefaultLanguage: c.Convert.DefaultLanguage,
		NoChapters:      policy,
		KeepCover:       c.Convert.KeepCover,
		SkipLicense:     c.Convert.SkipLicense,
		Verify:          c.Convert.Verify,
		StagingDir:      c.Convert.StagingDir,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

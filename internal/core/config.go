package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/imagesieve/internal/backend/commandstructure"
	"github.com/jo-hoe/imagesieve/internal/detection"
	"github.com/jo-hoe/imagesieve/internal/similarity"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "IMAGESIEVE_"

type Database struct {
	Type             string `koanf:"type"`
	ConnectionString string `koanf:"connection_string"`
}

// LockConfig selects how admissions are serialized.
type LockConfig struct {
	Type          string        `koanf:"type"` // local or redis
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	Key           string        `koanf:"key"`
	TTL           time.Duration `koanf:"ttl"`
	RetryInterval time.Duration `koanf:"retry_interval"`
}

type SimilarityConfig struct {
	FingerprintSize int `koanf:"fingerprint_size"`
	ColorSampleSize int `koanf:"color_sample_size"`
}

type ServiceConfig struct {
	Port           int                              `koanf:"port"`
	LogLevel       string                           `koanf:"log_level"`
	ThumbnailWidth int                              `koanf:"thumbnail_width"`
	Database       Database                         `koanf:"database"`
	Lock           LockConfig                       `koanf:"lock"`
	Similarity     SimilarityConfig                 `koanf:"similarity"`
	Detector       detection.Config                 `koanf:"detector"`
	Commands       []commandstructure.CommandConfig `koanf:"commands"`
}

// DefaultConfig returns the configuration used when neither file nor environment set a value.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:           8080,
		LogLevel:       "info",
		ThumbnailWidth: 160,
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "imagesieve.db",
		},
		Lock: LockConfig{
			Type:          "local",
			Key:           "imagesieve:admission",
			TTL:           30 * time.Second,
			RetryInterval: 50 * time.Millisecond,
		},
		Similarity: SimilarityConfig{
			FingerprintSize: similarity.DefaultFingerprintSize,
			ColorSampleSize: similarity.DefaultColorSampleSize,
		},
		Detector: detection.DefaultConfig(),
	}
}

// DefaultCommands is the preprocessing pipeline used when none is configured.
func DefaultCommands() []commandstructure.CommandConfig {
	return []commandstructure.CommandConfig{
		{Name: "RGBDecodeCommand", Params: map[string]any{}},
		{Name: "ScaleCommand", Params: map[string]any{"width": 320, "height": 320}},
		{Name: "ImageConverterCommand", Params: map[string]any{"targetType": "jpeg", "quality": 80}},
	}
}

// LoadConfig layers defaults, the YAML file at configPath (skipped when it does not exist)
// and IMAGESIEVE_ environment variables, in increasing precedence.
// Nested keys use a double underscore: IMAGESIEVE_DATABASE__CONNECTION_STRING.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}

	config := DefaultConfig()
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	// Commands are not part of the defaults so a configured list replaces them instead of merging.
	if len(config.Commands) == 0 {
		config.Commands = DefaultCommands()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate checks value ranges and the command list.
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("thumbnail_width must be positive, got %d", c.ThumbnailWidth)
	}
	if c.Database.Type == "" {
		return fmt.Errorf("database type must not be empty")
	}
	switch c.Lock.Type {
	case "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis lock")
		}
		if c.Lock.Key == "" {
			return fmt.Errorf("lock.key must not be empty")
		}
		if c.Lock.TTL <= 0 || c.Lock.RetryInterval <= 0 {
			return fmt.Errorf("lock.ttl and lock.retry_interval must be positive")
		}
	default:
		return fmt.Errorf("unknown lock type: %s", c.Lock.Type)
	}
	if err := similarity.ValidateFingerprintSize(c.Similarity.FingerprintSize); err != nil {
		return err
	}
	if c.Similarity.ColorSampleSize <= 0 {
		return fmt.Errorf("color_sample_size must be positive, got %d", c.Similarity.ColorSampleSize)
	}
	if c.Detector.InferenceSize <= 0 || c.Detector.InputSize <= 0 {
		return fmt.Errorf("detector inference_size and input_size must be positive")
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("detector confidence_threshold must be within [0,1], got %v", c.Detector.ConfidenceThreshold)
	}
	if c.Detector.Timeout <= 0 {
		return fmt.Errorf("detector timeout must be positive")
	}
	if err := validateCommands(c.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []commandstructure.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

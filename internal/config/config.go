package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/vocadeck/pkg/validator"
)

// EnvPrefix prefixes every environment variable read into the config.
// Nested keys use a double underscore: VOCADECK_STORAGE__DSN → storage.dsn.
const EnvPrefix = "VOCADECK_"

type Config struct {
	Env     string        `koanf:"env" validate:"oneof=development production"`
	Storage StorageConfig `koanf:"storage"`
	Review  ReviewConfig  `koanf:"review"`
	HTTP    HTTPConfig    `koanf:"http"`
	Sync    SyncConfig    `koanf:"sync"`
}

type StorageConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=sqlite json"`
	DSN      string `koanf:"dsn" validate:"required_if=Driver sqlite"`
	JSONPath string `koanf:"json_path" validate:"required_if=Driver json"`
}

type ReviewConfig struct {
	Policy            string        `koanf:"policy" validate:"oneof=exponential logarithmic"`
	RegistrationDelay time.Duration `koanf:"registration_delay" validate:"min=0"`
	MaxDistractors    int           `koanf:"max_distractors" validate:"min=0,max=10"`
	NearMissThreshold float64       `koanf:"near_miss_threshold" validate:"gt=0,lte=1"`
	MasteryMinReviews int           `koanf:"mastery_min_reviews" validate:"min=1"`
	MasteryAccuracy   float64       `koanf:"mastery_accuracy" validate:"gt=0,lte=1"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// SessionTTL is how long a review session may sit idle before it is
	// discarded. Zero disables eviction.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"min=0"`
}

type SyncConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used for every key no layer sets.
func Default() Config {
	return Config{
		Env: "development",
		Storage: StorageConfig{
			Driver:   "sqlite",
			DSN:      "vocadeck.db",
			JSONPath: "vocadeck.json",
		},
		Review: ReviewConfig{
			Policy:            "exponential",
			RegistrationDelay: time.Minute,
			MaxDistractors:    3,
			NearMissThreshold: 0.8,
			MasteryMinReviews: 10,
			MasteryAccuracy:   0.85,
		},
		HTTP: HTTPConfig{Addr: ":8080", SessionTTL: 30 * time.Minute},
		Sync: SyncConfig{ReposDir: "repos"},
	}
}

// FlagKeys maps command-line flag names to config keys. Only flags the user
// actually set override the lower layers.
var FlagKeys = map[string]string{
	"env":    "env",
	"driver": "storage.driver",
	"db":     "storage.dsn",
	"json":   "storage.json_path",
	"policy": "review.policy",
	"addr":   "http.addr",
	"repos":  "sync.repos_dir",
}

// Load layers defaults, the optional YAML file at path, VOCADECK_ environment
// variables and changed flags, in that order, and validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.ValidateStruct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

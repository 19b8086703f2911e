// Package config loads datasplit settings from a YAML file, a .env file and
// DATASPLIT_* environment variables, in that order of increasing priority.
// Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	datasplit "github.com/anatolykoptev/go-datasplit"
)

// EnvPrefix prefixes every environment variable, e.g. DATASPLIT_SEED.
const EnvPrefix = "DATASPLIT"

// Settings is the full configuration surface of the command.
type Settings struct {
	RawRoot    string `yaml:"raw_root" envconfig:"RAW_ROOT"`
	OutputRoot string `yaml:"output_root" envconfig:"OUTPUT_ROOT"`

	TrainRatio float64 `yaml:"train_ratio" envconfig:"TRAIN_RATIO"`
	ValRatio   float64 `yaml:"val_ratio" envconfig:"VAL_RATIO"`
	TestRatio  float64 `yaml:"test_ratio" envconfig:"TEST_RATIO"`

	Seed int64 `yaml:"seed" envconfig:"SEED"`

	// Overwrite is "refuse" or "replace". When empty, ForceRecreate=true
	// selects "replace".
	Overwrite     string `yaml:"overwrite" envconfig:"OVERWRITE"`
	ForceRecreate bool   `yaml:"force_recreate" envconfig:"FORCE_RECREATE"`

	Extensions []string `yaml:"valid_extensions" envconfig:"VALID_EXTENSIONS"`

	Workers       int    `yaml:"workers" envconfig:"WORKERS"`
	VerifyImages  bool   `yaml:"verify_images" envconfig:"VERIFY_IMAGES"`
	LeakThreshold int    `yaml:"leak_threshold" envconfig:"LEAK_THRESHOLD"`
	Manifest      string `yaml:"manifest" envconfig:"MANIFEST"`
	ClassMapping  string `yaml:"class_mapping" envconfig:"CLASS_MAPPING"`

	Log LogSettings `yaml:"log" envconfig:"LOG"`
}

// LogSettings configures the command's logger.
type LogSettings struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		TrainRatio: datasplit.DefaultTrainRatio,
		ValRatio:   datasplit.DefaultValRatio,
		TestRatio:  datasplit.DefaultTestRatio,
		Seed:       datasplit.DefaultSeed,
		Extensions: append([]string(nil), datasplit.DefaultExtensions...),
		Log:        LogSettings{Level: "info", Format: "console"},
	}
}

// Load builds Settings from defaults, the optional YAML file at path, a
// .env file in the working directory (if any) and the environment.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		if err := s.mergeFile(path); err != nil {
			return Settings{}, err
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("config: environment: %w", err)
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, s); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// OverwritePolicy resolves Overwrite and the legacy ForceRecreate flag.
func (s Settings) OverwritePolicy() (datasplit.OverwritePolicy, error) {
	if s.Overwrite == "" && s.ForceRecreate {
		return datasplit.OverwriteReplace, nil
	}
	return datasplit.ParseOverwritePolicy(s.Overwrite)
}

// SplitConfig converts the settings into a library configuration.
func (s Settings) SplitConfig(log *zap.Logger) (datasplit.Config, error) {
	policy, err := s.OverwritePolicy()
	if err != nil {
		return datasplit.Config{}, err
	}
	// Defaults() always supplies a list, so an empty one here was configured.
	exts := datasplit.NormalizeExtensions(s.Extensions)
	if len(exts) == 0 {
		return datasplit.Config{}, &datasplit.ConfigurationError{Field: "valid_extensions", Reason: "at least one extension is required"}
	}
	return datasplit.Config{
		RawRoot:          s.RawRoot,
		OutputRoot:       s.OutputRoot,
		TrainRatio:       s.TrainRatio,
		ValRatio:         s.ValRatio,
		TestRatio:        s.TestRatio,
		Seed:             s.Seed,
		Overwrite:        policy,
		Extensions:       exts,
		Workers:          s.Workers,
		VerifyImages:     s.VerifyImages,
		LeakThreshold:    s.LeakThreshold,
		ManifestPath:     s.Manifest,
		ClassMappingPath: s.ClassMapping,
		Logger:           log,
	}, nil
}

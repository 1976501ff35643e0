// Package config loads engine settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/knowledge"
	"github.com/abhisek/tutor/internal/path"
)

// Environment variables that override file settings.
const (
	EnvConfigFile = "TUTOR_CONFIG"
	EnvDB         = "TUTOR_DB"
	EnvLogMode    = "TUTOR_LOG_MODE"
	EnvCatalog    = "TUTOR_CATALOG"
	EnvBank       = "TUTOR_BANK"
)

// Config holds all engine configuration.
type Config struct {
	DBPath      string `yaml:"db_path"`
	LogMode     string `yaml:"log_mode" validate:"omitempty,oneof=dev prod production quiet"`
	CatalogPath string `yaml:"catalog_path"`
	BankPath    string `yaml:"bank_path"`

	Tracing   knowledge.Params `yaml:"tracing"`
	Path      PathConfig       `yaml:"path"`
	Quiz      QuizConfig       `yaml:"quiz"`
	Snapshots SnapshotConfig   `yaml:"snapshots"`
}

// PathConfig configures path generation and the path manager.
type PathConfig struct {
	Weights       path.Weights `yaml:"weights"`
	NumConcepts   int          `yaml:"num_concepts" validate:"gte=0"`
	WeakCount     int          `yaml:"weak_count" validate:"gte=0"`
	Preference    string       `yaml:"preference" validate:"omitempty,oneof=balanced progressive review"`
	MaxDifficulty float64      `yaml:"max_difficulty" validate:"gte=0,lte=1"`
	HistoryLimit  int          `yaml:"history_limit" validate:"gte=0"`
	Concurrency   int          `yaml:"concurrency" validate:"gte=0"`
}

// QuizConfig configures quiz sessions.
type QuizConfig struct {
	// Window is the difficulty window; 0 uses the whole session.
	Window       int  `yaml:"window" validate:"gte=0"`
	MaxQuestions int  `yaml:"max_questions" validate:"gte=1"`
	AllowRepeats bool `yaml:"allow_repeats"`
}

// SnapshotConfig controls knowledge-state snapshots in the interaction log.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled"`
	Keep    int  `yaml:"keep" validate:"gte=1"`
}

// Default returns a Config with the stock settings.
func Default() Config {
	pathOpts := path.DefaultOptions()
	return Config{
		LogMode: "dev",
		Tracing: knowledge.DefaultParams(),
		Path: PathConfig{
			Weights:       pathOpts.Weights,
			NumConcepts:   pathOpts.NumConcepts,
			WeakCount:     3,
			Preference:    string(path.Balanced),
			MaxDifficulty: pathOpts.MaxDifficulty,
			HistoryLimit:  20,
			Concurrency:   4,
		},
		Quiz: QuizConfig{
			Window:       difficulty.DefaultWindow,
			MaxQuestions: 10,
			AllowRepeats: true,
		},
		Snapshots: SnapshotConfig{
			Enabled: true,
			Keep:    5,
		},
	}
}

// Load reads the YAML file at filename over the defaults (an empty name
// skips the file), applies environment overrides and validates the result.
func Load(filename string) (Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("parse %s: %v", filename, err)}}
		}
	}
	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) overrideFromEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogMode); v != "" {
		c.LogMode = strings.ToLower(v)
	}
	if v := os.Getenv(EnvCatalog); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv(EnvBank); v != "" {
		c.BankPath = v
	}
}

var validate = validator.New()

// Validate checks struct constraints and tracing parameters, reporting every
// problem at once.
func (c Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	if err := c.Tracing.Validate(); err != nil {
		var cfgErr *apperr.ConfigurationError
		if errors.As(err, &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return &apperr.ConfigurationError{Problems: problems}
	}
	return nil
}

// GeneratorOptions converts the path settings for path.NewGenerator.
func (c Config) GeneratorOptions() path.Options {
	return path.Options{
		Weights:               c.Path.Weights,
		NumConcepts:           c.Path.NumConcepts,
		MasteryThreshold:      c.Tracing.MasteryThreshold,
		PrerequisiteThreshold: c.Tracing.PrerequisiteThreshold,
		MaxDifficulty:         c.Path.MaxDifficulty,
	}
}

// ManagerOptions converts the path settings for path.NewManager.
func (c Config) ManagerOptions() path.ManagerOptions {
	return path.ManagerOptions{
		Preference:   path.Preference(c.Path.Preference),
		NumConcepts:  c.Path.NumConcepts,
		WeakCount:    c.Path.WeakCount,
		HistoryLimit: c.Path.HistoryLimit,
		Concurrency:  c.Path.Concurrency,
	}
}

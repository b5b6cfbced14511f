// Package cfg loads run configuration from a YAML file with
// environment-variable overrides for deployment-specific values.
package cfg

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/habitatlab/sdmgo/forest"
	"github.com/habitatlab/sdmgo/geo"
	"github.com/habitatlab/sdmgo/pipeline"
)

// Settings is the resolved configuration a run executes with.
type Settings struct {
	Run pipeline.RunConfig

	TrainingPath   string
	BackgroundPath string
	GridPath       string
	GridEPSG       string
	LonColumn      string
	LatColumn      string

	OutputDir  string
	StorePath  string
	BatchSize  int
	ChartPath  string
	LogLevel   string
	SaveModels bool
}

// ConfigFile mirrors the YAML layout of the run configuration.
type ConfigFile struct {
	Run struct {
		OutcomeKind                string  `yaml:"outcomeKind"`
		OutcomeColumn              string  `yaml:"outcomeColumn"`
		Iterations                 int     `yaml:"iterations"`
		BackgroundRatio            float64 `yaml:"backgroundRatio"`
		Seed                       int64   `yaml:"seed"`
		ConfidenceLevel            float64 `yaml:"confidenceLevel"`
		CRSPolicy                  string  `yaml:"crsPolicy"`
		ContinueOnIterationFailure bool    `yaml:"continueOnIterationFailure"`
		KFoldSplits                int     `yaml:"kFoldSplits"`
		Concurrency                int     `yaml:"concurrency"`
	} `yaml:"run"`

	Hyperparameters forest.Hyperparameters `yaml:"hyperparameters"`

	Data struct {
		Training   string `yaml:"training"`
		Background string `yaml:"background"`
		Grid       string `yaml:"grid"`
		GridEPSG   string `yaml:"gridEPSG"`
		LonColumn  string `yaml:"lonColumn"`
		LatColumn  string `yaml:"latColumn"`
	} `yaml:"data"`

	Output struct {
		Dir        string `yaml:"dir"`
		Store      string `yaml:"store"`
		BatchSize  int    `yaml:"batchSize"`
		Chart      string `yaml:"chart"`
		LogLevel   string `yaml:"logLevel"`
		SaveModels *bool  `yaml:"saveModels"`
	} `yaml:"output"`
}

// Load reads the YAML file at path and resolves it into Settings,
// applying SDM_* environment overrides on top.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return resolve(&file)
}

func resolve(file *ConfigFile) (*Settings, error) {
	kind, err := pipeline.ParseOutcomeKind(getEnvOrDefault("SDM_OUTCOME_KIND", file.Run.OutcomeKind))
	if err != nil {
		return nil, err
	}

	policy, err := geo.ParsePolicy(getEnvOrDefault("SDM_CRS_POLICY", file.Run.CRSPolicy))
	if err != nil {
		return nil, err
	}

	run := pipeline.RunConfig{
		OutcomeKind:                kind,
		OutcomeColumn:              file.Run.OutcomeColumn,
		Iterations:                 getIntFromEnvOrConfig("SDM_ITERATIONS", file.Run.Iterations),
		BackgroundRatio:            file.Run.BackgroundRatio,
		BaseSeed:                   getInt64FromEnvOrConfig("SDM_SEED", file.Run.Seed),
		ConfidenceLevel:            file.Run.ConfidenceLevel,
		Hyperparameters:            file.Hyperparameters,
		CRSPolicy:                  policy,
		ContinueOnIterationFailure: file.Run.ContinueOnIterationFailure,
		KFoldSplits:                file.Run.KFoldSplits,
		Concurrency:                getIntFromEnvOrConfig("SDM_CONCURRENCY", file.Run.Concurrency),
	}

	saveModels := true
	if file.Output.SaveModels != nil {
		saveModels = *file.Output.SaveModels
	}

	s := &Settings{
		Run:            run,
		TrainingPath:   getEnvOrDefault("SDM_TRAINING", file.Data.Training),
		BackgroundPath: getEnvOrDefault("SDM_BACKGROUND", file.Data.Background),
		GridPath:       getEnvOrDefault("SDM_GRID", file.Data.Grid),
		GridEPSG:       getEnvOrDefault("SDM_GRID_EPSG", file.Data.GridEPSG),
		LonColumn:      file.Data.LonColumn,
		LatColumn:      file.Data.LatColumn,
		OutputDir:      getEnvOrDefault("SDM_OUTPUT_DIR", file.Output.Dir),
		StorePath:      getEnvOrDefault("SDM_STORE", file.Output.Store),
		BatchSize:      file.Output.BatchSize,
		ChartPath:      file.Output.Chart,
		LogLevel:       getEnvOrDefault("SDM_LOG_LEVEL", file.Output.LogLevel),
		SaveModels:     saveModels,
	}
	applyDefaults(s)

	if err := validate(s); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func applyDefaults(s *Settings) {
	if s.GridEPSG == "" {
		s.GridEPSG = geo.WGS84
	}
	if s.LonColumn == "" {
		s.LonColumn = "lon"
	}
	if s.LatColumn == "" {
		s.LatColumn = "lat"
	}
	if s.OutputDir == "" {
		s.OutputDir = "out"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Run.Concurrency <= 0 {
		s.Run.Concurrency = runtime.NumCPU()
	}
}

func validate(s *Settings) error {
	if s.TrainingPath == "" {
		return fmt.Errorf("data.training is required")
	}
	if s.BackgroundPath == "" {
		return fmt.Errorf("data.background is required")
	}
	if s.GridPath == "" {
		return fmt.Errorf("data.grid is required")
	}
	if s.Run.OutcomeColumn == "" {
		return fmt.Errorf("run.outcomeColumn is required")
	}
	if s.Run.BackgroundRatio < 0 {
		return fmt.Errorf("run.backgroundRatio must be non-negative, got %g", s.Run.BackgroundRatio)
	}
	if s.Run.ConfidenceLevel < 0 || s.Run.ConfidenceLevel >= 1 {
		return fmt.Errorf("run.confidenceLevel must be in [0, 1), got %g", s.Run.ConfidenceLevel)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return configValue
}

func getInt64FromEnvOrConfig(key string, configValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return configValue
}

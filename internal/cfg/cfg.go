package cfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values used when neither the config file nor the environment sets one.
const (
	DefaultDataPath    = "FYP.csv"
	DefaultTestSize    = 0.3
	DefaultSeed        = 42
	DefaultModelPath   = "decision_tree_model.gob"
	DefaultEncoderPath = "label_encoder.gob"
	DefaultPlotsDir    = "plots"
	DefaultCriterion   = "gini"
)

type Settings struct {
	DataPath    string
	TestSize    float64
	Seed        int64
	ModelPath   string
	EncoderPath string
	PlotsDir    string
	SkipPlots   bool
	StorePath   string
	MetricsFile string
	LogLevel    string
	ServePort   int
	MaxDepth    int
	Criterion   string
	HTTPTimeout time.Duration
	Columns     Columns
	// QualityOrder fixes the category order of the box plot. Empty means
	// the label encoder's code order.
	QualityOrder []string
}

// Columns names the input table columns the pipeline reads.
type Columns struct {
	Voltage       string `yaml:"voltage"`
	Adulterant    string `yaml:"adulterant"`
	Concentration string `yaml:"concentration"`
	Quality       string `yaml:"quality"`
}

// DefaultColumns matches the header of the sensor dataset.
func DefaultColumns() Columns {
	return Columns{
		Voltage:       "Voltage_mV",
		Adulterant:    "Adulterant_Type",
		Concentration: "Concentration",
		Quality:       "Quality",
	}
}

type ConfigFile struct {
	Data struct {
		Path         string   `yaml:"path"`
		Columns      Columns  `yaml:"columns"`
		QualityOrder []string `yaml:"qualityOrder"`
		HTTPTimeout  string   `yaml:"httpTimeout"`
	} `yaml:"data"`

	Training struct {
		TestSize  float64 `yaml:"testSize"`
		Seed      *int64  `yaml:"seed"`
		MaxDepth  int     `yaml:"maxDepth"`
		Criterion string  `yaml:"criterion"`
	} `yaml:"training"`

	Output struct {
		ModelPath   string `yaml:"modelPath"`
		EncoderPath string `yaml:"encoderPath"`
		PlotsDir    string `yaml:"plotsDir"`
		SkipPlots   bool   `yaml:"skipPlots"`
	} `yaml:"output"`

	System struct {
		StorePath   string `yaml:"storePath"`
		MetricsFile string `yaml:"metricsFile"`
		LogLevel    string `yaml:"logLevel"`
		ServePort   int    `yaml:"servePort"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, falling back
// to environment variables and defaults.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return LoadFile(configPath)
	}
	return loadFromEnv()
}

// LoadFile reads settings from a YAML file. Environment variables override
// values from the file.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	httpTimeout, err := time.ParseDuration(config.Data.HTTPTimeout)
	if err != nil {
		httpTimeout = 30 * time.Second
	}

	seed := int64(DefaultSeed)
	if config.Training.Seed != nil {
		seed = *config.Training.Seed
	}

	columns := mergeColumns(DefaultColumns(), config.Data.Columns)

	settings := Settings{
		DataPath:     getEnvOrDefault("DATA_PATH", orDefault(config.Data.Path, DefaultDataPath)),
		TestSize:     getFloatFromEnvOrConfig("TEST_SIZE", config.Training.TestSize, DefaultTestSize),
		Seed:         getInt64OrDefault("RANDOM_SEED", seed),
		ModelPath:    getEnvOrDefault("MODEL_PATH", orDefault(config.Output.ModelPath, DefaultModelPath)),
		EncoderPath:  getEnvOrDefault("ENCODER_PATH", orDefault(config.Output.EncoderPath, DefaultEncoderPath)),
		PlotsDir:     getEnvOrDefault("PLOTS_DIR", orDefault(config.Output.PlotsDir, DefaultPlotsDir)),
		SkipPlots:    getBoolOrDefault("SKIP_PLOTS", config.Output.SkipPlots),
		StorePath:    getEnvOrDefault("STORE_PATH", config.System.StorePath),
		MetricsFile:  getEnvOrDefault("METRICS_FILE", config.System.MetricsFile),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", orDefault(config.System.LogLevel, "info")),
		ServePort:    getIntFromEnvOrConfig("SERVE_PORT", config.System.ServePort, 8080),
		MaxDepth:     getIntFromEnvOrConfig("MAX_DEPTH", config.Training.MaxDepth, 0),
		Criterion:    getEnvOrDefault("CRITERION", orDefault(config.Training.Criterion, DefaultCriterion)),
		HTTPTimeout:  getDurationOrDefault("HTTP_TIMEOUT", httpTimeout),
		Columns:      columns,
		QualityOrder: splitOrDefault(os.Getenv("QUALITY_ORDER"), config.Data.QualityOrder),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:     getEnvOrDefault("DATA_PATH", DefaultDataPath),
		TestSize:     getFloatOrDefault("TEST_SIZE", DefaultTestSize),
		Seed:         getInt64OrDefault("RANDOM_SEED", DefaultSeed),
		ModelPath:    getEnvOrDefault("MODEL_PATH", DefaultModelPath),
		EncoderPath:  getEnvOrDefault("ENCODER_PATH", DefaultEncoderPath),
		PlotsDir:     getEnvOrDefault("PLOTS_DIR", DefaultPlotsDir),
		SkipPlots:    getBoolOrDefault("SKIP_PLOTS", false),
		StorePath:    os.Getenv("STORE_PATH"),   // optional
		MetricsFile:  os.Getenv("METRICS_FILE"), // optional
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		ServePort:    getIntOrDefault("SERVE_PORT", 8080),
		MaxDepth:     getIntOrDefault("MAX_DEPTH", 0),
		Criterion:    getEnvOrDefault("CRITERION", DefaultCriterion),
		HTTPTimeout:  getDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
		Columns:      DefaultColumns(),
		QualityOrder: splitOrDefault(os.Getenv("QUALITY_ORDER"), nil),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func mergeColumns(base, override Columns) Columns {
	if override.Voltage != "" {
		base.Voltage = override.Voltage
	}
	if override.Adulterant != "" {
		base.Adulterant = override.Adulterant
	}
	if override.Concentration != "" {
		base.Concentration = override.Concentration
	}
	if override.Quality != "" {
		base.Quality = override.Quality
	}
	return base
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validateSettings checks ranges of every tunable value
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.TestSize <= 0 || settings.TestSize >= 1 {
		return fmt.Errorf("test size must be between 0 and 1 (exclusive), got %f", settings.TestSize)
	}
	if settings.ModelPath == "" || settings.EncoderPath == "" {
		return fmt.Errorf("model and encoder paths are required")
	}
	if settings.ModelPath == settings.EncoderPath {
		return fmt.Errorf("model and encoder paths must differ, both are %s", settings.ModelPath)
	}
	if settings.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative, got %d", settings.MaxDepth)
	}
	if settings.Criterion != "gini" && settings.Criterion != "entropy" {
		return fmt.Errorf("criterion must be gini or entropy, got %q", settings.Criterion)
	}
	if settings.ServePort < 1024 || settings.ServePort > 65535 {
		return fmt.Errorf("serve port must be between 1024 and 65535, got %d", settings.ServePort)
	}
	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", settings.HTTPTimeout)
	}

	c := settings.Columns
	if c.Voltage == "" || c.Adulterant == "" || c.Quality == "" {
		return fmt.Errorf("voltage, adulterant and quality column names are required")
	}

	return nil
}

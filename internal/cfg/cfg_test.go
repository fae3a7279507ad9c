package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "FYP.csv" {
					t.Errorf("expected DataPath FYP.csv, got %s", settings.DataPath)
				}
				if settings.TestSize != 0.3 {
					t.Errorf("expected TestSize 0.3, got %f", settings.TestSize)
				}
				if settings.Seed != 42 {
					t.Errorf("expected Seed 42, got %d", settings.Seed)
				}
				if settings.MaxDepth != 0 {
					t.Errorf("expected unlimited depth, got %d", settings.MaxDepth)
				}
				if settings.Columns != DefaultColumns() {
					t.Errorf("expected default columns, got %+v", settings.Columns)
				}
				if settings.QualityOrder != nil {
					t.Errorf("expected no quality order, got %v", settings.QualityOrder)
				}
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"DATA_PATH":     "honey.xlsx",
				"TEST_SIZE":     "0.25",
				"RANDOM_SEED":   "7",
				"MAX_DEPTH":     "4",
				"CRITERION":     "entropy",
				"QUALITY_ORDER": "Poor, Medium,Good",
				"HTTP_TIMEOUT":  "10s",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "honey.xlsx" {
					t.Errorf("expected DataPath honey.xlsx, got %s", settings.DataPath)
				}
				if settings.TestSize != 0.25 {
					t.Errorf("expected TestSize 0.25, got %f", settings.TestSize)
				}
				if settings.Seed != 7 {
					t.Errorf("expected Seed 7, got %d", settings.Seed)
				}
				if settings.MaxDepth != 4 {
					t.Errorf("expected MaxDepth 4, got %d", settings.MaxDepth)
				}
				if settings.Criterion != "entropy" {
					t.Errorf("expected entropy, got %s", settings.Criterion)
				}
				want := []string{"Poor", "Medium", "Good"}
				if len(settings.QualityOrder) != len(want) {
					t.Fatalf("expected %v, got %v", want, settings.QualityOrder)
				}
				for i := range want {
					if settings.QualityOrder[i] != want[i] {
						t.Errorf("expected %v, got %v", want, settings.QualityOrder)
					}
				}
				if settings.HTTPTimeout != 10*time.Second {
					t.Errorf("expected HTTPTimeout 10s, got %v", settings.HTTPTimeout)
				}
			},
		},
		{
			name:    "test size out of range",
			envVars: map[string]string{"TEST_SIZE": "1.5"},
			wantErr: true,
		},
		{
			name:    "unknown criterion",
			envVars: map[string]string{"CRITERION": "mse"},
			wantErr: true,
		},
		{
			name: "model and encoder share a path",
			envVars: map[string]string{
				"MODEL_PATH":   "out.gob",
				"ENCODER_PATH": "out.gob",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
data:
  path: "data/honey.csv"
  columns:
    voltage: "mV"
  qualityOrder: ["Good", "Medium", "Poor"]
  httpTimeout: "15s"

training:
  testSize: 0.2
  seed: 0
  maxDepth: 6
  criterion: entropy

output:
  modelPath: "out/model.gob"
  encoderPath: "out/encoder.gob"
  plotsDir: "out/plots"
  skipPlots: true

system:
  storePath: "/var/lib/honey"
  metricsFile: "/tmp/honey.prom"
  servePort: 9090
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "data/honey.csv" {
					t.Errorf("expected DataPath data/honey.csv, got %s", settings.DataPath)
				}
				if settings.Columns.Voltage != "mV" {
					t.Errorf("expected voltage column mV, got %s", settings.Columns.Voltage)
				}
				if settings.Columns.Quality != "Quality" {
					t.Errorf("expected default quality column, got %s", settings.Columns.Quality)
				}
				if settings.TestSize != 0.2 {
					t.Errorf("expected TestSize 0.2, got %f", settings.TestSize)
				}
				if settings.Seed != 0 {
					t.Errorf("expected explicit seed 0, got %d", settings.Seed)
				}
				if settings.MaxDepth != 6 {
					t.Errorf("expected MaxDepth 6, got %d", settings.MaxDepth)
				}
				if !settings.SkipPlots {
					t.Error("expected SkipPlots to be true")
				}
				if settings.StorePath != "/var/lib/honey" {
					t.Errorf("expected StorePath /var/lib/honey, got %s", settings.StorePath)
				}
				if settings.ServePort != 9090 {
					t.Errorf("expected ServePort 9090, got %d", settings.ServePort)
				}
				if settings.HTTPTimeout != 15*time.Second {
					t.Errorf("expected HTTPTimeout 15s, got %v", settings.HTTPTimeout)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
data:
  path: "data/honey.csv"
training:
  testSize: 0.2
`,
			envOverrides: map[string]string{
				"DATA_PATH": "override.csv",
				"TEST_SIZE": "0.4",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "override.csv" {
					t.Errorf("expected env override DataPath, got %s", settings.DataPath)
				}
				if settings.TestSize != 0.4 {
					t.Errorf("expected env override TestSize 0.4, got %f", settings.TestSize)
				}
				if settings.Seed != DefaultSeed {
					t.Errorf("expected default seed, got %d", settings.Seed)
				}
			},
		},
		{
			name: "invalid port",
			yamlContent: `
system:
  servePort: 80
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: `invalid: yaml: content: [`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := LoadFile(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad_UsesConfigFileEnv(t *testing.T) {
	clearTestEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("data:\n  path: from-file.csv\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.DataPath != "from-file.csv" {
		t.Errorf("expected DataPath from-file.csv, got %s", settings.DataPath)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	clearTestEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"DATA_PATH", "TEST_SIZE", "RANDOM_SEED", "MODEL_PATH", "ENCODER_PATH",
		"PLOTS_DIR", "SKIP_PLOTS", "STORE_PATH", "METRICS_FILE", "LOG_LEVEL",
		"SERVE_PORT", "MAX_DEPTH", "CRITERION", "HTTP_TIMEOUT", "QUALITY_ORDER",
		"CONFIG_FILE",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}

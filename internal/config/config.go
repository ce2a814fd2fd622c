// Package config handles the mastering engine's configuration file
// management (spec §6.5).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// Config is the full engine configuration surface (spec §6.5).
type Config struct {
	// DataDir is where sidecars, cache persistence, and this file itself
	// live.
	DataDir string `json:"dataDir"`

	Chunk     ChunkConfig     `json:"chunk"`
	Cache     CacheConfig     `json:"cache"`
	Predictor PredictorConfig `json:"predictor"`
	Memory    MemoryConfig    `json:"memory"`
}

// ChunkConfig holds the chunk pipeline and fingerprint strategy settings
// (spec §4.4). cmd/auralis reads FingerprintStrategy and SamplingIntervalS.
// ChunkDurationS, ChunkContextS and ChunkOverlapS are persisted but not
// read: internal/pipeline uses its fixed 30s/5s/1s constants.
type ChunkConfig struct {
	ChunkDurationS       float64                  `json:"chunkDurationS"`
	ChunkContextS        float64                  `json:"chunkContextS"`
	ChunkOverlapS        float64                  `json:"chunkOverlapS"`
	FingerprintStrategy  types.FingerprintStrategy `json:"fingerprintStrategy"`
	SamplingIntervalS    float64                  `json:"samplingIntervalS"`
}

// CacheConfig controls the multi-tier cache's per-tier budgets and worker
// parallelism (spec §4.5, §4.6).
type CacheConfig struct {
	TierBudgetsMB     TierBudgetsMB `json:"tierBudgetsMb"`
	WorkerParallelism int           `json:"workerParallelism"`
}

// TierBudgetsMB is the full-health (degradation level 0) per-tier budget in
// megabytes (spec §4.5: L1 18MB, L2 36MB, L3 45MB).
type TierBudgetsMB struct {
	L1 int64 `json:"l1"`
	L2 int64 `json:"l2"`
	L3 int64 `json:"l3"`
}

// PredictorConfig controls the branch predictor's user/audio blend (spec
// §4.6).
type PredictorConfig struct {
	// BlendUserWeight is the weight given to user transition history versus
	// audio-content affinity when predicting the next preset, in [0,1].
	BlendUserWeight float64 `json:"blendUserWeight"`
}

// MemoryConfig holds the degradation memory thresholds (spec §4.8). They are
// persisted but not read: the cache degradation monitor uses its fixed
// 80%/90% thresholds.
type MemoryConfig struct {
	WarningPct  float64 `json:"warningPct"`
	CriticalPct float64 `json:"criticalPct"`
}

// DefaultConfig returns the default configuration, matching the values
// spec §4.4/§4.5/§4.6/§4.8 hard-code as the system's baseline behavior.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			ChunkDurationS:      30,
			ChunkContextS:       5,
			ChunkOverlapS:       1,
			FingerprintStrategy: types.StrategyFull,
			SamplingIntervalS:   20,
		},
		Cache: CacheConfig{
			TierBudgetsMB:     TierBudgetsMB{L1: 18, L2: 36, L3: 45},
			WorkerParallelism: 0, // unlimited, matching the teacher's unbounded dispatch
		},
		Predictor: PredictorConfig{
			BlendUserWeight: 0.7,
		},
		Memory: MemoryConfig{
			WarningPct:  80,
			CriticalPct: 90,
		},
	}
}

// Manager handles loading and saving configuration.
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager rooted at configDir.
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk, writing out defaults if no file
// exists yet.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		m.config.DataDir = m.configDir
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = config
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path.
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update updates the configuration and saves it.
func (m *Manager) Update(config *Config) error {
	m.config = config
	return m.Save()
}

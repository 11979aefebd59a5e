// Package config loads an Engine's configuration through a four-layer
// hierarchy: built-in defaults, an optional YAML file, environment
// variable overrides, then programmatic CLI overrides applied last.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/denizumutdereli/graphdb/pkg/core"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
)

// ServerConfig controls the REST/MCP listener, independent of the engine core.
type ServerConfig struct {
	HTTPAddr       string        `yaml:"httpAddr"`
	MCPEnabled     bool          `yaml:"mcpEnabled"`
	MCPPath        string        `yaml:"mcpPath"`
	MCPAPIKey      string        `yaml:"mcpApiKey"`
	RateLimitRPS   int           `yaml:"rateLimitRPS"`
	MetricsEnabled bool          `yaml:"metricsEnabled"`
	MetricsPath    string        `yaml:"metricsPath"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
}

// StorageConfig mirrors core.Config's DataDir and content guard.
type StorageConfig struct {
	DataPath              string `yaml:"dataPath"`
	MaxNeuronContentBytes int64  `yaml:"maxNeuronContentBytes"`
}

// HNSWConfig mirrors core.HNSWConfig.
type HNSWConfig struct {
	EmbeddingDim   int     `yaml:"embeddingDim"`
	M              int     `yaml:"m"`
	EfConstruction int     `yaml:"efConstruction"`
	EfSearch       int     `yaml:"efSearch"`
	ML             float64 `yaml:"ml"`
	Seed           int64   `yaml:"seed"`
}

// CompactionConfig mirrors core.CompactionConfig.
type CompactionConfig struct {
	TombstoneThreshold int `yaml:"tombstoneThreshold"`
	IntervalMs         int `yaml:"intervalMs"`
}

// QueueConfig controls the serial write queue's backpressure bound.
type QueueConfig struct {
	MaxPending int `yaml:"maxPending"`
}

// AttractorConfig mirrors core.AttractorConfig.
type AttractorConfig struct {
	DecayFactor         float64 `yaml:"decayFactor"`
	Floor               float64 `yaml:"floor"`
	BottleneckThreshold float64 `yaml:"bottleneckThreshold"`
	DecayIntervalMs     int     `yaml:"decayIntervalMs"`
}

// InferenceConfig mirrors core.InferenceConfig.
type InferenceConfig struct {
	AbductionPenalty   float64            `yaml:"abductionPenalty"`
	SynapseTypeWeights map[string]float64 `yaml:"synapseTypeWeights"`
}

// RegistryConfig controls the dataset allow-list guard.
type RegistryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root configuration object for a graphdb server process.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	HNSW       HNSWConfig       `yaml:"hnsw"`
	Compaction CompactionConfig `yaml:"compaction"`
	Queue      QueueConfig      `yaml:"queue"`
	Attractor  AttractorConfig  `yaml:"attractor"`
	Inference  InferenceConfig  `yaml:"inference"`
	Registry   RegistryConfig   `yaml:"registry"`
}

// DefaultConfig returns a Config populated with built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       ":7070",
			MCPPath:        "/mcp",
			RateLimitRPS:   30,
			MetricsPath:    "/metrics",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			DataPath:              "./data",
			MaxNeuronContentBytes: core.DefaultMaxNeuronContentBytes,
		},
		HNSW: HNSWConfig{
			EmbeddingDim:   384,
			M:              16,
			EfConstruction: 200,
			EfSearch:       50,
			ML:             0, // 0 lets the index use 1/ln(M)
		},
		Compaction: CompactionConfig{
			TombstoneThreshold: 50,
			IntervalMs:         300000,
		},
		Queue: QueueConfig{MaxPending: 100},
		Attractor: AttractorConfig{
			DecayFactor:         0.99,
			Floor:               0.01,
			BottleneckThreshold: 0.3,
			DecayIntervalMs:     60000,
		},
		Inference: InferenceConfig{AbductionPenalty: 0.8},
		Registry:  RegistryConfig{Enabled: false},
	}
}

// ConfigFromFile reads a YAML configuration file and merges it on top
// of the built-in defaults. Fields absent from the file keep their defaults.
func ConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv applies GRAPHDB_* environment variable overrides to cfg.
// If cfg is nil a new default Config is created first.
//
// Environment variable mapping (all optional):
//
//	GRAPHDB_HTTP_ADDR               → Server.HTTPAddr
//	GRAPHDB_MCP_ENABLED             → Server.MCPEnabled       ("true"/"false")
//	GRAPHDB_MCP_PATH                → Server.MCPPath
//	GRAPHDB_MCP_API_KEY             → Server.MCPAPIKey
//	GRAPHDB_RATE_LIMIT_RPS          → Server.RateLimitRPS
//	GRAPHDB_METRICS_ENABLED         → Server.MetricsEnabled   ("true"/"false")
//	GRAPHDB_METRICS_PATH            → Server.MetricsPath
//	GRAPHDB_READ_TIMEOUT            → Server.ReadTimeout      (duration string)
//	GRAPHDB_WRITE_TIMEOUT           → Server.WriteTimeout     (duration string)
//	GRAPHDB_DATA_PATH               → Storage.DataPath
//	GRAPHDB_MAX_NEURON_CONTENT_BYTES→ Storage.MaxNeuronContentBytes
//	GRAPHDB_EMBEDDING_DIM           → HNSW.EmbeddingDim
//	GRAPHDB_HNSW_M                  → HNSW.M
//	GRAPHDB_HNSW_EF_CONSTRUCTION    → HNSW.EfConstruction
//	GRAPHDB_HNSW_EF_SEARCH          → HNSW.EfSearch
//	GRAPHDB_COMPACTION_TOMBSTONE_THRESHOLD → Compaction.TombstoneThreshold
//	GRAPHDB_COMPACTION_INTERVAL_MS  → Compaction.IntervalMs
//	GRAPHDB_QUEUE_MAX_PENDING       → Queue.MaxPending
//	GRAPHDB_ATTRACTOR_DECAY_FACTOR  → Attractor.DecayFactor
//	GRAPHDB_ATTRACTOR_FLOOR         → Attractor.Floor
//	GRAPHDB_INFERENCE_ABDUCTION_PENALTY → Inference.AbductionPenalty
//	GRAPHDB_REGISTRY_ENABLED        → Registry.Enabled        ("true"/"false")
func ConfigFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	setEnvStr("GRAPHDB_HTTP_ADDR", &cfg.Server.HTTPAddr)
	setEnvBool("GRAPHDB_MCP_ENABLED", &cfg.Server.MCPEnabled)
	setEnvStr("GRAPHDB_MCP_PATH", &cfg.Server.MCPPath)
	setEnvStr("GRAPHDB_MCP_API_KEY", &cfg.Server.MCPAPIKey)
	setEnvInt("GRAPHDB_RATE_LIMIT_RPS", &cfg.Server.RateLimitRPS)
	setEnvBool("GRAPHDB_METRICS_ENABLED", &cfg.Server.MetricsEnabled)
	setEnvStr("GRAPHDB_METRICS_PATH", &cfg.Server.MetricsPath)
	setEnvDuration("GRAPHDB_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setEnvDuration("GRAPHDB_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	setEnvStr("GRAPHDB_DATA_PATH", &cfg.Storage.DataPath)
	setEnvInt64("GRAPHDB_MAX_NEURON_CONTENT_BYTES", &cfg.Storage.MaxNeuronContentBytes)

	setEnvInt("GRAPHDB_EMBEDDING_DIM", &cfg.HNSW.EmbeddingDim)
	setEnvInt("GRAPHDB_HNSW_M", &cfg.HNSW.M)
	setEnvInt("GRAPHDB_HNSW_EF_CONSTRUCTION", &cfg.HNSW.EfConstruction)
	setEnvInt("GRAPHDB_HNSW_EF_SEARCH", &cfg.HNSW.EfSearch)

	setEnvInt("GRAPHDB_COMPACTION_TOMBSTONE_THRESHOLD", &cfg.Compaction.TombstoneThreshold)
	setEnvInt("GRAPHDB_COMPACTION_INTERVAL_MS", &cfg.Compaction.IntervalMs)

	setEnvInt("GRAPHDB_QUEUE_MAX_PENDING", &cfg.Queue.MaxPending)

	setEnvFloat("GRAPHDB_ATTRACTOR_DECAY_FACTOR", &cfg.Attractor.DecayFactor)
	setEnvFloat("GRAPHDB_ATTRACTOR_FLOOR", &cfg.Attractor.Floor)

	setEnvFloat("GRAPHDB_INFERENCE_ABDUCTION_PENALTY", &cfg.Inference.AbductionPenalty)

	setEnvBool("GRAPHDB_REGISTRY_ENABLED", &cfg.Registry.Enabled)

	return cfg
}

// LoadConfig assembles a Config by running the first three layers of
// the hierarchy: defaults, then the YAML file at configPath (if
// non-empty), then environment variables. The caller applies CLI
// overrides afterward with Config.ApplyCLI.
func LoadConfig(configPath string) (*Config, error) {
	var cfg *Config
	if configPath != "" {
		var err error
		cfg, err = ConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}
	return ConfigFromEnv(cfg), nil
}

// CLIOverrides carries optional values set via command-line flags.
// Pointer fields are nil when the flag was not explicitly provided,
// so ApplyCLI can tell "not set" from the zero value.
type CLIOverrides struct {
	HTTPAddr     *string
	DataPath     *string
	EmbeddingDim *int
	MCPEnabled   *bool
	MCPAPIKey    *string
}

// ApplyCLI layers the final, highest-priority overrides onto cfg.
func (c *Config) ApplyCLI(o CLIOverrides) {
	if o.HTTPAddr != nil {
		c.Server.HTTPAddr = *o.HTTPAddr
	}
	if o.DataPath != nil {
		c.Storage.DataPath = *o.DataPath
	}
	if o.EmbeddingDim != nil {
		c.HNSW.EmbeddingDim = *o.EmbeddingDim
	}
	if o.MCPEnabled != nil {
		c.Server.MCPEnabled = *o.MCPEnabled
	}
	if o.MCPAPIKey != nil {
		c.Server.MCPAPIKey = *o.MCPAPIKey
	}
}

// Validate performs structural validation of the whole configuration,
// returning a descriptive error for the first invalid field encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.httpAddr must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.readTimeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.writeTimeout must be > 0")
	}
	if c.Server.MCPEnabled {
		p := strings.TrimSpace(c.Server.MCPPath)
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server.mcpPath must start with '/'")
		}
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rateLimitRPS must be >= 0")
	}

	if c.Storage.DataPath == "" {
		return fmt.Errorf("storage.dataPath must not be empty")
	}
	if c.Storage.MaxNeuronContentBytes <= 0 {
		return fmt.Errorf("storage.maxNeuronContentBytes must be > 0")
	}

	if c.HNSW.EmbeddingDim < 1 {
		return fmt.Errorf("hnsw.embeddingDim must be >= 1, got %d", c.HNSW.EmbeddingDim)
	}
	if c.HNSW.M < 2 {
		return fmt.Errorf("hnsw.m must be >= 2, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction < c.HNSW.M {
		return fmt.Errorf("hnsw.efConstruction (%d) must be >= hnsw.m (%d)", c.HNSW.EfConstruction, c.HNSW.M)
	}
	if c.HNSW.EfSearch < 1 {
		return fmt.Errorf("hnsw.efSearch must be >= 1, got %d", c.HNSW.EfSearch)
	}

	if c.Compaction.TombstoneThreshold < 1 {
		return fmt.Errorf("compaction.tombstoneThreshold must be >= 1")
	}
	if c.Compaction.IntervalMs < 1000 {
		return fmt.Errorf("compaction.intervalMs must be >= 1000")
	}

	if c.Queue.MaxPending < 1 {
		return fmt.Errorf("queue.maxPending must be >= 1")
	}

	if c.Attractor.DecayFactor <= 0 || c.Attractor.DecayFactor > 1 {
		return fmt.Errorf("attractor.decayFactor must be in (0, 1], got %f", c.Attractor.DecayFactor)
	}
	if c.Attractor.Floor < 0 || c.Attractor.Floor > 1 {
		return fmt.Errorf("attractor.floor must be in [0, 1], got %f", c.Attractor.Floor)
	}
	if c.Attractor.DecayIntervalMs < 1000 {
		return fmt.Errorf("attractor.decayIntervalMs must be >= 1000")
	}

	if c.Inference.AbductionPenalty < 0 || c.Inference.AbductionPenalty > 1 {
		return fmt.Errorf("inference.abductionPenalty must be in [0, 1], got %f", c.Inference.AbductionPenalty)
	}

	if c.HNSW.EfSearch > 10_000 {
		log.Printf("config: hnsw.efSearch=%d is very high; searches will be slow", c.HNSW.EfSearch)
	}
	if c.Compaction.IntervalMs < 5000 {
		log.Printf("config: compaction.intervalMs=%d is aggressive; this will increase CPU usage", c.Compaction.IntervalMs)
	}

	return nil
}

// EngineConfig projects this Config down to the core.Config subset
// Open actually takes.
func (c *Config) EngineConfig() core.Config {
	return core.Config{
		DataDir:               c.Storage.DataPath,
		EmbeddingDim:          c.HNSW.EmbeddingDim,
		MaxNeuronContentBytes: c.Storage.MaxNeuronContentBytes,
		RegistryEnabled:       c.Registry.Enabled,
		QueueMaxPending:       c.Queue.MaxPending,
		HNSW: core.HNSWConfig{
			M:              c.HNSW.M,
			EfConstruction: c.HNSW.EfConstruction,
			EfSearch:       c.HNSW.EfSearch,
			ML:             c.HNSW.ML,
			Seed:           c.HNSW.Seed,
		},
		Compaction: core.CompactionConfig{
			TombstoneThreshold: c.Compaction.TombstoneThreshold,
			IntervalMs:         c.Compaction.IntervalMs,
		},
		Attractor: core.AttractorConfig{
			DecayFactor:         c.Attractor.DecayFactor,
			Floor:               c.Attractor.Floor,
			BottleneckThreshold: c.Attractor.BottleneckThreshold,
		},
		Inference: core.InferenceConfig{
			AbductionPenalty:   c.Inference.AbductionPenalty,
			SynapseTypeWeights: synapseTypeWeights(c.Inference.SynapseTypeWeights),
		},
	}
}

// synapseTypeWeights projects the YAML-friendly string-keyed weight map
// onto graphstore.SynapseType keys. A nil or empty input yields a nil
// map so inference.Config.normalized falls back to its own defaults
// instead of locking every type weight at zero.
func synapseTypeWeights(in map[string]float64) map[graphstore.SynapseType]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[graphstore.SynapseType]float64, len(in))
	for k, v := range in {
		out[graphstore.SynapseType(k)] = v
	}
	return out
}

func setEnvStr(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setEnvInt64(key string, target *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func setEnvFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func setEnvDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

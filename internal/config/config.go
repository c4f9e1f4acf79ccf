// Package config defines the full configuration surface of synthon-sieve and
// its loading, validation, and hot-reload machinery.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Decompose  DecomposeConfig  `mapstructure:"decompose"`
	Library    LibraryConfig    `mapstructure:"library"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Boringness BoringnessConfig `mapstructure:"boringness"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Milvus     MilvusConfig     `mapstructure:"milvus"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Minio      MinioConfig      `mapstructure:"minio"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level            string   `mapstructure:"level"`
	Format           string   `mapstructure:"format"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// DecomposeConfig tunes the rule engine.
type DecomposeConfig struct {
	// Families maps family name to its enable flag, overriding the
	// built-in defaults per family.
	Families          map[string]bool `mapstructure:"families"`
	NormalizeHalogens bool            `mapstructure:"normalize_halogens"`
}

// LibraryConfig tunes reference library construction and tells the daemon
// where to load the serving library from.
type LibraryConfig struct {
	NormalizeTo   float64 `mapstructure:"normalize_to"`
	MinSampleSize int     `mapstructure:"min_sample_size"`
	SpikeInWeight float64 `mapstructure:"spike_in_weight"`
	Workers       int     `mapstructure:"workers"`

	// Path is a JSON library file to serve.  Takes precedence over StoreName.
	Path string `mapstructure:"path"`
	// StoreName is a Postgres library name to serve.
	StoreName string `mapstructure:"store_name"`
}

// SimilarityConfig selects the metric and counter backend.
type SimilarityConfig struct {
	Metric           string  `mapstructure:"metric"`
	Threshold        float64 `mapstructure:"threshold"`
	TverskyAlpha     float64 `mapstructure:"tversky_alpha"`
	TverskyBeta      float64 `mapstructure:"tversky_beta"`
	Backend          string  `mapstructure:"backend"`
	ExcludeIdentical bool    `mapstructure:"exclude_identical"`
	Workers          int     `mapstructure:"workers"`
}

// BoringnessConfig carries the scoring weights.
type BoringnessConfig struct {
	AromaticCarbocycle float64 `mapstructure:"aromatic_carbocycle"`
	AcyclicMethylene   float64 `mapstructure:"acyclic_methylene"`
	AlicyclicUnit      float64 `mapstructure:"alicyclic_unit"`
	Heterocycle        float64 `mapstructure:"heterocycle"`
}

// CutoffsConfig gates verdict acceptance.
type CutoffsConfig struct {
	MinHeavyAtoms        int     `mapstructure:"min_heavy_atoms"`
	MaxHeavyAtoms        int     `mapstructure:"max_heavy_atoms"`
	MinRings             int     `mapstructure:"min_rings"`
	MaxLargestRingSize   int     `mapstructure:"max_largest_ring_size"`
	MaxMethylenes        int     `mapstructure:"max_methylenes"`
	MinSynthons          int     `mapstructure:"min_synthons"`
	MinAmicability       float64 `mapstructure:"min_amicability"`
	MinAmicabilityPerHAC float64 `mapstructure:"min_amicability_per_hac"`
	MaxBoringness        float64 `mapstructure:"max_boringness"`
}

// PipelineConfig tunes subsetting runs.
type PipelineConfig struct {
	Workers      int           `mapstructure:"workers"`
	AnalysisMode bool          `mapstructure:"analysis_mode"`
	Cutoffs      CutoffsConfig `mapstructure:"cutoffs"`
	TierBounds   []float64     `mapstructure:"tier_bounds"`
}

// ServerConfig configures the HTTP API daemon.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

// PostgresConfig configures the library store.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN renders the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig configures the deja-vu tally cache.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// MilvusConfig configures the accelerated similarity backend.
type MilvusConfig struct {
	Addr       string `mapstructure:"addr"`
	Collection string `mapstructure:"collection"`
}

// KafkaConfig configures verdict event publishing.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MinioConfig configures chunked subset uploads.
type MinioConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// Validate rejects configurations that would fail at first use.
func (c *Config) Validate() error {
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("config: similarity.threshold %v outside [0, 1]", c.Similarity.Threshold)
	}
	switch c.Similarity.Metric {
	case "", "moment", "tversky":
	default:
		return fmt.Errorf("config: unknown similarity.metric %q", c.Similarity.Metric)
	}
	switch c.Similarity.Backend {
	case "", "scan", "parallel", "milvus":
	default:
		return fmt.Errorf("config: unknown similarity.backend %q", c.Similarity.Backend)
	}
	if c.Library.NormalizeTo < 0 {
		return fmt.Errorf("config: library.normalize_to must not be negative")
	}
	if n := len(c.Pipeline.TierBounds); n != 0 && n != 3 {
		return fmt.Errorf("config: pipeline.tier_bounds needs exactly 3 values, got %d", n)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

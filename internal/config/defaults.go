package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers every default value on the viper instance, so a run
// with no config file at all is fully functional against local services.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_output_paths", []string{"stderr"})

	v.SetDefault("decompose.normalize_halogens", true)

	v.SetDefault("library.normalize_to", 1_000_000)
	v.SetDefault("library.min_sample_size", 100)
	v.SetDefault("library.spike_in_weight", 100)
	v.SetDefault("library.workers", 0)
	v.SetDefault("library.path", "")
	v.SetDefault("library.store_name", "")

	v.SetDefault("similarity.metric", "moment")
	v.SetDefault("similarity.threshold", 0.7)
	v.SetDefault("similarity.tversky_alpha", 0.7)
	v.SetDefault("similarity.tversky_beta", 0.3)
	v.SetDefault("similarity.backend", "parallel")
	v.SetDefault("similarity.exclude_identical", false)
	v.SetDefault("similarity.workers", 0)

	v.SetDefault("boringness.aromatic_carbocycle", 1.0)
	v.SetDefault("boringness.acyclic_methylene", 0.25)
	v.SetDefault("boringness.alicyclic_unit", -1.0)
	v.SetDefault("boringness.heterocycle", -0.5)

	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.analysis_mode", false)
	v.SetDefault("pipeline.cutoffs.min_heavy_atoms", 0)
	v.SetDefault("pipeline.cutoffs.max_heavy_atoms", 0)
	v.SetDefault("pipeline.cutoffs.min_rings", 1)
	v.SetDefault("pipeline.cutoffs.max_largest_ring_size", 8)
	v.SetDefault("pipeline.cutoffs.max_methylenes", 6)
	v.SetDefault("pipeline.cutoffs.min_synthons", 0)
	v.SetDefault("pipeline.cutoffs.min_amicability", 0)
	v.SetDefault("pipeline.cutoffs.min_amicability_per_hac", 0)
	v.SetDefault("pipeline.cutoffs.max_boringness", 0)
	v.SetDefault("pipeline.tier_bounds", []float64{0.5, 0.8, 1.0})

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "sieve")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "sieve")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "sieve:tally:")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("milvus.addr", "localhost:19530")
	v.SetDefault("milvus.collection", "synthon_library")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "sieve.verdicts")

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "sieve-subsets")
	v.SetDefault("minio.chunk_size", 100_000)
}

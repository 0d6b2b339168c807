// Package config loads ingestcore's process configuration from
// environment variables, the same flat getEnv idiom store-core's and
// brain-core's cmd/*/main.go use — no viper/cobra, no config files.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting the ingestcore facade
// and cmd/ingestd need to construct their components.
type Config struct {
	StagingRoot    string
	CanonicalRoot  string
	ThumbnailRoot  string

	CatalogDatabaseURL string
	VectorDatabaseURL  string
	VectorDimension    int

	EmbeddingProvider string
	EmbeddingModel    string
	EmbedDim          int
	OpenAIAPIKey      string

	ObjectStoreEndpoint  string
	ObjectStoreBucket    string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreUseSSL    bool

	ReconcileIntervalCron string

	TaxonomyConfigPath string

	GRPCHealthAddr string
}

// FromEnv reads every setting from os.Getenv, falling back to the
// defaults store-core/brain-core apply when a variable is unset.
func FromEnv() *Config {
	cfg := &Config{
		StagingRoot:   getEnv("STAGING_ROOT", "./data/staging"),
		CanonicalRoot: getEnv("CANONICAL_ROOT", "./data/canonical"),
		ThumbnailRoot: getEnv("THUMBNAIL_ROOT", "./data/thumbnails"),

		CatalogDatabaseURL: firstNonEmpty(getEnv("CATALOG_DATABASE_URL", ""), getEnv("DATABASE_URL", "")),
		VectorDatabaseURL:  firstNonEmpty(getEnv("VECTOR_DATABASE_URL", ""), getEnv("DATABASE_URL", "")),
		VectorDimension:    getEnvInt("VECTOR_DIMENSION", 1536),

		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "local"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "local-hash-v1"),
		EmbedDim:          getEnvInt("EMBED_DIM", 1536),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),

		ObjectStoreEndpoint:  getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreBucket:    getEnv("OBJECT_STORE_BUCKET", "ingestcore"),
		ObjectStoreAccessKey: getEnv("OBJECT_STORE_ACCESS_KEY", ""),
		ObjectStoreSecretKey: getEnv("OBJECT_STORE_SECRET_KEY", ""),
		ObjectStoreUseSSL:    getEnvBool("OBJECT_STORE_USE_SSL", false),

		ReconcileIntervalCron: getEnv("RECONCILE_INTERVAL_CRON", "@every 5m"),

		TaxonomyConfigPath: getEnv("TAXONOMY_CONFIG_PATH", ""),

		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ":9099"),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

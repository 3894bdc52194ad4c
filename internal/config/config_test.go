package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清理可能影响测试的环境变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "OPENAI_API_KEY", "MILVUS_ADDRESS", "MINIO_ENDPOINT",
		"MINIO_HOST", "REDIS_HOST", "REDIS_DB", "KAFKA_BROKERS", "KAFKA_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigLoader_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := NewConfigLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "flora-search", config.App.Name)
	assert.Equal(t, "development", config.App.Env)
	assert.Equal(t, "8000", config.Server.Port)
	assert.Equal(t, int64(4*1024*1024), config.Server.MaxUploadBytes)
	assert.Equal(t, 20, config.Server.DefaultResults)

	assert.Equal(t, "memory", config.Index.Provider)
	assert.Equal(t, "flora_text", config.Index.TextCollection)
	assert.Equal(t, "flora_images", config.Index.ImageCollection)
	assert.Equal(t, 10*time.Second, config.Index.Milvus.Timeout)

	assert.Equal(t, "hashing", config.Embedding.TextProvider)
	assert.Equal(t, "foi_himalayan_flowers.csv", config.Import.CSVFile)
	assert.Equal(t, "img", config.Import.ImageDir)
	assert.Equal(t, 30*time.Second, config.Import.FetchTimeout)

	assert.Equal(t, "local", config.Storage.Provider)
	assert.Equal(t, "none", config.Cache.Provider)
	assert.Equal(t, "localhost:6379", config.Cache.Redis.Addr())
	assert.False(t, config.Queue.Enabled)
	assert.Equal(t, "flora.imported", config.Queue.Kafka.Topic)
}

func TestConfigLoader_PrefixedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLORA_SERVER_PORT", "9100")
	t.Setenv("FLORA_INDEX_TEXT_COLLECTION", "text_test")
	t.Setenv("FLORA_CACHE_TTL", "1m")

	config, err := NewConfigLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", config.Server.Port)
	assert.Equal(t, "text_test", config.Index.TextCollection)
	assert.Equal(t, time.Minute, config.Cache.TTL)
}

func TestConfigLoader_LegacyEnvSwitchesProviders(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("MILVUS_ADDRESS", "milvus:19530")
	t.Setenv("MINIO_ENDPOINT", "http://minio:9000")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := NewConfigLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "milvus", config.Index.Provider)
	assert.Equal(t, "milvus:19530", config.Index.Milvus.Address)
	assert.Equal(t, "minio", config.Storage.Provider)
	assert.Equal(t, "http://minio:9000", config.Storage.MinIO.Endpoint)
	assert.Equal(t, "redis", config.Cache.Provider)
	assert.Equal(t, "openai", config.Embedding.TextProvider)
	assert.True(t, config.Queue.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, config.Queue.Kafka.Brokers)
}

func TestConfigLoader_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "flora.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\nimport:\n  image_dir: /data/img\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	config, err := NewConfigLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", config.Server.Port)
	assert.Equal(t, "/data/img", config.Import.ImageDir)
}

func TestConfigLoader_Validation(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLORA_APP_ENV", "invalid_env")

	_, err := NewConfigLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestConfigLoader_ProviderRequiresEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLORA_STORAGE_PROVIDER", "minio")

	_, err := NewConfigLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.endpoint")
}

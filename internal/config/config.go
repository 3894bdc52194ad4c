package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 服务与导入工具共用的配置
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Index     IndexConfig     `mapstructure:"index" validate:"required"`
	Embedding EmbeddingConfig `mapstructure:"embedding" validate:"required"`
	Import    ImportConfig    `mapstructure:"import" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"required,oneof=development staging production"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port           string `mapstructure:"port" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"min=1"`
	DefaultResults int    `mapstructure:"default_results" validate:"min=1,max=100"`
}

// IndexConfig 向量索引配置
type IndexConfig struct {
	Provider        string       `mapstructure:"provider" validate:"required,oneof=memory milvus"`
	TextCollection  string       `mapstructure:"text_collection" validate:"required"`
	ImageCollection string       `mapstructure:"image_collection" validate:"required"`
	Milvus          MilvusConfig `mapstructure:",squash"`
}

// MilvusConfig Milvus连接配置
type MilvusConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Database string        `mapstructure:"database"`
	Distance string        `mapstructure:"distance" validate:"omitempty,oneof=cosine dot euclidean"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	TextProvider string `mapstructure:"text_provider" validate:"required,oneof=hashing openai"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`
	Dimensions   int    `mapstructure:"dimensions" validate:"min=8"`
}

// ImportConfig 导入工具配置
type ImportConfig struct {
	CSVFile      string        `mapstructure:"csv_file" validate:"required"`
	ImageDir     string        `mapstructure:"image_dir" validate:"required"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"min=0"`
}

// StorageConfig 图片镜像存储配置
type StorageConfig struct {
	Provider string      `mapstructure:"provider" validate:"required,oneof=local minio"`
	MinIO    MinIOConfig `mapstructure:",squash"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CacheConfig 检索结果缓存配置
type CacheConfig struct {
	Provider string        `mapstructure:"provider" validate:"required,oneof=none redis"`
	Redis    RedisConfig   `mapstructure:",squash"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// Addr host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// QueueConfig 导入事件配置
type QueueConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Kafka   KafkaConfig `mapstructure:",squash"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// ConfigLoader 配置加载器
type ConfigLoader struct {
	viper     *viper.Viper
	validator *validator.Validate
}

// NewConfigLoader 创建配置加载器
func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetEnvPrefix("FLORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigLoader{
		viper:     v,
		validator: validator.New(),
	}
}

// Load 从默认值、环境变量和可选配置文件加载
func (cl *ConfigLoader) Load() (*Config, error) {
	cl.setDefaults()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		cl.viper.SetConfigFile(configFile)
		if err := cl.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	// 兼容无前缀的常用环境变量，优先级高于配置文件
	cl.loadFromEnv()

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validator.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validateProviders(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// validateProviders 校验选中的后端具备必要的连接参数
func validateProviders(config *Config) error {
	if config.Index.Provider == "milvus" && config.Index.Milvus.Address == "" {
		return fmt.Errorf("index.address is required for milvus")
	}
	if config.Storage.Provider == "minio" && config.Storage.MinIO.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for minio")
	}
	if config.Cache.Provider == "redis" && config.Cache.Redis.Host == "" {
		return fmt.Errorf("cache.host is required for redis")
	}
	if config.Embedding.TextProvider == "openai" && config.Embedding.OpenAIAPIKey == "" {
		return fmt.Errorf("embedding.openai_api_key is required for openai")
	}
	if config.Queue.Enabled && len(config.Queue.Kafka.Brokers) == 0 {
		return fmt.Errorf("queue.brokers is required when the queue is enabled")
	}
	return nil
}

// Load 使用默认加载器
func Load() (*Config, error) {
	return NewConfigLoader().Load()
}

func (cl *ConfigLoader) setDefaults() {
	cl.viper.SetDefault("app.name", "flora-search")
	cl.viper.SetDefault("app.env", "development")

	cl.viper.SetDefault("server.port", "8000")
	cl.viper.SetDefault("server.max_upload_bytes", 4*1024*1024)
	cl.viper.SetDefault("server.default_results", 20)

	cl.viper.SetDefault("index.provider", "memory")
	cl.viper.SetDefault("index.text_collection", "flora_text")
	cl.viper.SetDefault("index.image_collection", "flora_images")
	cl.viper.SetDefault("index.address", "localhost:19530")
	cl.viper.SetDefault("index.username", "")
	cl.viper.SetDefault("index.password", "")
	cl.viper.SetDefault("index.database", "")
	cl.viper.SetDefault("index.distance", "cosine")
	cl.viper.SetDefault("index.use_tls", false)
	cl.viper.SetDefault("index.timeout", "10s")

	cl.viper.SetDefault("embedding.text_provider", "hashing")
	cl.viper.SetDefault("embedding.openai_api_key", "")
	cl.viper.SetDefault("embedding.openai_model", "text-embedding-3-small")
	cl.viper.SetDefault("embedding.dimensions", 512)

	cl.viper.SetDefault("import.csv_file", "foi_himalayan_flowers.csv")
	cl.viper.SetDefault("import.image_dir", "img")
	cl.viper.SetDefault("import.fetch_timeout", "30s")

	cl.viper.SetDefault("storage.provider", "local")
	cl.viper.SetDefault("storage.endpoint", "")
	cl.viper.SetDefault("storage.access_key", "")
	cl.viper.SetDefault("storage.secret_key", "")
	cl.viper.SetDefault("storage.bucket", "flora-images")
	cl.viper.SetDefault("storage.region", "us-east-1")
	cl.viper.SetDefault("storage.prefix", "")
	cl.viper.SetDefault("storage.use_ssl", false)

	cl.viper.SetDefault("cache.provider", "none")
	cl.viper.SetDefault("cache.host", "localhost")
	cl.viper.SetDefault("cache.port", "6379")
	cl.viper.SetDefault("cache.password", "")
	cl.viper.SetDefault("cache.db", 0)
	cl.viper.SetDefault("cache.ttl", "10m")

	cl.viper.SetDefault("queue.enabled", false)
	cl.viper.SetDefault("queue.brokers", []string{"localhost:9092"})
	cl.viper.SetDefault("queue.topic", "flora.imported")
	cl.viper.SetDefault("queue.group_id", "flora-search")
}

func (cl *ConfigLoader) loadFromEnv() {
	cl.setFromEnv("server.port", "PORT")

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cl.viper.Set("embedding.openai_api_key", key)
		cl.viper.Set("embedding.text_provider", "openai")
	}

	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		cl.viper.Set("index.provider", "milvus")
		cl.viper.Set("index.address", addr)
	}
	cl.setFromEnv("index.username", "MILVUS_USERNAME")
	cl.setFromEnv("index.password", "MILVUS_PASSWORD")

	cl.setStorageFromEnv()
	cl.setCacheFromEnv()
	cl.setQueueFromEnv()
}

func (cl *ConfigLoader) setFromEnv(configKey, envKey string) {
	if value := os.Getenv(envKey); value != "" {
		cl.viper.Set(configKey, value)
	}
}

func (cl *ConfigLoader) setStorageFromEnv() {
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		cl.viper.Set("storage.provider", "minio")
		cl.viper.Set("storage.endpoint", endpoint)
	} else if host := os.Getenv("MINIO_HOST"); host != "" {
		port := os.Getenv("MINIO_PORT")
		if port == "" {
			port = "9000"
		}
		cl.viper.Set("storage.provider", "minio")
		cl.viper.Set("storage.endpoint", fmt.Sprintf("%s:%s", host, port))
	}

	cl.setFromEnv("storage.access_key", "MINIO_ACCESS_KEY")
	cl.setFromEnv("storage.secret_key", "MINIO_SECRET_KEY")
	cl.setFromEnv("storage.bucket", "MINIO_BUCKET")
	cl.setFromEnv("storage.region", "MINIO_REGION")
}

func (cl *ConfigLoader) setCacheFromEnv() {
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cl.viper.Set("cache.provider", "redis")
		cl.viper.Set("cache.host", host)
	}
	cl.setFromEnv("cache.port", "REDIS_PORT")
	cl.setFromEnv("cache.password", "REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			cl.viper.Set("cache.db", dbNum)
		}
	}
}

func (cl *ConfigLoader) setQueueFromEnv() {
	cl.setFromEnv("queue.topic", "KAFKA_TOPIC")
	cl.setFromEnv("queue.group_id", "KAFKA_GROUP_ID")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		brokerList := strings.Split(brokers, ",")
		for i := range brokerList {
			brokerList[i] = strings.TrimSpace(brokerList[i])
		}
		cl.viper.Set("queue.brokers", brokerList)
		cl.viper.Set("queue.enabled", true)
	}
}

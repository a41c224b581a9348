package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Blob     *blobConfig
	AI       *aiConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"petrorag"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address              string `envconfig:"PETRORAG_ADDRESS" default:":3443"`
	MetricsAddress       string `envconfig:"PETRORAG_METRICS_ADDRESS" default:":8080"`
	BaseUrl              string `envconfig:"PETRORAG_BASE_URL" default:"http://localhost:3443"`
	LogLevel             string `envconfig:"PETRORAG_LOG_LEVEL" default:"info"`
	MaxBatchFiles        int    `envconfig:"PETRORAG_MAX_BATCH_FILES" default:"50"`
	PipelineWorkers      int    `envconfig:"PETRORAG_PIPELINE_WORKERS" default:"8"`
	PipelineStageTimeout int    `envconfig:"PETRORAG_PIPELINE_STAGE_TIMEOUT_SECONDS" default:"0"`
	BatchRetentionHours  int    `envconfig:"PETRORAG_BATCH_RETENTION_HOURS" default:"1"`
	DailyRetentionHours  int    `envconfig:"PETRORAG_DAILY_RETENTION_HOURS" default:"24"`
	CorsAllowedOrigins   string `envconfig:"PETRORAG_CORS_ALLOWED_ORIGINS" default:"*"`
}

type blobConfig struct {
	// Type selects the storage backend: "minio" or "fs".
	Type      string `envconfig:"PETRORAG_BLOB_TYPE" default:"fs"`
	Endpoint  string `envconfig:"PETRORAG_BLOB_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"PETRORAG_BLOB_BUCKET" default:"petrorag-uploads"`
	AccessKey string `envconfig:"PETRORAG_BLOB_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"PETRORAG_BLOB_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"PETRORAG_BLOB_USE_SSL" default:"false"`
	LocalDir  string `envconfig:"PETRORAG_BLOB_LOCAL_DIR" default:"./uploads"`
}

type aiConfig struct {
	OpenAIAPIKey     string `envconfig:"PETRORAG_OPENAI_API_KEY" default:""`
	OpenAIBaseURL    string `envconfig:"PETRORAG_OPENAI_BASE_URL" default:""`
	EmbeddingModel   string `envconfig:"PETRORAG_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	TextModel        string `envconfig:"PETRORAG_TEXT_MODEL" default:"gpt-4o-mini"`
	VisionModel      string `envconfig:"PETRORAG_VISION_MODEL" default:"gpt-4o-mini"`
	ParserURL        string `envconfig:"PETRORAG_PARSER_URL" default:"http://localhost:5001"`
	QdrantURL        string `envconfig:"PETRORAG_QDRANT_URL" default:"http://localhost:6333"`
	QdrantCollection string `envconfig:"PETRORAG_QDRANT_COLLECTION" default:"petrorag_vectors"`
	VectorSize       int    `envconfig:"PETRORAG_VECTOR_SIZE" default:"1536"`
	TopK             int    `envconfig:"PETRORAG_TOP_K" default:"10"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config with the envconfig defaults applied, ignoring
// the process environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service: &svcConfig{
			Address:             ":3443",
			MetricsAddress:      ":8080",
			LogLevel:            "info",
			MaxBatchFiles:       50,
			PipelineWorkers:     8,
			BatchRetentionHours: 1,
			DailyRetentionHours: 24,
			CorsAllowedOrigins:  "*",
		},
		Blob: &blobConfig{Type: "fs", LocalDir: "./uploads"},
		AI:   &aiConfig{TopK: 10, VectorSize: 1536},
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, shared by the API server
// and the pipeline worker. Values come from settings.yaml with environment
// variable overrides on top.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Bus         BusConfig         `yaml:"bus"`
	Notify      NotifyConfig      `yaml:"notify"`
	Storage     StorageConfig     `yaml:"storage"`
	LLM         LLMConfig         `yaml:"llm"`
	OCR         OCRConfig         `yaml:"ocr"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Routing     RoutingConfig     `yaml:"routing"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
}

type AppConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	// DSN selects the driver: "postgres://..." opens postgres,
	// anything else is treated as an sqlite path.
	DSN string `yaml:"dsn"`
}

type BusConfig struct {
	RedisAddr string `yaml:"redisAddr"`
	RedisDB   int    `yaml:"redisDB"`
	// Exchange prefixes every stream key so unrelated deployments can
	// share one Redis.
	Exchange     string `yaml:"exchange"`
	StreamMaxLen int64  `yaml:"streamMaxLen"`
}

type NotifyConfig struct {
	RedisAddr       string `yaml:"redisAddr"`
	RedisDB         int    `yaml:"redisDB"`
	DocumentChannel string `yaml:"documentChannel"`
	MailboxChannel  string `yaml:"mailboxChannel"`
}

type StorageConfig struct {
	// Type is one of "local", "minio", "s3".
	Type      string      `yaml:"type"`
	UploadDir string      `yaml:"uploadDir"`
	Minio     MinioConfig `yaml:"minio"`
	S3        S3Config    `yaml:"s3"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
}

type S3Config struct {
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
}

type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	// Engine is "tesseract" or "textract".
	Engine    string         `yaml:"engine"`
	Languages []string       `yaml:"languages"`
	Textract  TextractConfig `yaml:"textract"`
}

type TextractConfig struct {
	Region        string  `yaml:"region"`
	AccessKey     string  `yaml:"accessKey"`
	SecretKey     string  `yaml:"secretKey"`
	MinConfidence float32 `yaml:"minConfidence"`
}

type IngestConfig struct {
	MaxFileSize     int64    `yaml:"maxFileSize"`
	AllowedTypes    []string `yaml:"allowedTypes"`
	SenderAllowList []string `yaml:"senderAllowList"`
}

type RoutingConfig struct {
	// Destinations maps a document type to its routing target. Empty map
	// falls back to the built-in table.
	Destinations       map[string]string `yaml:"destinations"`
	DefaultDestination string            `yaml:"defaultDestination"`
}

type MaintenanceConfig struct {
	Retention     time.Duration `yaml:"retention"`
	TrimInterval  string        `yaml:"trimInterval"`  // cron spec, e.g. "@every 1h"
	PurgeInterval string        `yaml:"purgeInterval"` // cron spec
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			DSN: "documents.db",
		},
		Bus: BusConfig{
			RedisAddr:    "localhost:6379",
			RedisDB:      0,
			Exchange:     "document_exchange",
			StreamMaxLen: 10000,
		},
		Notify: NotifyConfig{
			RedisAddr:       "localhost:6379",
			RedisDB:         0,
			DocumentChannel: "docflow:updates:documents",
			MailboxChannel:  "docflow:updates:mailbox",
		},
		Storage: StorageConfig{
			Type:      "local",
			UploadDir: "uploads",
		},
		LLM: LLMConfig{
			Endpoint:    "http://localhost:11434",
			Model:       "llama3",
			MaxTokens:   500,
			Temperature: 0.1,
			Timeout:     120 * time.Second,
		},
		OCR: OCRConfig{
			Engine:    "tesseract",
			Languages: []string{"eng"},
		},
		Ingest: IngestConfig{
			MaxFileSize:     50 * 1024 * 1024,
			AllowedTypes:    []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png", ".tiff"},
			SenderAllowList: []string{"urgent@example.com"},
		},
		Routing: RoutingConfig{
			DefaultDestination: "archive",
		},
		Maintenance: MaintenanceConfig{
			Retention:     30 * 24 * time.Hour,
			TrimInterval:  "@every 1h",
			PurgeInterval: "@every 24h",
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
		},
	}
}

// Load reads settings from the given YAML file (missing file is not an
// error) and applies environment overrides. A .env file in the working
// directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// A malformed .env is worth failing on; a missing one is not.
		if !strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall back to defaults + env
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.App.Host, "APP_HOST")
	setInt(&c.App.Port, "APP_PORT")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Bus.RedisAddr, "REDIS_ADDR")
	setInt(&c.Bus.RedisDB, "REDIS_DB")
	setString(&c.Bus.Exchange, "BUS_EXCHANGE")
	setString(&c.Notify.RedisAddr, "REDIS_ADDR")
	setInt(&c.Notify.RedisDB, "REDIS_DB")
	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.Storage.UploadDir, "UPLOAD_DIR")
	setString(&c.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.BucketName, "MINIO_BUCKET_NAME")
	setString(&c.Storage.S3.BucketName, "AWS_S3_BUCKET_NAME")
	setString(&c.Storage.S3.Region, "AWS_REGION")
	setString(&c.Storage.S3.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.Storage.S3.SecretKey, "AWS_SECRET_KEY")
	setString(&c.OCR.Textract.Region, "AWS_REGION")
	setString(&c.OCR.Textract.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.OCR.Textract.SecretKey, "AWS_SECRET_KEY")
	setString(&c.LLM.Endpoint, "LLM_ENDPOINT")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.Log.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Neo4j    Neo4jConfig
	Valkey   ValkeyConfig
	MinIO    MinIOConfig
	S3       S3Config
	Compute  ComputeConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type Neo4jConfig struct {
	// Enabled turns on the search index. When false only the relational index is written.
	Enabled  bool
	URI      string
	User     string
	Password string
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Config struct {
	Region   string // S3_REGION
	Bucket   string // S3_BUCKET
	Prefix   string // S3_PREFIX (optional key prefix)
	Endpoint string // S3_ENDPOINT (for MinIO/LocalStack compatibility)
}

// Report sources accepted by REPORT_SOURCE.
const (
	ReportSourceMinIO = "minio"
	ReportSourceS3    = "s3"
	ReportSourceFile  = "file"
)

type ComputeConfig struct {
	PauseTaskPath     string        // CE_PAUSE_TASK_PATH; empty disables the pause gate
	PausePollInterval time.Duration // CE_PAUSE_POLL_INTERVAL
	ReportSource      string        // REPORT_SOURCE
	ReportDir         string        // REPORT_DIR, base directory for the file source
}

type WorkerConfig struct {
	ID          string
	Concurrency int
	MaxAttempts int
	MetricsAddr string
}

func Load() (*Config, error) {
	host, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "ceindex"),
			Password: getEnv("DB_PASSWORD", "ceindex"),
			Name:     getEnv("DB_NAME", "ceindex"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Neo4j: Neo4jConfig{
			Enabled:  getEnvBool("SEARCH_INDEX_ENABLED", true),
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", "ceindex"),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "ceindex"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "ceindex123"),
			Bucket:    getEnv("MINIO_BUCKET", "ceindex-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Region:   getEnv("S3_REGION", ""),
			Bucket:   getEnv("S3_BUCKET", ""),
			Prefix:   getEnv("S3_PREFIX", ""),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		Compute: ComputeConfig{
			PauseTaskPath:     getEnv("CE_PAUSE_TASK_PATH", ""),
			PausePollInterval: getEnvDuration("CE_PAUSE_POLL_INTERVAL", 500*time.Millisecond),
			ReportSource:      getEnv("REPORT_SOURCE", ReportSourceMinIO),
			ReportDir:         getEnv("REPORT_DIR", ""),
		},
		Worker: WorkerConfig{
			ID:          getEnv("WORKER_ID", host),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 1),
			MaxAttempts: getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			MetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9090"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Compute.ReportSource {
	case ReportSourceMinIO, ReportSourceFile:
	case ReportSourceS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when REPORT_SOURCE=%s", ReportSourceS3)
		}
	default:
		return fmt.Errorf("unknown REPORT_SOURCE %q", c.Compute.ReportSource)
	}
	if c.Compute.PausePollInterval <= 0 {
		return fmt.Errorf("CE_PAUSE_POLL_INTERVAL must be positive, got %s", c.Compute.PausePollInterval)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1, got %d", c.Worker.MaxAttempts)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("750ms") or a plain number of milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

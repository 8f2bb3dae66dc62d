package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Reorder  ReorderConfig
	Events   EventsConfig
	Backfill BackfillConfig
	Storage  StorageConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Backend  string // postgres or memory
	URL      string // overrides the discrete fields when set
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	LogLevel  string
}

type CacheConfig struct {
	Enabled                bool
	RedisURL               string
	RedisHost              string
	RedisPort              string
	RedisPassword          string
	RedisDB                int
	ReorderPointTTLSeconds int
}

// ReorderConfig holds the numeric parameters of the reorder point formula.
type ReorderConfig struct {
	LeadTimeDays      float64
	ServiceZ          float64
	MeanWindow        int
	VarianceWindow    int
	AggregationPolicy string
}

type EventsConfig struct {
	Transport    string // memory or redis
	RedisChannel string
}

type BackfillConfig struct {
	Workers        int
	RetryAttempts  int
	RetryBackoffMS int
	ReportDir      string
}

// StorageConfig points at an S3-compatible bucket for backfill reports. An
// empty endpoint disables uploads.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = load(viper.GetViper())

		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
		ensureDir(instance.Backfill.ReportDir)
	})

	return instance
}

func load(v *viper.Viper) *Config {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_BACKEND", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "reorderpoint")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_REORDER_POINT_TTL_SECONDS", 300)
	v.SetDefault("REORDER_LEAD_TIME_DAYS", 7)
	v.SetDefault("REORDER_SERVICE_Z", 1.645)
	v.SetDefault("REORDER_MEAN_WINDOW", 7)
	v.SetDefault("REORDER_VARIANCE_WINDOW", 6)
	v.SetDefault("REORDER_AGGREGATION_POLICY", "latest-row")
	v.SetDefault("EVENTS_TRANSPORT", "memory")
	v.SetDefault("EVENTS_REDIS_CHANNEL", "reorderpoint:facts")
	v.SetDefault("BACKFILL_WORKERS", 4)
	v.SetDefault("BACKFILL_RETRY_ATTEMPTS", 2)
	v.SetDefault("BACKFILL_RETRY_BACKOFF_MS", 200)
	v.SetDefault("BACKFILL_REPORT_DIR", "./data/reports")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_BUCKET", "reorderpoint-reports")
	v.SetDefault("STORAGE_USE_SSL", true)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Backend:  strings.ToLower(v.GetString("DB_BACKEND")),
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
			LogLevel:  v.GetString("LOG_LEVEL"),
		},
		Cache: CacheConfig{
			Enabled:                v.GetBool("CACHE_ENABLED"),
			RedisURL:               v.GetString("REDIS_URL"),
			RedisHost:              v.GetString("REDIS_HOST"),
			RedisPort:              v.GetString("REDIS_PORT"),
			RedisPassword:          v.GetString("REDIS_PASSWORD"),
			RedisDB:                v.GetInt("REDIS_DB"),
			ReorderPointTTLSeconds: v.GetInt("CACHE_REORDER_POINT_TTL_SECONDS"),
		},
		Reorder: ReorderConfig{
			LeadTimeDays:      v.GetFloat64("REORDER_LEAD_TIME_DAYS"),
			ServiceZ:          v.GetFloat64("REORDER_SERVICE_Z"),
			MeanWindow:        v.GetInt("REORDER_MEAN_WINDOW"),
			VarianceWindow:    v.GetInt("REORDER_VARIANCE_WINDOW"),
			AggregationPolicy: v.GetString("REORDER_AGGREGATION_POLICY"),
		},
		Events: EventsConfig{
			Transport:    strings.ToLower(v.GetString("EVENTS_TRANSPORT")),
			RedisChannel: v.GetString("EVENTS_REDIS_CHANNEL"),
		},
		Backfill: BackfillConfig{
			Workers:        v.GetInt("BACKFILL_WORKERS"),
			RetryAttempts:  v.GetInt("BACKFILL_RETRY_ATTEMPTS"),
			RetryBackoffMS: v.GetInt("BACKFILL_RETRY_BACKOFF_MS"),
			ReportDir:      v.GetString("BACKFILL_REPORT_DIR"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

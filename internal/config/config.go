package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gemmy/internal/workflow"
)

type Config struct {
	Port              string
	MongoURI          string
	DBName            string
	MongoTransactions bool
	JWTSecret         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	PublicBaseURL     string
	LogLevel          string

	BlobBackend string
	UploadDir   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BudgetBackend         string
	BudgetWindow          time.Duration
	CustomerMaxChecks     int
	CustomerCheckInterval time.Duration
	VendorMaxChecks       int
	VendorCheckInterval   time.Duration

	NotifyBackend string

	WorkflowPolicy       string
	Phases               []workflow.Phase
	MirrorCustomerWrites bool
}

// Load reads .env (when present), the environment and an optional CONFIG_FILE.
// Environment variables win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:              v.GetString("PORT"),
		MongoURI:          v.GetString("MONGO_URI"),
		DBName:            v.GetString("DB_NAME"),
		MongoTransactions: v.GetBool("MONGO_TRANSACTIONS"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AccessTokenTTL:    getDuration(v, "ACCESS_TOKEN_TTL", 60, time.Minute),
		RefreshTokenTTL:   getDuration(v, "REFRESH_TOKEN_TTL", 30, 24*time.Hour),
		PublicBaseURL:     strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "?"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),

		BlobBackend: strings.ToLower(v.GetString("BLOB_BACKEND")),
		UploadDir:   v.GetString("UPLOAD_DIR"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		BudgetBackend:         strings.ToLower(v.GetString("BUDGET_BACKEND")),
		BudgetWindow:          v.GetDuration("BUDGET_WINDOW"),
		CustomerMaxChecks:     v.GetInt("CUSTOMER_MAX_CHECKS"),
		CustomerCheckInterval: v.GetDuration("CUSTOMER_CHECK_INTERVAL"),
		VendorMaxChecks:       v.GetInt("VENDOR_MAX_CHECKS"),
		VendorCheckInterval:   v.GetDuration("VENDOR_CHECK_INTERVAL"),

		NotifyBackend: strings.ToLower(v.GetString("NOTIFY_BACKEND")),

		WorkflowPolicy:       strings.ToLower(v.GetString("WORKFLOW_POLICY")),
		MirrorCustomerWrites: v.GetBool("MIRROR_CUSTOMER_WRITES"),
	}

	if v.IsSet("workflow.phases") {
		if err := v.UnmarshalKey("workflow.phases", &cfg.Phases); err != nil {
			return Config{}, fmt.Errorf("decode workflow.phases: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("DB_NAME", "gemmy")
	v.SetDefault("MONGO_TRANSACTIONS", true)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", 60)
	v.SetDefault("REFRESH_TOKEN_TTL", 30)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BLOB_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "./public/uploads")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BUDGET_BACKEND", "memory")
	v.SetDefault("BUDGET_WINDOW", 24*time.Hour)
	v.SetDefault("CUSTOMER_MAX_CHECKS", 240)
	v.SetDefault("CUSTOMER_CHECK_INTERVAL", 15*time.Second)
	v.SetDefault("VENDOR_MAX_CHECKS", 720)
	v.SetDefault("VENDOR_CHECK_INTERVAL", 5*time.Second)
	v.SetDefault("NOTIFY_BACKEND", "memory")
	v.SetDefault("WORKFLOW_POLICY", "free")
	v.SetDefault("MIRROR_CUSTOMER_WRITES", false)
}

func (c Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.BlobBackend {
	case "local", "gridfs":
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", c.BlobBackend)
	}
	switch c.BudgetBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported BUDGET_BACKEND %q", c.BudgetBackend)
	}
	switch c.NotifyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported NOTIFY_BACKEND %q", c.NotifyBackend)
	}
	if _, err := workflow.ParsePolicy(c.WorkflowPolicy); err != nil {
		return err
	}
	return nil
}

func getDuration(v *viper.Viper, key string, defaultValue int, unit time.Duration) time.Duration {
	if parsed := v.GetInt(key); parsed > 0 {
		return time.Duration(parsed) * unit
	}
	return time.Duration(defaultValue) * unit
}

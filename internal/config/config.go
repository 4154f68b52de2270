package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/advisor"
	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/arnavshah/shift-assign-api/pkg/locks"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine holds the tunables read from the optional YAML file
type Engine struct {
	ContractRule  models.ContractRule      `yaml:"contractRule"`
	Advisor       advisor.Settings         `yaml:"advisor"`
	Breaker       database.BreakerSettings `yaml:"breaker"`
	LockTTL       time.Duration            `yaml:"lockTTL" validate:"gt=0"`
	LockNamespace string                   `yaml:"lockNamespace" validate:"required"`
}

// DefaultEngine is used for every key the YAML file leaves out
func DefaultEngine() Engine {
	return Engine{
		ContractRule:  models.DefaultContractRule(),
		Advisor:       advisor.DefaultSettings(),
		Breaker:       database.DefaultBreakerSettings(),
		LockTTL:       locks.DefaultTTL,
		LockNamespace: "shift-assign",
	}
}

// Config is the server configuration
type Config struct {
	Port            string `validate:"required,numeric"`
	GinMode         string
	DatabaseURL     string
	DataPath        string
	RedisURL        string
	JWTSecret       string `validate:"required"`
	APIMasterSecret string `validate:"required"`
	AdminUsername   string `validate:"required"`
	AdminPassword   string `validate:"required"`
	AdminTenantID   int64  `validate:"gte=1"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFile         string
	EngineFile      string
	Engine          Engine
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// envPaths are tried in order; the first .env found is loaded
var envPaths = []string{".env", "../.env", "../../.env"}

// Load reads .env (if any), the environment and the optional engine file
func Load() (*Config, error) {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.EngineFile != "" {
		if err := LoadEngineFile(cfg.EngineFile, &cfg.Engine); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables and defaults
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8000"),
		GinMode:         os.Getenv("GIN_MODE"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataPath:        getenv("DATA_PATH", "shift_assign.db"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		APIMasterSecret: os.Getenv("API_MASTER_SECRET"),
		AdminUsername:   getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getenv("ADMIN_PASSWORD", "admin123"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		EngineFile:      os.Getenv("ENGINE_CONFIG"),
		Engine:          DefaultEngine(),
	}

	tenant, err := strconv.ParseInt(getenv("ADMIN_TENANT_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TENANT_ID: %w", err)
	}
	cfg.AdminTenantID = tenant
	return cfg, nil
}

// LoadEngineFile overlays the YAML file at path onto engine
func LoadEngineFile(path string, engine *Engine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, engine); err != nil {
		return fmt.Errorf("failed to parse engine config: %w", err)
	}
	return nil
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

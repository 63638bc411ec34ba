package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yuki5321/AIsindan/internal/classifier"
	"github.com/yuki5321/AIsindan/internal/refine"
)

type Config struct {
	Port           string
	GinMode        string
	Env            string
	LogLevel       string
	FrontendOrigin string

	EnableDB     bool
	DatabaseURL  string
	SeedPath     string
	StoreTimeout time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	ClassifierBackend string
	ModelPath         string
	ORTLibraryPath    string
	ModelInputName    string
	ModelOutputName   string
	ClassifierURL     string
	ClassifierTimeout time.Duration
	ClassifierRetries int

	BoostFactor   float64
	TopK          int
	ImageSize     int
	MaxImageBytes int
	SynonymsPath  string
	PreloadIndex  bool

	AdminToken     string
	RateLimitRPS   float64
	RateLimitBurst int

	OTelEndpoint    string
	OTelServiceName string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		Env:            getEnv("APP_ENV", "production"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "*"),

		EnableDB:     getEnvBool("ENABLE_DB", false),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SeedPath:     os.Getenv("SEED_PATH"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", time.Hour),

		ClassifierBackend: strings.ToLower(getEnv("CLASSIFIER_BACKEND", classifier.BackendStatic)),
		ModelPath:         os.Getenv("MODEL_PATH"),
		ORTLibraryPath:    os.Getenv("ORT_LIBRARY_PATH"),
		ModelInputName:    getEnv("MODEL_INPUT_NAME", "input"),
		ModelOutputName:   getEnv("MODEL_OUTPUT_NAME", "output"),
		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		ClassifierRetries: getEnvInt("CLASSIFIER_RETRIES", 2),

		BoostFactor:   getEnvFloat("BOOST_FACTOR", refine.DefaultBoostFactor),
		TopK:          getEnvInt("TOP_K", classifier.DefaultTopK),
		ImageSize:     getEnvInt("IMAGE_SIZE", classifier.DefaultImageSize),
		MaxImageBytes: getEnvInt("MAX_IMAGE_BYTES", classifier.DefaultMaxImageBytes),
		SynonymsPath:  os.Getenv("SYNONYMS_PATH"),
		PreloadIndex:  getEnvBool("PRELOAD_INDEX", true),

		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		OTelEndpoint:    os.Getenv("OTEL_ENDPOINT"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "dermadx"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.BoostFactor < 0 {
		return fmt.Errorf("BOOST_FACTOR must not be negative, got %g", c.BoostFactor)
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K must be at least 1, got %d", c.TopK)
	}
	if c.ImageSize < 1 {
		return fmt.Errorf("IMAGE_SIZE must be at least 1, got %d", c.ImageSize)
	}
	if c.MaxImageBytes < 1 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be at least 1, got %d", c.MaxImageBytes)
	}
	if c.ClassifierRetries < 0 {
		return fmt.Errorf("CLASSIFIER_RETRIES must not be negative, got %d", c.ClassifierRetries)
	}

	switch c.ClassifierBackend {
	case classifier.BackendONNX:
		if c.ModelPath == "" {
			return fmt.Errorf("MODEL_PATH is required when CLASSIFIER_BACKEND=onnx")
		}
	case classifier.BackendHTTP:
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required when CLASSIFIER_BACKEND=http")
		}
	case classifier.BackendStatic:
		if !c.Development() && !c.Testing() {
			return fmt.Errorf("CLASSIFIER_BACKEND=static answers every image with a fixed placeholder distribution; set CLASSIFIER_BACKEND=onnx or http, or APP_ENV=development")
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.ClassifierBackend)
	}
	return nil
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// Testing reports whether the service runs under APP_ENV=test.
func (c *Config) Testing() bool {
	return strings.EqualFold(c.Env, "test")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

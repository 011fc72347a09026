package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config - all environment-driven settings in one place
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseProjectRef string

	// Gemini API
	GeminiAPIKey     string
	GeminiImageModel string
	GeminiVideoModel string

	// Server
	Port string

	// Storage buckets
	OriginalsBucket   string
	GenerationsBucket string
	SignedURLTTL      int // seconds

	// Credits
	ImageCreditCost     int
	DroneTourCreditCost int
	FreeTierDroneTours  int

	// Rate limit (fixed window)
	RateLimitMax    int
	RateLimitWindow int // seconds

	// Upload limits / compression
	MaxUploadBytes int64
	WebPQuality    float32

	// Estimated backend cost per call (USD), recorded with usage metrics
	ImageCostUSD float64
	VideoCostUSD float64
}

var globalConfig *Config

// LoadConfig - load environment variables (with .env support)
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	useTLS := true
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	globalConfig = &Config{
		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Supabase
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseProjectRef: getEnv("SUPABASE_PROJECT_REF", ""),

		// Gemini API
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiVideoModel: getEnv("GEMINI_VIDEO_MODEL", "veo-2.0-generate-001"),

		// Server
		Port: getEnv("PORT", "8080"),

		// Storage
		OriginalsBucket:   getEnv("ORIGINALS_BUCKET", "room-originals"),
		GenerationsBucket: getEnv("GENERATIONS_BUCKET", "room-generations"),
		SignedURLTTL:      getEnvInt("SIGNED_URL_TTL", 86400),

		// Credits (drone tour is the expensive video mode)
		ImageCreditCost:     getEnvInt("IMAGE_CREDIT_COST", 1),
		DroneTourCreditCost: getEnvInt("DRONE_TOUR_CREDIT_COST", 50),
		FreeTierDroneTours:  getEnvInt("FREE_TIER_DRONE_TOURS", 1),

		// Rate limit
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Uploads
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		WebPQuality:    float32(getEnvInt("WEBP_QUALITY", 80)),

		// Cost accounting
		ImageCostUSD: getEnvFloat("IMAGE_COST_USD", 0.039),
		VideoCostUSD: getEnvFloat("VIDEO_COST_USD", 0.35),
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Gemini: image=%s video=%s", globalConfig.GeminiImageModel, globalConfig.GeminiVideoModel)
	log.Printf("   Credits: %d per image, %d per drone tour", globalConfig.ImageCreditCost, globalConfig.DroneTourCreditCost)
	log.Printf("   Rate limit: %d per %ds", globalConfig.RateLimitMax, globalConfig.RateLimitWindow)

	return globalConfig, nil
}

// GetConfig - fetch the loaded config
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - required environment variables
func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// getEnv - environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt - integer environment variable with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat - float environment variable with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetRedisAddr - Redis connection string
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// StorageHost - hostname of the Supabase deployment, used as the
// allow-list for user-supplied image URLs (the server fetches them itself)
func (c *Config) StorageHost() string {
	u, err := url.Parse(c.SupabaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

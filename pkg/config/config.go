package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port               string        `validate:"required,numeric"`
	Env                string        `validate:"oneof=development production test"`
	MongoURI           string        `validate:"required"`
	MongoDatabase      string        `validate:"required"`
	PostgresConnStr    string        `validate:"required"`
	JWTSecret          string        `validate:"required,min=16"`
	TokenTTL           time.Duration `validate:"gt=0"`
	CORSAllowedOrigins []string

	MinioEndpoint  string `validate:"required"`
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string `validate:"required"`
	MinioUseSSL    bool
	MediaPublicURL string `validate:"omitempty,url"`

	RedisAddr     string `validate:"required"`
	RedisPassword string
	ChatAPIKey    string
	ChatAPISecret string `validate:"required"`

	FirebaseCredentialsPath string

	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`
	MaxUploadBytes int64  `validate:"gt=0"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDatabase:      getEnv("MONGO_DATABASE", "snapgram"),
		PostgresConnStr:    getEnv("POSTGRES_CONN_STR", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getDuration("TOKEN_TTL", 72*time.Hour),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "snapgram-media"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		MediaPublicURL: getEnv("MEDIA_PUBLIC_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ChatAPIKey:    getEnv("CHAT_API_KEY", ""),
		ChatAPISecret: getEnv("CHAT_API_SECRET", ""),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),

		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 10<<20),
	}
}

// Validate rejects a configuration the server cannot start with
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return n
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

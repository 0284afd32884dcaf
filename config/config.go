package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBLogLevel string

	JWTSecret    string
	JWTExpiryMin int

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	WSPingInterval     time.Duration
	WSMaxConnsPerUser  int
	WSSendBuffer       int
	TypingExpiry       time.Duration
	MessageRateLimit   int
	ConnectRateLimit   int
	SearchLanguage     string
	MetricsEnabled     bool
	RetentionCron      string
	RetentionDays      int
	S3Region           string
	S3Bucket           string
	S3AccessKey        string
	S3SecretKey        string
	S3Endpoint         string
	S3PresignTTL       time.Duration
	AttachmentsEnabled bool
	CORSAllowedOrigins []string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("Could not read config file %s: %v", path, err)
		}
	}

	return &Config{
		AppPort: v.GetString("APP_PORT"),
		AppMode: v.GetString("APP_MODE"),

		DBHost:     v.GetString("DB_HOST"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBPort:     v.GetString("DB_PORT"),
		DBLogLevel: v.GetString("DB_LOG_LEVEL"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTExpiryMin: v.GetInt("JWT_EXPIRY_MIN"),

		RedisEnabled:  v.GetBool("REDIS_ENABLED"),
		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		PresenceTTL:   v.GetDuration("PRESENCE_TTL"),

		WSPingInterval:    v.GetDuration("WS_PING_INTERVAL"),
		WSMaxConnsPerUser: v.GetInt("WS_MAX_CONNS_PER_USER"),
		WSSendBuffer:      v.GetInt("WS_SEND_BUFFER"),
		TypingExpiry:      v.GetDuration("TYPING_EXPIRY"),
		MessageRateLimit:  v.GetInt("MESSAGE_RATE_LIMIT"),
		ConnectRateLimit:  v.GetInt("CONNECT_RATE_LIMIT"),
		SearchLanguage:    v.GetString("SEARCH_LANGUAGE"),
		MetricsEnabled:    v.GetBool("METRICS_ENABLED"),
		RetentionCron:     v.GetString("NOTIFICATION_RETENTION_CRON"),
		RetentionDays:     v.GetInt("NOTIFICATION_RETENTION_DAYS"),

		S3Region:           v.GetString("S3_REGION"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3AccessKey:        v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:        v.GetString("S3_SECRET_KEY"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3PresignTTL:       v.GetDuration("S3_PRESIGN_TTL"),
		AttachmentsEnabled: v.GetString("S3_BUCKET") != "",
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_MODE", "debug")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "prolink")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_LOG_LEVEL", "warn")

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EXPIRY_MIN", 60)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRESENCE_TTL", 2*time.Minute)

	v.SetDefault("WS_PING_INTERVAL", 30*time.Second)
	v.SetDefault("WS_MAX_CONNS_PER_USER", 10)
	v.SetDefault("WS_SEND_BUFFER", 256)
	v.SetDefault("TYPING_EXPIRY", 5*time.Second)
	v.SetDefault("MESSAGE_RATE_LIMIT", 60)
	v.SetDefault("CONNECT_RATE_LIMIT", 20)
	v.SetDefault("SEARCH_LANGUAGE", "english")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("NOTIFICATION_RETENTION_CRON", "0 3 * * *")
	v.SetDefault("NOTIFICATION_RETENTION_DAYS", 30)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PRESIGN_TTL", 15*time.Minute)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
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

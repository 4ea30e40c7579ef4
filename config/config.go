package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置，来源于环境变量和 .env 文件
type Config struct {
	ListenAddr string // 本地 API 监听地址，只允许回环地址

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	LogLevel string
	LogFile  string

	// 音频与会话
	AudioEngine     string // beep | null
	AudioSampleRate int
	HistoryLimit    int
	AutosaveDelay   time.Duration
	TickInterval    time.Duration
	DraftTTL        time.Duration
	DefaultBPM      float64
	DefaultTimeSig  [2]int

	// API
	APIPassphrase string // 为空时不校验口令
	JWTSecret     string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat 读取浮点型环境变量
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool 读取布尔型环境变量
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// parseTimeSig 解析 "3/4" 形式的拍号，非法时返回 4/4
func parseTimeSig(s string) [2]int {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 {
		return [2]int{4, 4}
	}
	top, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	bottom, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || top <= 0 || bottom <= 0 {
		return [2]int{4, 4}
	}
	return [2]int{top, bottom}
}

// Load loads configuration from environment variables (via .env file) or defaults.
// files 为空时读取当前目录的 .env。
func Load(files ...string) *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

// fromEnv 只读取当前环境变量
func fromEnv() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", "127.0.0.1:8765"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "musicians_helper"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "musicians-helper"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		AudioEngine:     getEnv("AUDIO_ENGINE", "beep"),
		AudioSampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 50),
		AutosaveDelay:   time.Duration(getEnvInt("AUTOSAVE_DELAY_MS", 1500)) * time.Millisecond,
		TickInterval:    time.Duration(getEnvInt("TICK_INTERVAL_MS", 16)) * time.Millisecond,
		DraftTTL:        time.Duration(getEnvInt("DRAFT_TTL_HOURS", 72)) * time.Hour,
		DefaultBPM:      getEnvFloat("DEFAULT_BPM", 120),
		DefaultTimeSig:  parseTimeSig(getEnv("DEFAULT_TIME_SIG", "4/4")),

		APIPassphrase: getEnv("API_PASSPHRASE", ""),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
	}
}

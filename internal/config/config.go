package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Бэкенды кэша
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config содержит всю конфигурацию приложения.
// Вложенные структуры дают префикс переменным: SERVER_PORT, REDIS_HOST, DB_NAME и т.д.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Имена функций на шлюзе, переменные совпадают с прежним деплоем
	FaceDetectionFunction    string `envconfig:"FACE_DETECTION_FUNCTION" default:"face-detection"`
	GenderDetectionFunction  string `envconfig:"GENDER_DETECTION_FUNCTION" default:"face-gender-detection"`
	EmotionDetectionFunction string `envconfig:"EMOTION_DETECTION_FUNCTION" default:"face-emotion-detection"`

	Server   ServerConfig
	Gateway  GatewayConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig `envconfig:"DB"`
	Image    ImageConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Port            string        `split_words:"true" default:"8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

// GatewayConfig - настройки шлюза с функциями инференса
type GatewayConfig struct {
	URL              string        `split_words:"true" default:"http://gateway.openfaas:8080"`
	Timeout          time.Duration `split_words:"true" default:"30s"`
	MaxResponseBytes int64         `split_words:"true" default:"67108864"`
}

// CacheConfig - выбор бэкенда и способа вычисления ключа
type CacheConfig struct {
	Backend   string `split_words:"true" default:"redis"`
	KeyHash   string `split_words:"true" default:"md5"`
	KeyPrefix string `split_words:"true" default:""`
}

// RedisConfig - настройки Redis. TTL в секундах, как в прежнем деплое.
type RedisConfig struct {
	Host     string `split_words:"true" default:"redis-master.openfaas.svc.cluster.local"`
	Port     int    `split_words:"true" default:"6379"`
	Password string `split_words:"true" default:""`
	DB       int    `split_words:"true" default:"0"`
	TTL      int    `split_words:"true" default:"300"`
}

// DatabaseConfig - настройки базы данных для истории анализов
type DatabaseConfig struct {
	Enabled     bool   `split_words:"true" default:"false"`
	Host        string `split_words:"true" default:"localhost"`
	Port        string `split_words:"true" default:"5432"`
	User        string `split_words:"true" default:"faceuser"`
	Password    string `split_words:"true" default:"facepass"`
	Name        string `split_words:"true" default:"facedb"`
	SSLMode     string `envconfig:"SSLMODE" default:"disable"`
	AutoMigrate bool   `split_words:"true" default:"true"`
}

// ImageConfig - параметры подготовки изображения для детекции
type ImageConfig struct {
	JPEGQuality int `split_words:"true" default:"95"`
	MaxPixels   int `split_words:"true" default:"1073741824"`
}

// Load загружает конфигурацию из переменных окружения
// с fallback на значения по умолчанию
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось прочитать конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("неизвестный CACHE_BACKEND %q", c.Cache.Backend)
	}
	switch c.Cache.KeyHash {
	case "md5", "sha256", "xxhash", "murmur3":
	default:
		return fmt.Errorf("неизвестный CACHE_KEY_HASH %q", c.Cache.KeyHash)
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("GATEWAY_URL не задан")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT должен быть положительным")
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("REDIS_TTL должен быть положительным")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY должен быть в диапазоне 1..100")
	}
	if c.Image.MaxPixels <= 0 {
		return fmt.Errorf("IMAGE_MAX_PIXELS должен быть положительным")
	}
	return nil
}

// IsProduction сообщает, запущены ли мы в production окружении
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr возвращает адрес Redis в формате host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Expiration возвращает время жизни записи кэша
func (c *RedisConfig) Expiration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetDSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Address возвращает адрес HTTP сервера
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

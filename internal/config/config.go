// Пакет config — загрузка и валидация конфигурации сервера prodstore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервера prodstore.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Объектное хранилище (S3-совместимое) ---

	// Endpoint хранилища (пусто — стандартный AWS)
	S3Endpoint string
	// Регион
	S3Region string
	// Бакет содержимого источников
	S3Bucket string
	// Статические учётные данные (пусто — стандартная цепочка AWS)
	S3AccessKeyID     string
	S3SecretAccessKey string
	// Path-style адресация (MinIO и совместимые)
	S3UsePathStyle bool
	// Срок действия подписанных ссылок
	PresignTTL time.Duration

	// --- JWT ---

	// URL JWKS endpoint провайдера идентичности
	JWTJWKSURL string
	// Issuer JWT
	JWTIssuer string
	// Claim с группами в JWT
	JWTGroupsClaim string

	// --- Мониторинг зависимостей ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PS_LOG_LEVEL: %w", err)
	}

	// PS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// PS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("PS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// PS_HTTP_READ_TIMEOUT / PS_HTTP_WRITE_TIMEOUT / PS_HTTP_IDLE_TIMEOUT
	cfg.HTTPReadTimeout, err = getEnvDuration("PS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("PS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("PS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// PS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PS_DB_PORT: %w", err)
	}

	// PS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PS_DB_USER")
	if err != nil {
		return nil, err
	}

	// PS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PS_DB_SSLMODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PS_DB_SSLMODE", "disable")
	switch cfg.DBSSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return nil, fmt.Errorf("PS_DB_SSLMODE: недопустимое значение %q", cfg.DBSSLMode)
	}

	// --- Объектное хранилище ---

	// PS_S3_ENDPOINT — endpoint хранилища (опционально)
	cfg.S3Endpoint = getEnvDefault("PS_S3_ENDPOINT", "")

	// PS_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("PS_S3_REGION", "us-east-1")

	// PS_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("PS_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// PS_S3_ACCESS_KEY_ID / PS_S3_SECRET_ACCESS_KEY — опциональные
	cfg.S3AccessKeyID = getEnvDefault("PS_S3_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = getEnvDefault("PS_S3_SECRET_ACCESS_KEY", "")
	if (cfg.S3AccessKeyID == "") != (cfg.S3SecretAccessKey == "") {
		return nil, fmt.Errorf("PS_S3_ACCESS_KEY_ID и PS_S3_SECRET_ACCESS_KEY задаются вместе")
	}

	// PS_S3_USE_PATH_STYLE — path-style адресация (по умолчанию false)
	cfg.S3UsePathStyle, err = getEnvBool("PS_S3_USE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("PS_S3_USE_PATH_STYLE: %w", err)
	}

	// PS_PRESIGN_TTL — срок действия подписанных ссылок (по умолчанию 15m)
	cfg.PresignTTL, err = getEnvDuration("PS_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PS_PRESIGN_TTL: %w", err)
	}

	// --- JWT ---

	// PS_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("PS_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// PS_JWT_ISSUER — issuer токенов (опционально)
	cfg.JWTIssuer = getEnvDefault("PS_JWT_ISSUER", "")

	// PS_JWT_GROUPS_CLAIM — claim с группами (по умолчанию groups)
	cfg.JWTGroupsClaim = getEnvDefault("PS_JWT_GROUPS_CLAIM", "groups")

	// --- Мониторинг зависимостей ---

	// PS_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 30s)
	cfg.DephealthCheckInterval, err = getEnvDuration("PS_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger создаёт slog.Logger согласно конфигурации.
func (c *Config) SetupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}

	var handler slog.Handler
	if c.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// getEnvRequired возвращает значение обязательной переменной окружения.
func getEnvRequired(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return value, nil
}

// getEnvDefault возвращает значение переменной окружения или значение
// по умолчанию.
func getEnvDefault(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

// getEnvInt разбирает целочисленную переменную окружения.
func getEnvInt(key string, def int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число %q", value)
	}
	return parsed, nil
}

// getEnvBool разбирает булеву переменную окружения.
func getEnvBool(key string, def bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение %q", value)
	}
	return parsed, nil
}

// getEnvDuration разбирает переменную окружения как time.Duration.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность %q", value)
	}
	return parsed, nil
}

// parseLogLevel разбирает уровень логирования.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень логирования %q", level)
	}
}

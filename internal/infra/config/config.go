// Пакет config отвечает за сбор и предоставление конфигурации всего сервиса
// мониторинга смен. Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения,
//  3. предоставляет потокобезопасный доступ к результату через R/W мьютекс.
//
// Бизнес-контекст: конфиг среды управляет подключением к Telegram API, путём
// к базе и файлам сессий, HTTP-адресом API-фасада и блеклист-чатом,
// засеиваемым при первом запуске.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env). Это
// «операционные» настройки запуска: учетные данные MTProto, пути к БД/логам/
// сессиям, сетевой адрес HTTP-фасада, глубина истории при бэкфилле.
//
// NB: значения уже проходят минимальную валидацию и нормализацию в loadConfig.
type EnvConfig struct {
	APIID             int
	APIHash           string
	BotToken          string
	Host              string
	Port              int
	DBPath            string
	LogPath           string
	LogLevel          string
	SessionPath       string
	BlacklistSession  string
	ParseHistoryDays  int
	BlacklistChat     string
}

// Config хранит конфигурацию среды.
//
// Потокобезопасность: публичные геттеры берут RLock.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultDBPath           = "data/workers.db"
	defaultLogPath          = "data/workerbot.log"
	defaultLogLevel         = "info"
	defaultSessionPath      = "data/parser_session.bbolt"
	defaultBlacklistSession = "data/blacklist_session.bbolt"
	defaultParseHistoryDays = 3
	defaultBlacklistChat    = "@Blacklist_pvz"
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load — точка входа для инициализации глобальной конфигурации сервиса.
// Повторный вызов запрещен, чтобы избежать гонок конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// loadConfig выполняет фактическую загрузку/валидацию без установки
// глобального состояния. Удобно для тестов.
func loadConfig(envPath string) (*Config, error) {
	// .env is optional: a missing file is not fatal, real env vars still apply.
	_ = godotenv.Load(envPath)

	apiID, err := parseRequiredInt("API_ID")
	if err != nil {
		return nil, err
	}

	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiHash == "" {
		return nil, errors.New("env API_HASH must be set")
	}

	var warnings []string

	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	host := sanitizeString("HOST", os.Getenv("HOST"), defaultHost, &warnings)
	port := parseIntDefault("PORT", defaultPort, validPort, &warnings)
	dbPath := sanitizeString("DB_PATH", os.Getenv("DB_PATH"), defaultDBPath, &warnings)
	logPath := sanitizeString("LOG_PATH", os.Getenv("LOG_PATH"), defaultLogPath, &warnings)
	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), &warnings)
	sessionPath := sanitizeString("SESSION_PATH", os.Getenv("SESSION_PATH"), defaultSessionPath, &warnings)
	blacklistSession := sanitizeString("BLACKLIST_SESSION_PATH", os.Getenv("BLACKLIST_SESSION_PATH"),
		defaultBlacklistSession, &warnings)
	parseDays := parseIntDefault("PARSE_HISTORY_DAYS", defaultParseHistoryDays, greaterThanZero, &warnings)
	blacklistChat := sanitizeString("BLACKLIST_CHAT", os.Getenv("BLACKLIST_CHAT"), defaultBlacklistChat, &warnings)

	env := EnvConfig{
		APIID:            apiID,
		APIHash:          apiHash,
		BotToken:         botToken,
		Host:             host,
		Port:             port,
		DBPath:           dbPath,
		LogPath:          logPath,
		LogLevel:         logLevel,
		SessionPath:      sessionPath,
		BlacklistSession: blacklistSession,
		ParseHistoryDays: parseDays,
		BlacklistChat:    blacklistChat,
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке
// .env (например, когда подставлено значение по умолчанию).
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton.
func Env() EnvConfig {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

func parseRequiredInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, fmt.Errorf("env %s must be set", name)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	return v, nil
}

func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func validPort(v int) bool       { return v > 0 && v < 65536 }

func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		appendWarningf(warnings, "env LOG_LEVEL is not set; using default %q", defaultLogLevel)
		return defaultLogLevel
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel)
		return defaultLogLevel
	}
}

func sanitizeString(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}

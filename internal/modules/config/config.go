package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatIDTelegramENV = "TELEGRAM_CHAT_ID"
)

// Config ...
type Config struct {
	// DB is the Postgres DSN. When empty the importer falls back to the
	// embedded sqlite store (single process, serialized matching).
	DB         string `yaml:"db_dsn"`
	SQLitePath string `yaml:"sqlite_path"`

	// Where to pick up CSV exports and where to move them afterwards.
	InputPath  string `yaml:"input_path"`
	ArchiveDir string `yaml:"archive_dir"`

	// Timezone is the zone naive CSV timestamps are read in before being
	// normalized to UTC. Empty means the timestamps are already UTC.
	Timezone   string `yaml:"timezone"`
	SourceName string `yaml:"source_name"`

	// Close-contention policy: extra lock-select attempts before a close is
	// recorded as an orphan, and the pause between them.
	CloseRetries      int `yaml:"close_retries"`
	CloseRetryBackoff time.Duration

	ContinueOnMalformed      bool `yaml:"continue_on_malformed"`
	OpenDedupIncludesOrphans bool `yaml:"open_dedup_includes_orphans"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

func NewConfig() (*Config, error) {
	config := Config{
		SQLitePath: getenvDefault("SQLITE_PATH", "trade_ledger.db"),
		InputPath:  getenvDefault("IMPORT_INPUT", "./inbox"),
		ArchiveDir: getenvDefault("IMPORT_ARCHIVE_DIR", ""),
		Timezone:   getenvDefault("IMPORT_TZ", ""),
		SourceName: getenvDefault("IMPORT_SOURCE", "blofin_order_history"),

		CloseRetries:      intFromEnv("CLOSE_RETRIES", 2),
		CloseRetryBackoff: durationFromEnv("CLOSE_RETRY_BACKOFF", "150ms"),

		ContinueOnMalformed: boolFromEnv("CONTINUE_ON_MALFORMED", true),
	}

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err == nil {
		defer func() {
			_ = file.Close()
		}()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			log.Fatalf("Failed to decode config file: %v", err)
		}
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	if chatID := os.Getenv(chatIDTelegramENV); chatID != "" {
		if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			config.Telegram.ChatID = n
		}
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}

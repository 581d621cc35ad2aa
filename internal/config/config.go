package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Dictionary modes.
const (
	DictionaryRemote = "remote"
	DictionaryLocal  = "local"
)

type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	DictionaryMode string
	DictionaryURL  string
	WordsFile      string
	LookupRetries  uint64
	LookupBackoff  time.Duration
	LookupTimeout  time.Duration

	MoveTimeout           time.Duration
	SweepInterval         time.Duration
	OpenMatchTTL          time.Duration
	FinishedMatchTTL      time.Duration
	EnforceWordCompletion bool

	JWTSecret      string
	JWTExpiresDays int
	RequireAuth    bool
	ClientOrigins  []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads .env (if present) and the environment.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBPath:   getEnv("DB_PATH", "./data/superghost.db"),

		DictionaryMode: getEnv("DICTIONARY_MODE", DictionaryRemote),
		DictionaryURL:  getEnv("DICTIONARY_URL", "https://api.dictionaryapi.dev"),
		WordsFile:      os.Getenv("WORDS_FILE"),
		LookupRetries:  uint64(getInt("LOOKUP_RETRIES", 3)),
		LookupBackoff:  getDuration("LOOKUP_BACKOFF", time.Second),
		LookupTimeout:  getDuration("LOOKUP_TIMEOUT", 5*time.Second),

		MoveTimeout:           getDuration("MOVE_TIMEOUT", 45*time.Second),
		SweepInterval:         getDuration("SWEEP_INTERVAL", 5*time.Second),
		OpenMatchTTL:          getDuration("OPEN_MATCH_TTL", 15*time.Minute),
		FinishedMatchTTL:      getDuration("FINISHED_MATCH_TTL", 10*time.Minute),
		EnforceWordCompletion: getBool("ENFORCE_WORD_COMPLETION", false),

		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: getInt("JWT_EXPIRES_DAYS", 14),
		RequireAuth:    getBool("REQUIRE_AUTH", false),
		ClientOrigins:  splitList(getEnv("CLIENT_ORIGINS", "*")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("db_path", cfg.DBPath).
		Str("dictionary_mode", cfg.DictionaryMode).
		Dur("move_timeout", cfg.MoveTimeout).
		Dur("sweep_interval", cfg.SweepInterval).
		Bool("require_auth", cfg.RequireAuth).
		Bool("redis", cfg.RedisAddr != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DictionaryMode != DictionaryRemote && c.DictionaryMode != DictionaryLocal {
		return errors.New("DICTIONARY_MODE must be remote or local")
	}
	if c.MoveTimeout <= 0 || c.SweepInterval <= 0 {
		return errors.New("MOVE_TIMEOUT and SWEEP_INTERVAL must be positive")
	}
	if c.RequireAuth && c.JWTSecret == "dev_secret_change_me" {
		return errors.New("JWT_SECRET is required when REQUIRE_AUTH is set")
	}
	return nil
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() zerolog.Level {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package config builds the server configuration from command-line flags.
// Flag defaults come from SPINWHEEL_* environment variables, which may be
// seeded from a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/kdashto/spinwheel/internal/eligibility"
	"github.com/kdashto/spinwheel/internal/wheel"
)

// Storage backends
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

const envPrefix = "SPINWHEEL_"

// Config holds everything main needs to start the server
type Config struct {
	Port          int
	DBPath        string
	Store         string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	LogLevel      string
	AccessCode    string
	JWTSecret     string
	CatalogPath   string
	BaseURL       string
	Cooldown      time.Duration
	ReducedMotion bool
	FrameRate     int
	NoKeyboard    bool
	NoAnimate     bool
	ShowVersion   bool
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:       8081,
		DBPath:     "spinwheel.db",
		Store:      StoreSQLite,
		RedisURL:   "redis://localhost:6379/0",
		KafkaTopic: "spin.completed",
		LogLevel:   "info",
		Cooldown:   eligibility.DefaultCooldown,
		FrameRate:  wheel.DefaultFrameRate,
	}
}

// LoadEnvFile seeds the process environment from path. Variables already
// set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse reads args into a Config. getenv supplies flag defaults; pass
// os.Getenv in production.
func Parse(name string, args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	env := envReader{getenv: getenv}
	def := Default()
	cfg := &Config{}

	fsFlags := flag.NewFlagSet(name, flag.ContinueOnError)
	fsFlags.SetOutput(usage)

	fsFlags.IntVar(&cfg.Port, "port", env.intVal("PORT", def.Port), "HTTP server port")
	fsFlags.StringVar(&cfg.DBPath, "db", env.strVal("DB", def.DBPath), "SQLite database path")
	fsFlags.StringVar(&cfg.Store, "store", env.strVal("STORE", def.Store), "Spin store: sqlite or redis")
	fsFlags.StringVar(&cfg.RedisURL, "redis", env.strVal("REDIS_URL", def.RedisURL), "Redis URL for -store redis")
	brokers := fsFlags.String("kafka", env.strVal("KAFKA_BROKERS", ""), "Comma-separated Kafka brokers for spin events (disabled if empty)")
	fsFlags.StringVar(&cfg.KafkaTopic, "kafkatopic", env.strVal("KAFKA_TOPIC", def.KafkaTopic), "Kafka topic for spin events")
	fsFlags.StringVar(&cfg.LogLevel, "loglevel", env.strVal("LOG_LEVEL", def.LogLevel), "Log level (debug, info, warn, error)")
	fsFlags.StringVar(&cfg.AccessCode, "code", env.strVal("ACCESS_CODE", ""), "Sign-in access code (auto-generated if not set)")
	fsFlags.StringVar(&cfg.JWTSecret, "jwtsecret", env.strVal("JWT_SECRET", ""), "HS256 secret for bearer tokens (disabled if empty)")
	fsFlags.StringVar(&cfg.CatalogPath, "catalog", env.strVal("CATALOG", ""), "JSON reward catalog (built-in wheel if empty)")
	fsFlags.StringVar(&cfg.BaseURL, "baseurl", env.strVal("BASE_URL", ""), "Public base URL for claim QR codes (LAN address if empty)")
	fsFlags.DurationVar(&cfg.Cooldown, "cooldown", env.durationVal("COOLDOWN", def.Cooldown), "Time between spins")
	fsFlags.BoolVar(&cfg.ReducedMotion, "reducedmotion", env.boolVal("REDUCED_MOTION", false), "Short, gentle spins")
	fsFlags.IntVar(&cfg.FrameRate, "fps", env.intVal("FPS", def.FrameRate), "Animation frames per second")
	fsFlags.BoolVar(&cfg.NoKeyboard, "nokeyboard", env.boolVal("NO_KEYBOARD", false), "Disable keyboard shortcuts")
	fsFlags.BoolVar(&cfg.NoAnimate, "noanimate", env.boolVal("NO_ANIMATE", false), "Show logo only, skip the startup animation")
	fsFlags.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}
	cfg.KafkaBrokers = splitList(*brokers)

	if err := env.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with
func (c *Config) Validate() error {
	var problems []string
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			problems = append(problems, "db path is required for the sqlite store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			problems = append(problems, "redis url is required for the redis store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store %q", c.Store))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		problems = append(problems, "kafka topic is required when brokers are set")
	}
	if !lo.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.LogLevel))
	}
	if c.Cooldown <= 0 {
		problems = append(problems, "cooldown must be positive")
	}
	if c.FrameRate < 1 || c.FrameRate > 240 {
		problems = append(problems, fmt.Sprintf("fps %d out of range 1-240", c.FrameRate))
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		problems = append(problems, "base url must start with http:// or https://")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

// envReader reads prefixed variables and collects the names of bad ones
type envReader struct {
	getenv func(string) string
	bad    []string
}

func (e *envReader) lookup(key string) string {
	if e.getenv == nil {
		return ""
	}
	return strings.TrimSpace(e.getenv(envPrefix + key))
}

func (e *envReader) strVal(key, def string) string {
	if v := e.lookup(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) intVal(key string, def int) int {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad = append(e.bad, envPrefix+key)
		return def
	}
	return n
}

func (e *envReader) boolVal(key string, def bool) bool {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.bad = append(e.bad, envPrefix+key)
		return def
	}
	return b
}

func (e *envReader) durationVal(key string, def time.Duration) time.Duration {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad = append(e.bad, envPrefix+key)
		return def
	}
	return d
}

func (e *envReader) err() error {
	if len(e.bad) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment values: %s", strings.Join(e.bad, ", "))
}

// FromOS loads .env and parses os.Args
func FromOS() (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	return Parse(os.Args[0], os.Args[1:], os.Getenv, os.Stderr)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FallbackPolicy selects what the verification pipeline does when the
// recognition engine cannot be reached.  There is deliberately no default.
type FallbackPolicy string

const (
	FallbackFailClosed FallbackPolicy = "fail-closed"
	FallbackSandbox    FallbackPolicy = "sandbox"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health server

	Env   string // "dev" | "prod"
	Store string // "sqlite" | "memory"

	// DB
	DBPath string // e.g. "./data/portunus.db"

	// Recognition engine
	EngineURL           string
	EngineTimeout       time.Duration
	EngineProbeInterval time.Duration

	Fallback          FallbackPolicy
	SandboxConfidence float64
	TemplateDimension int
	DefaultDeviceID   string

	// Subject cache; empty URL disables it.
	RedisURL        string
	SubjectCacheTTL time.Duration

	// Admin reads are unguarded when the secret is empty.
	AdminJWTSecret string
}

var (
	ErrMissingEngineURL = errors.New("PORTUNUS_ENGINE_URL is required")
	ErrMissingFallback  = errors.New("PORTUNUS_FALLBACK_POLICY is required (fail-closed | sandbox)")
	ErrSandboxInProd    = errors.New("sandbox fallback policy is not permitted when PORTUNUS_ENV=prod")
)

// Load reads configuration from the environment and validates it.  Unlike
// most settings, the fallback policy and engine address have no defaults.
func Load() (Config, error) {
	// No fail-soft here: prod gates the sandbox refusal and the dev seed.
	env := strings.ToLower(strings.TrimSpace(getenvDefault("PORTUNUS_ENV", "dev")))
	if env != "dev" && env != "prod" {
		return Config{}, fmt.Errorf("PORTUNUS_ENV: unsupported value %q (dev | prod)", os.Getenv("PORTUNUS_ENV"))
	}

	engineTimeoutMs, err := getenvStrictInt("PORTUNUS_ENGINE_TIMEOUT_MS", 5000)
	if err != nil {
		return Config{}, err
	}
	templateDim, err := getenvStrictInt("PORTUNUS_TEMPLATE_DIM", 128)
	if err != nil {
		return Config{}, err
	}

	storeKind := strings.ToLower(strings.TrimSpace(getenvDefault("PORTUNUS_STORE", "sqlite")))
	if storeKind != "sqlite" && storeKind != "memory" {
		return Config{}, fmt.Errorf("PORTUNUS_STORE: unsupported value %q", storeKind)
	}

	cfg := Config{
		HTTPAddr: getenvDefault("PORTUNUS_HTTP_ADDR", ":8080"),
		GRPCAddr: strings.TrimSpace(os.Getenv("PORTUNUS_GRPC_ADDR")),
		Env:      env,
		Store:    storeKind,
		DBPath:   getenvDefault("PORTUNUS_DB_PATH", "./data/portunus.db"),

		EngineURL:           strings.TrimRight(strings.TrimSpace(os.Getenv("PORTUNUS_ENGINE_URL")), "/"),
		EngineTimeout:       time.Duration(engineTimeoutMs) * time.Millisecond,
		EngineProbeInterval: time.Duration(getenvInt("PORTUNUS_ENGINE_PROBE_INTERVAL_S", 30)) * time.Second,

		SandboxConfidence: getenvFloat("PORTUNUS_SANDBOX_CONFIDENCE", 0.1),
		TemplateDimension: templateDim,
		DefaultDeviceID:   getenvDefault("PORTUNUS_DEVICE_ID", "terminal_01"),

		RedisURL:        strings.TrimSpace(os.Getenv("PORTUNUS_REDIS_URL")),
		SubjectCacheTTL: time.Duration(getenvInt("PORTUNUS_SUBJECT_CACHE_TTL_S", 300)) * time.Second,

		AdminJWTSecret: os.Getenv("PORTUNUS_ADMIN_JWT_SECRET"),
	}

	if cfg.EngineURL == "" {
		return Config{}, ErrMissingEngineURL
	}
	if cfg.EngineTimeout <= 0 {
		return Config{}, errors.New("PORTUNUS_ENGINE_TIMEOUT_MS must be positive")
	}
	if cfg.TemplateDimension <= 0 {
		return Config{}, errors.New("PORTUNUS_TEMPLATE_DIM must be positive")
	}
	if cfg.SandboxConfidence < 0 || cfg.SandboxConfidence > 1 {
		return Config{}, errors.New("PORTUNUS_SANDBOX_CONFIDENCE must be within [0,1]")
	}

	policy, err := ParseFallbackPolicy(os.Getenv("PORTUNUS_FALLBACK_POLICY"))
	if err != nil {
		return Config{}, err
	}
	if policy == FallbackSandbox && env == "prod" {
		return Config{}, ErrSandboxInProd
	}
	cfg.Fallback = policy

	return cfg, nil
}

// ParseFallbackPolicy accepts the two supported spellings and nothing else.
func ParseFallbackPolicy(v string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return "", ErrMissingFallback
	case string(FallbackFailClosed):
		return FallbackFailClosed, nil
	case string(FallbackSandbox):
		return FallbackSandbox, nil
	default:
		return "", fmt.Errorf("PORTUNUS_FALLBACK_POLICY: unsupported value %q", v)
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getenvStrictInt is getenvInt for settings where a typo must stop startup
// rather than silently fall back.
func getenvStrictInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, v)
	}
	return n, nil
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

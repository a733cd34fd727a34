package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type CartBackend string

const (
	BackendRedis  CartBackend = "redis"
	BackendFile   CartBackend = "file"
	BackendMemory CartBackend = "memory"
)

// Storefront configures cmd/storefront.
type Storefront struct {
	Port     string
	LogLevel string

	CatalogURL string // base URL of the catalog API, also used for orders

	CartBackend   CartBackend
	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration
	CartDir       string
	CartIdleTTL   time.Duration // open carts unused this long are closed

	JWTSecret string

	RequestTimeout      time.Duration
	UpstreamTimeout     time.Duration
	CheckoutConcurrency int
}

// CatalogAPI configures cmd/catalog-api.
type CatalogAPI struct {
	Port     string
	LogLevel string

	MongoURI    string
	MongoDBName string

	KafkaBrokers   []string
	AllowedOrigins []string

	JWTSecret      string
	RequestTimeout time.Duration
}

// LoadDotEnv reads .env files into the environment. Missing files are fine;
// variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadStorefront() (Storefront, error) {
	var errs []error
	cfg := Storefront{
		Port:          getEnv("STOREFRONT_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CatalogURL:    getEnv("CATALOG_API_URL", "http://localhost:5000"),
		CartBackend:   CartBackend(strings.ToLower(getEnv("CART_BACKEND", string(BackendRedis)))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CartTTL:       getDuration("CART_TTL", 7*24*time.Hour, &errs),
		CartDir:       getEnv("CART_DIR", "./data/carts"),
		CartIdleTTL:   getDuration("CART_IDLE_TTL", 30*time.Minute, &errs),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		RequestTimeout:      getDuration("REQUEST_TIMEOUT", 15*time.Second, &errs),
		UpstreamTimeout:     getDuration("UPSTREAM_TIMEOUT", 5*time.Second, &errs),
		CheckoutConcurrency: getInt("CHECKOUT_CONCURRENCY", 4, &errs),
	}

	switch cfg.CartBackend {
	case BackendRedis, BackendFile, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("CART_BACKEND must be redis, file or memory, got %q", cfg.CartBackend))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.CartIdleTTL <= 0 {
		errs = append(errs, errors.New("CART_IDLE_TTL must be positive"))
	}
	if cfg.CheckoutConcurrency < 1 {
		errs = append(errs, errors.New("CHECKOUT_CONCURRENCY must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return Storefront{}, err
	}
	return cfg, nil
}

func LoadCatalogAPI() (CatalogAPI, error) {
	var errs []error
	cfg := CatalogAPI{
		Port:           getEnv("CATALOG_API_PORT", "5000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		KafkaBrokers:   getList("KAFKA_BROKERS"),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second, &errs),
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return CatalogAPI{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

// getList splits a comma separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port   string
	AppEnv string

	JWTSecret []byte

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CartAPIURL    string
	OrderAPIURL   string
	ReviewAPIURL  string
	PaymentAPIURL string
	FrontendURL   string

	SelectionTTL time.Duration
	HTTPTimeout  time.Duration

	CORSOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env if present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	port := getenv("PORT", ":8080")
	if port[0] != ':' {
		port = ":" + port
	}

	return Config{
		Port:           port,
		AppEnv:         getenv("APP_ENV", "production"),
		JWTSecret:      []byte(getenv("JWT_SECRET", "change-me")),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "storefront"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getint("REDIS_DB", 0),
		CartAPIURL:     trimSlash(getenv("CART_API_URL", "http://localhost:5000/api")),
		OrderAPIURL:    trimSlash(getenv("ORDER_API_URL", "http://localhost:5000/api")),
		ReviewAPIURL:   trimSlash(getenv("REVIEW_API_URL", "http://localhost:5000/api")),
		PaymentAPIURL:  trimSlash(getenv("PAYMENT_API_URL", "http://localhost:5000/api/payments")),
		FrontendURL:    trimSlash(getenv("FRONTEND_URL", "http://localhost:3000")),
		SelectionTTL:   getduration("SELECTION_TTL", 7*24*time.Hour),
		HTTPTimeout:    getduration("HTTP_TIMEOUT", 10*time.Second),
		CORSOrigins:    getlist("CORS_ORIGINS", []string{"*"}),
		RateLimitRPS:   getfloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getint("RATE_LIMIT_BURST", 10),
	}
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// CancelURL is where the browser is sent when payment creation fails.
func (c Config) CancelURL() string {
	return c.FrontendURL + "/checkout/cancel"
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getduration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getlist(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}

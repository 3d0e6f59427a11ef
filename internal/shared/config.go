package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver  string // supabase|mysql
	MySQLDSN     string
	SupabaseURL  string
	SupabaseKey  string
	ImageBucket  string
	MaxUploadMB  int
	CORSOrigins  []string
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	CacheTTL     time.Duration
	SessionTTL   time.Duration
	// EnrichPolicy decides what ListCafes does with a café whose live lookup
	// failed: "fallback" (default) serves the stored row flagged stale, "drop"
	// omits it as the directory originally did.
	EnrichPolicy string

	MapboxToken       string
	MapboxBase        string
	MapboxRPS         int
	MapboxMaxAttempts int
	// MapboxTimeout is the per-request provider timeout; 0 leaves calls unbounded
	// apart from the caller's context.
	MapboxTimeout     time.Duration
	MatrixProfile     string
	SearchDebounce    time.Duration
	MapCenterLng      float64
	MapCenterLat      float64
	MapZoom           float64
	MapStyle          string

	RefreshWorkers int
	RefreshTimeout time.Duration
}

// Load reads the environment, after a .env file in the working directory when one exists.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		StoreDriver:  strings.ToLower(env("STORE_DRIVER", "supabase")),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/caffio?parseTime=true&charset=utf8mb4&loc=UTC"),
		SupabaseURL:  env("SUPABASE_URL", ""),
		SupabaseKey:  env("SUPABASE_SERVICE_KEY", ""),
		ImageBucket:  env("IMAGE_BUCKET", "cafe-images"),
		MaxUploadMB:  atoi("MAX_UPLOAD_MB", 10),
		CORSOrigins:  splitList(env("CORS_ORIGINS", "*")),
		RedisAddr:    env("REDIS_ADDR", ""),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		CacheTTL:     time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		SessionTTL:   time.Duration(atoi("SESSION_TTL_SECONDS", 600)) * time.Second,
		EnrichPolicy: strings.ToLower(env("LIST_ENRICH_POLICY", "fallback")),

		MapboxToken:       env("MAPBOX_TOKEN", ""),
		MapboxBase:        env("MAPBOX_BASE_URL", "https://api.mapbox.com"),
		MapboxRPS:         atoi("MAPBOX_RPS", 10),
		MapboxMaxAttempts: atoi("MAPBOX_MAX_ATTEMPTS", 1),
		MapboxTimeout:     time.Duration(atoi("MAPBOX_TIMEOUT_SECONDS", 0)) * time.Second,
		MatrixProfile:     env("MATRIX_PROFILE", "walking"),
		SearchDebounce:    time.Duration(atoi("SEARCH_DEBOUNCE_MS", 500)) * time.Millisecond,
		MapCenterLng:      atof("MAP_CENTER_LNG", -79.4512),
		MapCenterLat:      atof("MAP_CENTER_LAT", 43.6568),
		MapZoom:           atof("MAP_ZOOM", 13),
		MapStyle:          env("MAP_STYLE", "mapbox://styles/mapbox/streets-v12"),

		RefreshWorkers: atoi("REFRESH_WORKERS", 4),
		RefreshTimeout: time.Duration(atoi("REFRESH_TIMEOUT_SECONDS", 300)) * time.Second,
	}
	if c.MapboxToken == "" {
		log.Warn().Msg("MAPBOX_TOKEN is empty")
	}
	if c.EnrichPolicy != "fallback" && c.EnrichPolicy != "drop" {
		log.Warn().Str("policy", c.EnrichPolicy).Msg("unknown LIST_ENRICH_POLICY, using fallback")
		c.EnrichPolicy = "fallback"
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port string

	// CORS. Comma-separated origins, "*" allows everything. Loaded once at
	// startup and never mutated afterwards.
	AllowedOrigins []string

	// Limits
	MaxPDFBytes       int64
	MaxOverlayBytes   int64
	MaxMultipartBytes int64

	// Concurrency
	MaxConcurrentRequests int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	ExportTimeout time.Duration
	ThumbsTimeout time.Duration
	PageTimeout   time.Duration

	// Rendering
	ThumbScale      float64 // default scale for thumbnails (1.0 = 72 DPI)
	PreviewScale    float64 // default scale for single-page previews
	PDFToPPMTimeout time.Duration
	PDFInfoTimeout  time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int
}

func Load() Config {
	return Config{
		Port: envStr("PORT", "8000"),

		AllowedOrigins: parseOrigins(envStr("FRONTEND_ORIGINS", "*")),

		MaxPDFBytes:       int64(envInt("MAX_PDF_BYTES", int(100<<20))),
		MaxOverlayBytes:   int64(envInt("MAX_OVERLAY_BYTES", int(20<<20))),
		MaxMultipartBytes: int64(envInt("MAX_MULTIPART_BYTES", int(256<<20))),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		ExportTimeout: envDur("EXPORT_TIMEOUT", 120*time.Second),
		ThumbsTimeout: envDur("THUMBS_TIMEOUT", 60*time.Second),
		PageTimeout:   envDur("PAGE_TIMEOUT", 30*time.Second),

		ThumbScale:      envFloat("THUMB_SCALE", 0.3),
		PreviewScale:    envFloat("PREVIEW_SCALE", 1.5),
		PDFToPPMTimeout: envDur("PDFTOPPM_TIMEOUT", 30*time.Second),
		PDFInfoTimeout:  envDur("PDFINFO_TIMEOUT", 5*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),
	}
}

func (c Config) Validate() error {
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("FRONTEND_ORIGINS resolved to an empty origin list")
	}
	if c.MaxPDFBytes <= 0 || c.MaxOverlayBytes <= 0 {
		return fmt.Errorf("upload size limits must be positive")
	}
	return nil
}

// AllowsOrigin reports whether the given Origin header value is permitted.
func (c Config) AllowsOrigin(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// AllowsAnyOrigin reports whether the wildcard origin is configured.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func parseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

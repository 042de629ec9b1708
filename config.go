package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// appConfig is the externally supplied configuration surface. Everything is
// read from the environment once at startup; business logic never touches
// os.Getenv directly.
type appConfig struct {
	Addr              string
	Lang              string
	PoolSize          int
	Timeout           time.Duration
	MinItemConfidence float64
	PreprocessDefault bool
	AutoPreprocess    bool
	MaxUploadBytes    int64
	MIMEAllowlist     []string
}

func loadConfig() appConfig {
	cfg := appConfig{
		Addr:              envStr("ADDR", ":8081"),
		Lang:              envStr("OCR_LANG", "eng"),
		PoolSize:          envInt("OCR_POOL_SIZE", 2),
		Timeout:           time.Duration(envInt("OCR_TIMEOUT_SECONDS", 30)) * time.Second,
		MinItemConfidence: envFloat("OCR_MIN_ITEM_CONFIDENCE", 0.2),
		PreprocessDefault: envBool("PREPROCESS_DEFAULT", false),
		AutoPreprocess:    envBool("PREPROCESS_AUTO", true),
		MaxUploadBytes:    int64(envInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
	}
	// Only formats the decoder stack registers; advertising more would
	// accept uploads the pipeline then rejects as unreadable.
	allow := envStr("UPLOAD_MIME_ALLOWLIST", "image/jpeg,image/png")
	for _, m := range strings.Split(allow, ",") {
		if m = strings.TrimSpace(m); m != "" {
			cfg.MIMEAllowlist = append(cfg.MIMEAllowlist, m)
		}
	}
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %g", key, v, def)
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

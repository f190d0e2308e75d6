package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed matching.yaml
var matchingYAML []byte

type Config struct {
	Database  DatabaseConfig
	Records   RecordsConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Matching  MatchingConfig
	Web       WebConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// RecordsConfig points at the criminal records database that owns identities.
// When URL is empty identities are read from the PostgreSQL database instead.
type RecordsConfig struct {
	URL string // MariaDB DSN (e.g., records:records@tcp(mariadb:3306)/records)
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Version string        // embedding model tag stored with every face, defaults to tracenet_v1
	Timeout time.Duration // per-request timeout, defaults to 30s
}

type StorageConfig struct {
	UploadsDir string // root directory for enrolled face images, defaults to ./uploads/faces
}

type MatchingConfig struct {
	Threshold       float64           `yaml:"threshold"`
	AmbiguityMargin float64           `yaml:"ambiguity_margin"`
	TopK            int               `yaml:"top_k"`
	MinFaceSize     int               `yaml:"min_face_size"`
	SingleFaceOnly  bool              `yaml:"single_face_only"`
	Calibration     CalibrationConfig `yaml:"calibration"`
}

type CalibrationConfig struct {
	Version  string  `yaml:"version"`
	Slope    float64 `yaml:"slope"`
	Midpoint float64 `yaml:"midpoint"`
}

// WebConfig controls which browser origins may call the API.
type WebConfig struct {
	AllowedOrigins []string // WEB_ALLOWED_ORIGINS, comma-separated
	AllowLocalhost bool     // WEB_ALLOW_LOCALHOST, admit http(s)://localhost on any port
}

type LogConfig struct {
	Level  string // debug, info, warn, error (default info)
	Format string // text or json (default text)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean ("1", "true", "false", ...).
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("30s", "2m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultMatching returns the matching defaults embedded in matching.yaml.
func DefaultMatching() MatchingConfig {
	var m MatchingConfig
	if err := yaml.Unmarshal(matchingYAML, &m); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded matching.yaml: " + err.Error())
	}
	return m
}

func Load() *Config {
	m := DefaultMatching()

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Records: RecordsConfig{
			URL: os.Getenv("RECORDS_DATABASE_URL"),
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:8000"),
			Version: envString("EMBEDDING_VERSION", "tracenet_v1"),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			UploadsDir: envString("UPLOADS_DIR", "./uploads/faces"),
		},
		Matching: MatchingConfig{
			Threshold:       envFloat("MATCH_THRESHOLD", m.Threshold),
			AmbiguityMargin: envFloat("MATCH_AMBIGUITY_MARGIN", m.AmbiguityMargin),
			TopK:            envInt("MATCH_TOP_K", m.TopK),
			MinFaceSize:     envInt("MATCH_MIN_FACE_SIZE", m.MinFaceSize),
			SingleFaceOnly:  envBool("MATCH_SINGLE_FACE_ONLY", m.SingleFaceOnly),
			Calibration: CalibrationConfig{
				Version:  m.Calibration.Version,
				Slope:    envFloat("MATCH_CALIBRATION_SLOPE", m.Calibration.Slope),
				Midpoint: envFloat("MATCH_CALIBRATION_MIDPOINT", m.Calibration.Midpoint),
			},
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			AllowLocalhost: envBool("WEB_ALLOW_LOCALHOST", false),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}
}

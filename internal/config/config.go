// Package config reads runtime settings from the environment, picking up
// a .env file when one is present, and loads the query watchlist from a
// YAML file. Everything has a default so the tool runs out of the box in
// sample mode.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	EbayAppID    string
	EbayGlobalID string

	FirebaseProject string
	CredentialsFile string
	CredentialsJSON []byte
	DatabaseURL     string
	DataDir         string

	QueriesFile    string
	EnvQueries     []string
	MaxPages       int
	EntriesPerPage int
	Budget         int
	Cooldown       time.Duration
	Politeness     time.Duration
	LookbackDays   int
	CacheTTL       time.Duration
	Schedule       string
	ReadLimit      int
}

func Load() *Config {
	_ = godotenv.Load()

	file, raw := firebaseCredentials()
	return &Config{
		EbayAppID:    os.Getenv("EBAY_APP_ID"),
		EbayGlobalID: getEnv("EBAY_GLOBAL_ID", "EBAY-US"),

		FirebaseProject: os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: file,
		CredentialsJSON: raw,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataDir:         getEnv("FLIPWATCH_DATA_DIR", "data"),

		QueriesFile:    getEnv("FLIPWATCH_QUERIES_FILE", "queries.yaml"),
		EnvQueries:     splitList(os.Getenv("FLIPWATCH_QUERIES")),
		MaxPages:       getEnvInt("FLIPWATCH_MAX_PAGES", 5),
		EntriesPerPage: getEnvInt("FLIPWATCH_ENTRIES", 100),
		Budget:         getEnvInt("FLIPWATCH_BUDGET", 25),
		Cooldown:       getEnvDuration("FLIPWATCH_COOLDOWN", time.Minute),
		Politeness:     getEnvDuration("FLIPWATCH_POLITENESS", 500*time.Millisecond),
		LookbackDays:   getEnvInt("FLIPWATCH_LOOKBACK_DAYS", 90),
		CacheTTL:       getEnvDuration("FLIPWATCH_CACHE_TTL", 5*time.Minute),
		Schedule:       getEnv("FLIPWATCH_SCHEDULE", "0 */6 * * *"),
		ReadLimit:      getEnvInt("FLIPWATCH_READ_LIMIT", 2000),
	}
}

// Queries resolves the search watchlist: FLIPWATCH_QUERIES when set,
// otherwise the YAML watchlist file.
func (c *Config) Queries() ([]string, error) {
	if len(c.EnvQueries) > 0 {
		return c.EnvQueries, nil
	}
	queries, err := ReadWatchlist(c.QueriesFile)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries configured: set FLIPWATCH_QUERIES or add them to %s", c.QueriesFile)
	}
	return queries, nil
}

// ReadWatchlist loads queries from a YAML watchlist file. A missing file
// is not an error, just an empty list. Entries are trimmed and
// deduplicated case-insensitively, first spelling wins.
func ReadWatchlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var wl struct {
		Queries []string `yaml:"queries"`
	}
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parsing watchlist %s: %w", path, err)
	}

	var queries []string
	seen := make(map[string]struct{})
	for _, q := range wl.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}
	return queries, nil
}

// Credential resolution order: an explicit file path wins, then inline
// JSON, then base64-encoded JSON for environments that mangle quoting.
func firebaseCredentials() (file string, raw []byte) {
	if f := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); f != "" {
		return f, nil
	}
	if j := os.Getenv("FIREBASE_CREDENTIALS_JSON"); j != "" {
		return "", repairJSON(j)
	}
	if b := os.Getenv("FIREBASE_CREDENTIALS_B64"); b != "" {
		if dec, err := base64.StdEncoding.DecodeString(b); err == nil {
			return "", dec
		}
	}
	return "", nil
}

// repairJSON handles service-account JSON whose private-key newlines got
// unescaped by shell or .env quoting. Valid input passes through as is.
func repairJSON(s string) []byte {
	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	fixed := strings.ReplaceAll(s, "\n", "\\n")
	if json.Valid([]byte(fixed)) {
		return []byte(fixed)
	}
	return []byte(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

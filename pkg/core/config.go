package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/agentmem/memcore-go/pkg/store"
)

// Config contains the complete configuration for a memcore client.
//
// It includes settings for:
//   - Store backend (provider selection and per-namespace capacities)
//   - Ranking (component weights and recency decay half-life)
//
// Example:
//
//	config := &core.Config{
//	    Store: core.StoreConfig{
//	        Provider: "kv",
//	        Capacities: map[string]int{
//	            "working": 10,
//	        },
//	    },
//	    Ranking: core.RankingConfig{
//	        RecencyWeight:    0.3,
//	        FrequencyWeight:  0.2,
//	        ImportanceWeight: 0.3,
//	        RelevanceWeight:  0.2,
//	        DecayDays:        7,
//	    },
//	}
type Config struct {
	// Store contains store backend configuration.
	Store StoreConfig `json:"store"`

	// Ranking contains ranker configuration.
	Ranking RankingConfig `json:"ranking"`
}

// StoreConfig contains configuration for the store backend.
//
// Supported providers: list, kv, sqlite
type StoreConfig struct {
	// Provider is the store backend name (list, kv, sqlite).
	Provider string `json:"provider"`

	// SQLiteDSN is the SQLite data source name (sqlite provider only).
	// Empty uses the default in-memory DSN.
	SQLiteDSN string `json:"sqlite_dsn,omitempty"`

	// Capacities overrides per-namespace entry limits. Namespaces left
	// out keep their defaults.
	Capacities map[string]int `json:"capacities,omitempty"`
}

// RankingConfig contains configuration for the memory ranker.
//
// Raw weights are normalized to sum to 1.0 at ranker construction, so
// any positive values work.
type RankingConfig struct {
	// RecencyWeight is the raw weight of the recency component.
	RecencyWeight float64 `json:"recency_weight"`

	// FrequencyWeight is the raw weight of the frequency component.
	FrequencyWeight float64 `json:"frequency_weight"`

	// ImportanceWeight is the raw weight of the importance component.
	ImportanceWeight float64 `json:"importance_weight"`

	// RelevanceWeight is the raw weight of the relevance component.
	RelevanceWeight float64 `json:"relevance_weight"`

	// DecayDays is the half-life of the recency decay, in days.
	// Default: 7.
	DecayDays float64 `json:"decay_days"`
}

// DefaultConfig returns a configuration with the list backend, default
// capacities, and default ranking weights.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Provider: "list",
		},
		Ranking: RankingConfig{
			RecencyWeight:    0.3,
			FrequencyWeight:  0.2,
			ImportanceWeight: 0.3,
			RelevanceWeight:  0.2,
			DecayDays:        7,
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - MEMCORE_PROVIDER (list, kv, sqlite)
//   - MEMCORE_SQLITE_DSN
//   - MEMCORE_CAP_EPISODIC, MEMCORE_CAP_SEMANTIC, MEMCORE_CAP_PREFERENCES,
//     MEMCORE_CAP_TOOL_TRACES, MEMCORE_CAP_SKILLS, MEMCORE_CAP_WORKING
//   - MEMCORE_RECENCY_WEIGHT, MEMCORE_FREQUENCY_WEIGHT,
//     MEMCORE_IMPORTANCE_WEIGHT, MEMCORE_RELEVANCE_WEIGHT
//   - MEMCORE_DECAY_DAYS
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := DefaultConfig()
	config.Store.Provider = getEnvOrDefault("MEMCORE_PROVIDER", "list")
	config.Store.SQLiteDSN = os.Getenv("MEMCORE_SQLITE_DSN")

	capacities := map[string]int{}
	for _, ns := range store.Namespaces() {
		envKey := "MEMCORE_CAP_" + envSuffix(string(ns))
		if raw := os.Getenv(envKey); raw != "" {
			if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
				capacities[string(ns)] = limit
			}
		}
	}
	if len(capacities) > 0 {
		config.Store.Capacities = capacities
	}

	config.Ranking.RecencyWeight = getFloatEnv("MEMCORE_RECENCY_WEIGHT", config.Ranking.RecencyWeight)
	config.Ranking.FrequencyWeight = getFloatEnv("MEMCORE_FREQUENCY_WEIGHT", config.Ranking.FrequencyWeight)
	config.Ranking.ImportanceWeight = getFloatEnv("MEMCORE_IMPORTANCE_WEIGHT", config.Ranking.ImportanceWeight)
	config.Ranking.RelevanceWeight = getFloatEnv("MEMCORE_RELEVANCE_WEIGHT", config.Ranking.RelevanceWeight)
	config.Ranking.DecayDays = getFloatEnv("MEMCORE_DECAY_DAYS", config.Ranking.DecayDays)

	return config, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - The store provider is one of list, kv, sqlite
//   - Capacity overrides name valid namespaces with positive limits
//   - Ranking weights are non-negative with a positive sum
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case "list", "kv", "sqlite":
	case "":
		return NewMemoryError("Validate", ErrInvalidConfig)
	default:
		return NewMemoryError("Validate", ErrUnknownProvider)
	}

	for ns, limit := range c.Store.Capacities {
		if _, err := store.ParseNamespace(ns); err != nil {
			return NewMemoryError("Validate", err)
		}
		if limit <= 0 {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
	}

	r := c.Ranking
	if r.RecencyWeight < 0 || r.FrequencyWeight < 0 ||
		r.ImportanceWeight < 0 || r.RelevanceWeight < 0 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if r.RecencyWeight+r.FrequencyWeight+r.ImportanceWeight+r.RelevanceWeight <= 0 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	return nil
}

// capacities converts the string-keyed capacity overrides into the
// store's typed form, on top of the defaults.
func (c *Config) capacities() store.Capacities {
	caps := store.DefaultCapacities()
	for ns, limit := range c.Store.Capacities {
		caps[store.Namespace(ns)] = limit
	}
	return caps
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getFloatEnv parses a float environment variable, keeping the default
// on absence or parse failure.
func getFloatEnv(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// envSuffix converts a namespace name into its environment variable
// suffix (tool_traces -> TOOL_TRACES).
func envSuffix(ns string) string {
	out := make([]rune, 0, len(ns))
	for _, r := range ns {
		if r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

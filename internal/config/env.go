package config

import (
	"os"
	"strconv"
	"strings"
)

// LoadEnv loads environment variables from a .env file in the current or a
// parent directory. Existing variables are never overwritten.
func LoadEnv() error {
	envPaths := []string{".env", "../.env", "../../.env"}

	for _, envPath := range envPaths {
		data, err := os.ReadFile(envPath)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
		break
	}
	return nil
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets float environment variable with default
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// Engine holds the tunable knobs of a resolution run, read from the
// environment with the documented defaults.
type Engine struct {
	// FuzzyThreshold is the tier-2 acceptance threshold. Kept independent
	// of alias confidences, which are hand-assigned per match pattern and
	// not on the same scale.
	FuzzyThreshold float64
	// ReviewThreshold gates the merge-candidate scan.
	ReviewThreshold float64
	// SpouseConfidence is the weight recorded on inferred spouse pairs.
	SpouseConfidence float64
	// LastNameWidth and ZipWidth size the blocking key.
	LastNameWidth int
	ZipWidth      int
	// Workers bounds parallel block resolution.
	Workers int
	// IDStrategy selects "random" or "hash" identity ids.
	IDStrategy string
	// RequireCounty enables the committee-variant county agreement check.
	RequireCounty bool
}

// LoadEngine reads the engine configuration from the environment.
func LoadEngine() Engine {
	return Engine{
		FuzzyThreshold:   GetEnvFloat("FUZZY_THRESHOLD", 0.88),
		ReviewThreshold:  GetEnvFloat("REVIEW_THRESHOLD", 0.85),
		SpouseConfidence: GetEnvFloat("SPOUSE_CONFIDENCE", 0.95),
		LastNameWidth:    GetEnvInt("BLOCK_LASTNAME_WIDTH", 5),
		ZipWidth:         GetEnvInt("BLOCK_ZIP_WIDTH", 3),
		Workers:          GetEnvInt("RESOLVE_WORKERS", 4),
		IDStrategy:       GetEnv("ID_STRATEGY", "random"),
		RequireCounty:    GetEnvBool("REQUIRE_COUNTY_MATCH", false),
	}
}

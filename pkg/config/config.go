// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
)

// Config carries every tunable of the evaluation engine. Values come from
// the environment with defaults matching the reference deployment; an
// optional YAML rules file can override the detection vocabulary.
type Config struct {
	// Completeness thresholds
	CompletenessThreshold float64
	CompletenessCritical  float64

	// PII risk
	PIIRiskThreshold float64
	PIIRiskBands     []RiskBand
	PIIEntityWeights map[string]float64

	// ML readiness
	MLMinSamples         int
	MLMinFeatures        int
	MLViabilityThreshold float64
	MLImbalanceThreshold float64

	// Geospatial
	GeoMinCoverage float64
	GeoMinPoints   int

	// Semantic validation
	AgeMin           int
	AgeMax           int
	MethodVocabulary []string

	// Fields whose absence undermines the dataset
	CriticalFieldKeywords []string

	// Orchestration
	Workers         int
	AnalyzerTimeout time.Duration

	// Column role detection
	Rules []columns.Rule

	// Optional database connections (sources and run store)
	Postgres  *PostgresConfig
	Snowflake *SnowflakeConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultMethodVocabulary is the standard method nomenclature expected in
// surveillance registries.
func DefaultMethodVocabulary() []string {
	return []string{
		"ahorcamiento",
		"arma de fuego",
		"intoxicacion",
		"precipitacion",
		"arma blanca",
		"otro",
	}
}

// RiskBand maps a PII risk level to its half-open score interval [Min, Max)
type RiskBand struct {
	Level string  `yaml:"level"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// DefaultPIIRiskBands returns the standard risk level boundaries
func DefaultPIIRiskBands() []RiskBand {
	return []RiskBand{
		{Level: "bajo", Min: 0, Max: 3},
		{Level: "moderado", Min: 3, Max: 5},
		{Level: "alto", Min: 5, Max: 7},
		{Level: "critico", Min: 7, Max: 10},
	}
}

// DefaultPIIEntityWeights returns the per-entity risk contribution weights
func DefaultPIIEntityWeights() map[string]float64 {
	return map[string]float64{
		"PERSON":        3.0,
		"EMAIL_ADDRESS": 2.0,
		"PHONE_NUMBER":  1.5,
		"LOCATION":      2.5,
		"ID_NUMBER":     3.0,
		"IBAN_CODE":     2.5,
		"CREDIT_CARD":   3.0,
	}
}

// DefaultCriticalFieldKeywords returns the keyword list identifying columns
// whose absence materially undermines the dataset.
func DefaultCriticalFieldKeywords() []string {
	return []string{
		"fecha", "edad", "sexo", "genero", "metodo", "municipio",
		"localidad", "tipo", "intento", "consumado", "fallec",
	}
}

// LoadConfig loads configuration from the environment. A .env file is read
// when present; missing is not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CompletenessThreshold: getEnvAsFloat("COMPLETENESS_THRESHOLD", 0.85),
		CompletenessCritical:  getEnvAsFloat("COMPLETENESS_CRITICAL_THRESHOLD", 0.70),
		PIIRiskThreshold:      getEnvAsFloat("PII_RISK_THRESHOLD", 5.0),
		PIIRiskBands:          DefaultPIIRiskBands(),
		PIIEntityWeights:      DefaultPIIEntityWeights(),
		MLMinSamples:          getEnvAsInt("ML_MIN_SAMPLES", 100),
		MLMinFeatures:         getEnvAsInt("ML_MIN_FEATURES", 5),
		MLViabilityThreshold:  getEnvAsFloat("ML_VIABILITY_THRESHOLD", 0.65),
		MLImbalanceThreshold:  getEnvAsFloat("ML_IMBALANCE_THRESHOLD", 0.20),
		GeoMinCoverage:        getEnvAsFloat("GEOSPATIAL_MIN_COVERAGE", 0.70),
		GeoMinPoints:          getEnvAsInt("GEOSPATIAL_MIN_POINTS", 50),
		AgeMin:                getEnvAsInt("SEMANTIC_AGE_MIN", 0),
		AgeMax:                getEnvAsInt("SEMANTIC_AGE_MAX", 120),
		MethodVocabulary:      DefaultMethodVocabulary(),
		CriticalFieldKeywords: DefaultCriticalFieldKeywords(),
		Workers:               getEnvAsInt("MAX_WORKERS", 6),
		AnalyzerTimeout:       time.Duration(getEnvAsInt("ANALYZER_TIMEOUT_SECONDS", 300)) * time.Second,
		Rules:                 columns.DefaultRules(),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	if path := getEnv("RULES_FILE", ""); path != "" {
		if err := cfg.ApplyRulesFile(path); err != nil {
			return nil, err
		}
	}

	// Database configs are optional; loaded only when their env is present.
	if os.Getenv("POSTGRES_USER") != "" {
		pgCfg, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgCfg
	}
	if os.Getenv("SNOWFLAKE_USER") != "" {
		snowCfg, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowCfg
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the
// environment. Useful for library callers and tests.
func Default() *Config {
	return &Config{
		CompletenessThreshold: 0.85,
		CompletenessCritical:  0.70,
		PIIRiskThreshold:      5.0,
		PIIRiskBands:          DefaultPIIRiskBands(),
		PIIEntityWeights:      DefaultPIIEntityWeights(),
		MLMinSamples:          100,
		MLMinFeatures:         5,
		MLViabilityThreshold:  0.65,
		MLImbalanceThreshold:  0.20,
		GeoMinCoverage:        0.70,
		GeoMinPoints:          50,
		AgeMin:                0,
		AgeMax:                120,
		MethodVocabulary:      DefaultMethodVocabulary(),
		CriticalFieldKeywords: DefaultCriticalFieldKeywords(),
		Workers:               6,
		AnalyzerTimeout:       300 * time.Second,
		Rules:                 columns.DefaultRules(),
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// Validate ensures the configuration is internally consistent
func (c *Config) Validate() error {
	if c.CompletenessThreshold < 0 || c.CompletenessThreshold > 1 {
		return errors.New("completeness threshold must be in [0, 1]")
	}
	if c.CompletenessCritical < 0 || c.CompletenessCritical > c.CompletenessThreshold {
		return errors.New("critical completeness threshold must be in [0, threshold]")
	}
	if c.PIIRiskThreshold < 0 || c.PIIRiskThreshold > 10 {
		return errors.New("PII risk threshold must be in [0, 10]")
	}
	if c.AgeMin < 0 || c.AgeMax <= c.AgeMin {
		return errors.New("age bounds must satisfy 0 <= min < max")
	}
	if c.Workers <= 0 {
		return errors.New("worker count must be positive")
	}
	if c.AnalyzerTimeout <= 0 {
		return errors.New("analyzer timeout must be positive")
	}
	if len(c.MethodVocabulary) == 0 {
		return errors.New("method vocabulary cannot be empty")
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

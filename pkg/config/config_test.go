package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.85, cfg.CompletenessThreshold, 1e-9)
	assert.InDelta(t, 0.70, cfg.CompletenessCritical, 1e-9)
	assert.InDelta(t, 5.0, cfg.PIIRiskThreshold, 1e-9)
	assert.Equal(t, 100, cfg.MLMinSamples)
	assert.Equal(t, 5, cfg.MLMinFeatures)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 300*time.Second, cfg.AnalyzerTimeout)
	assert.Equal(t, 0, cfg.AgeMin)
	assert.Equal(t, 120, cfg.AgeMax)
	assert.Contains(t, cfg.MethodVocabulary, "ahorcamiento")
	assert.Contains(t, cfg.MethodVocabulary, "arma de fuego")
	assert.Len(t, cfg.PIIRiskBands, 4)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.CompletenessThreshold = 1.5 }},
		{"critical above threshold", func(c *Config) { c.CompletenessCritical = 0.9 }},
		{"pii threshold out of range", func(c *Config) { c.PIIRiskThreshold = 11 }},
		{"inverted age bounds", func(c *Config) { c.AgeMax = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero timeout", func(c *Config) { c.AnalyzerTimeout = 0 }},
		{"empty vocabulary", func(c *Config) { c.MethodVocabulary = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("COMPLETENESS_THRESHOLD", "0.9")
	t.Setenv("MAX_WORKERS", "3")
	t.Setenv("ANALYZER_TIMEOUT_SECONDS", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.CompletenessThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 60*time.Second, cfg.AnalyzerTimeout)
	assert.Nil(t, cfg.Postgres, "no POSTGRES_USER means no postgres config")
}

func TestApplyRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - role: age
    keywords: ["anios"]
method_vocabulary:
  - ahorcamiento
  - sumersion
critical_fields:
  - fecha
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Default()
	require.NoError(t, cfg.ApplyRulesFile(path))

	assert.Equal(t, []columns.Rule{{Role: columns.RoleAge, Keywords: []string{"anios"}}}, cfg.Rules)
	assert.Equal(t, []string{"ahorcamiento", "sumersion"}, cfg.MethodVocabulary)
	assert.Equal(t, []string{"fecha"}, cfg.CriticalFieldKeywords)
}

func TestApplyRulesFileKeepsDefaultsForAbsentSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("method_vocabulary: [otro]\n"), 0o644))

	cfg := Default()
	require.NoError(t, cfg.ApplyRulesFile(path))

	assert.Equal(t, []string{"otro"}, cfg.MethodVocabulary)
	assert.Equal(t, columns.DefaultRules(), cfg.Rules)
}

func TestApplyRulesFileMissingFile(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ApplyRulesFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hondrospj/bivalve-flooding-finaltest/internal/config"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
)

// setRequired sets the minimum env for a valid usgs config.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FLOODPEAKS_SOURCE__SITE", "07374000")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "usgs", cfg.Source.Kind)
	assert.Equal(t, "00065", cfg.Source.Parameter)
	assert.Equal(t, 300*time.Minute, cfg.Extract.MinSeparation)
	assert.Equal(t, 3, cfg.Extract.Precision)
	assert.Equal(t, 12*time.Hour, cfg.Update.OverlapBuffer)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FLOODPEAKS_LOG__LEVEL", "debug")
	t.Setenv("FLOODPEAKS_EXTRACT__PRECISION", "2")
	t.Setenv("FLOODPEAKS_EXTRACT__MIN_SEPARATION", "2h")
	t.Setenv("FLOODPEAKS_EXTRACT__THRESHOLDS__MAJOR_LOW", "9.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Extract.Precision)
	assert.Equal(t, 2*time.Hour, cfg.Extract.MinSeparation)
	assert.Equal(t, 9.5, cfg.Extract.Thresholds.MajorLow)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
log:
  format: text
store:
  path: /var/lib/floodpeaks/peaks.json
extract:
  thresholds:
    minor_low: 2.0
    moderate_low: 3.0
    major_low: 3.9
source:
  kind: file
  path: testdata/series.rdb
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv(config.EnvConfigFile, path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/var/lib/floodpeaks/peaks.json", cfg.Store.Path)
	assert.Equal(t, "file", cfg.Source.Kind)
	assert.Equal(t, domain.ThresholdSet{MinorLow: 2.0, ModerateLow: 3.0, MajorLow: 3.9}, cfg.Extract.Thresholds)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv(config.EnvConfigFile, path)
	setRequired(t)
	t.Setenv("FLOODPEAKS_LOG__LEVEL", "error")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "non-ascending thresholds",
			env: map[string]string{
				"FLOODPEAKS_EXTRACT__THRESHOLDS__MINOR_LOW": "5.0",
			},
		},
		{
			name: "negative separation",
			env: map[string]string{
				"FLOODPEAKS_EXTRACT__MIN_SEPARATION": "-1h",
			},
		},
		{
			name: "precision out of range",
			env: map[string]string{
				"FLOODPEAKS_EXTRACT__PRECISION": "11",
			},
		},
		{
			name: "unknown source kind",
			env: map[string]string{
				"FLOODPEAKS_SOURCE__KIND": "carrier-pigeon",
			},
		},
		{
			name: "kafka enabled without brokers",
			env: map[string]string{
				"FLOODPEAKS_KAFKA__ENABLED": "true",
			},
		},
		{
			name: "missing site for usgs source",
			env: map[string]string{
				"FLOODPEAKS_SOURCE__SITE": "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

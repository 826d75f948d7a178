package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewReaderConfig("data/accounts.sas7bdat")

	assert.Equal(t, "data/accounts.sas7bdat", cfg.Path)
	assert.Equal(t, "arrowfile", cfg.Engine)
	assert.Equal(t, 0, cfg.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReaderConfig)
		wantErr string
	}{
		{"missing path", func(c *ReaderConfig) { c.Path = "" }, "path is required"},
		{"missing engine", func(c *ReaderConfig) { c.Engine = "" }, "engine is required"},
		{"negative batch size", func(c *ReaderConfig) { c.BatchSize = -1 }, "batch_size"},
		{"bad encoding", func(c *ReaderConfig) { c.Log.Encoding = "xml" }, "encoding"},
		{"empty encoding ok", func(c *ReaderConfig) { c.Log.Encoding = "" }, ""},
		{"console encoding ok", func(c *ReaderConfig) { c.Log.Encoding = "console" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewReaderConfig("x.sas7bdat")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("SAS_INPUT", "/data/claims.sas7bdat")

	path := filepath.Join(t.TempDir(), "reader.yaml")
	content := `path: ${SAS_INPUT}
engine: arrowfile
batch_size: 1024
log:
  level: debug
  encoding: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var cfg ReaderConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "/data/claims.sas7bdat", cfg.Path)
	assert.Equal(t, "arrowfile", cfg.Engine)
	assert.Equal(t, 1024, cfg.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.NoError(t, cfg.Validate())
}

func TestLoadUnsetEnvBecomesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("path: ${SASARROW_DEFINITELY_UNSET}\nengine: arrowfile\n"), 0o644))

	var cfg ReaderConfig
	require.NoError(t, Load(path, &cfg))
	assert.Empty(t, cfg.Path)
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	var cfg ReaderConfig
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	in := NewReaderConfig("a.sas7bdat")
	in.BatchSize = 512

	require.NoError(t, Save(path, in))

	var out ReaderConfig
	require.NoError(t, Load(path, &out))
	assert.Equal(t, *in, out)
}

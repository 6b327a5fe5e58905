package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2022, c.Year)
	assert.Equal(t, 10000, c.Limit)
	assert.Equal(t, "data/raw/data.csv", c.LocalCSV)
	assert.Equal(t, ".", c.OutDir)
	assert.Empty(t, c.BillingProject)
	assert.Equal(t, 120*time.Second, c.QueryTimeout())
	assert.Equal(t, 500*time.Millisecond, c.RetryBaseDelay())
	assert.Equal(t, 4*time.Second, c.RetryMaxDelay())
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 300, c.FigureDPI)
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("year: 2019\nlimit: 500\nbilling_project: from-file\n"), 0o644))
	t.Setenv("INCOMEGAP_LIMIT", "42")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2019, c.Year, "file overrides default")
	assert.Equal(t, 42, c.Limit, "env overrides file")
	assert.Equal(t, "from-file", c.BillingProject)
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("billing_project", "my-project"))
	require.NoError(t, c.Set("limit", "2500"))
	require.NoError(t, c.Set("log_format", "JSON"))
	require.NoError(t, Save(c, ""))

	_, err = os.Stat(filepath.Join(home, ".incomegap", "config.yaml"))
	require.NoError(t, err)

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "my-project", got.BillingProject)
	assert.Equal(t, 2500, got.Limit)
	assert.Equal(t, "json", got.LogFormat)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	assert.Error(t, c.Set("limit", "abc"))
	assert.Error(t, c.Set("limit", "0"))
	assert.Error(t, c.Set("log_level", "verbose"))
	assert.Error(t, c.Set("api_key", "x"))
	assert.NoError(t, c.Set("retry_base_delay_ms", "0"))
}

func TestGetCoversEveryKey(t *testing.T) {
	c := &Global{Year: 2022, OutDir: "out"}
	for _, k := range Keys {
		_, err := c.Get(k)
		assert.NoError(t, err, k)
	}
	v, err := c.Get("out_dir")
	require.NoError(t, err)
	assert.Equal(t, "out", v)
	_, err = c.Get("nope")
	assert.Error(t, err)
}

package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/incomegap/internal/utils"
)

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, utils.EnsureDirs(root, "data/raw", "data/processed", "figures", "report"))
	for _, d := range []string{"data/raw", "data/processed", "figures", "report"} {
		info, err := os.Stat(filepath.Join(root, d))
		require.NoError(t, err)
		assert.True(t, info.IsDir(), d)
	}
	// idempotent
	require.NoError(t, utils.EnsureDirs(root, "figures"))
}

func TestSafeWriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "a.txt")
	require.NoError(t, utils.SafeWriteFile(path, []byte("first")))
	require.NoError(t, utils.SafeWriteFile(path, []byte("second")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))
}

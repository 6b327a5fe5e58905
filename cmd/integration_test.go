package cmd

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/incomegap/internal/report"
	"github.com/KaramelBytes/incomegap/internal/source"
)

// execCLI executes the root command with args and returns stdout.
func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Reset sticky flags that may persist Changed state across invocations
	for _, c := range []*cobra.Command{runCmd, describeCmd} {
		c.Flags().VisitAll(func(fl *pflag.Flag) {
			_ = fl.Value.Set(fl.DefValue)
			fl.Changed = false
		})
	}
	rootCmd.PersistentFlags().VisitAll(func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	})
	cfg = nil
	logOutput = io.Discard

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points HOME at a temp dir and keeps figures small.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("INCOMEGAP_FIGURE_DPI", "20")
	return home
}

func writeMicrodata(t *testing.T, dir string, n int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	var b strings.Builder
	b.WriteString("ano,uf,sexo,cor_raca,idade,anos_estudo,renda_trabalho_principal\n")
	for i := 0; i < n; i++ {
		sex := 1 + rng.Intn(2)
		school := rng.Intn(17)
		inc := math.Exp(7 - 0.25*float64(sex-1) + 0.08*float64(school) + 0.5*rng.NormFloat64())
		fmt.Fprintf(&b, "2022,MG,%d,%d,%d,%d,%.2f\n", sex, 1+rng.Intn(5), 18+rng.Intn(45), school, inc)
	}
	b.WriteString("2022,MG,1,1,40,8,\n")
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestCLI_RunWritesReport(t *testing.T) {
	home := isolate(t)
	local := writeMicrodata(t, home, 300)
	outDir := filepath.Join(home, "out")

	stdout, err := execCLI(t, "run", "--local-csv", local, "--out-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Analysis completed successfully.")
	assert.Contains(t, stdout, source.ProvenanceLocalCSV)
	assert.Contains(t, stdout, "301 rows loaded, 300 after cleaning")

	for _, f := range []string{report.FileSummary, report.FileTests, report.FileBoxPlot, report.FileScatter, report.FileHeatmap, report.FileOverall} {
		_, err := os.Stat(filepath.Join(outDir, f))
		assert.NoError(t, err, f)
	}
}

func TestCLI_RunWithoutDataFails(t *testing.T) {
	home := isolate(t)

	_, err := execCLI(t, "run", "--local-csv", filepath.Join(home, "missing.csv"), "--out-dir", filepath.Join(home, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrDataUnavailable)
}

func TestCLI_RunUsesConfigLimit(t *testing.T) {
	home := isolate(t)
	local := writeMicrodata(t, home, 300)

	_, err := execCLI(t, "config", "set", "limit", "120")
	require.NoError(t, err)

	stdout, err := execCLI(t, "run", "--local-csv", local, "--out-dir", filepath.Join(home, "out"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "120 rows loaded")

	// A flag beats the config file.
	stdout, err = execCLI(t, "run", "--local-csv", local, "--limit", "200", "--out-dir", filepath.Join(home, "out2"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "200 rows loaded")
}

func TestCLI_DescribePrintsTables(t *testing.T) {
	home := isolate(t)
	local := writeMicrodata(t, home, 200)

	stdout, err := execCLI(t, "describe", local)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Source: local_csv")
	assert.Contains(t, stdout, "201 loaded, 1 dropped (missing)")
	assert.Contains(t, stdout, "Male")
	assert.Contains(t, stdout, "Female")

	entries, err := os.ReadDir(home)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "report", e.Name(), "describe must not write files")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)

	_, err := execCLI(t, "config", "set", "billing_project", "census-proj")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, ".incomegap", "config.yaml"))
	require.NoError(t, err)

	stdout, err := execCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "billing_project: census-proj")
	assert.Contains(t, stdout, "figure_dpi: 20")

	_, err = execCLI(t, "config", "set", "no_such_key", "1")
	assert.Error(t, err)
}

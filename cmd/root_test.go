package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"fetch", "analyze", "generate", "publish", "orchestrate",
		"migrate", "status", "reset", "serve", "companies", "subscribers",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "tenkay", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestStageCommands_SharedFlags(t *testing.T) {
	for _, c := range []string{"fetch", "analyze", "generate", "publish"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		for _, flag := range []string{"limit", "workers", "dry-run", "summary-file"} {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%s should have --%s", c, flag)
		}
	}
}

func TestFetchCommand_Flags(t *testing.T) {
	require.NotNil(t, fetchCmd.Flags().Lookup("tickers"))
	require.NotNil(t, fetchCmd.Flags().Lookup("per-company"))
	assert.Equal(t, "0", fetchCmd.Flags().Lookup("limit").DefValue)
}

func TestOrchestrateCommand_Flags(t *testing.T) {
	f := orchestrateCmd.Flags()
	defaults := map[string]string{
		"fetch":            "false",
		"publish":          "false",
		"analyze-only":     "false",
		"generate-only":    "false",
		"analyze-limit":    "200",
		"generate-limit":   "200",
		"analyze-workers":  "5",
		"generate-workers": "3",
		"threshold":        "0.1",
		"dry-run":          "false",
	}
	for name, want := range defaults {
		flag := f.Lookup(name)
		require.NotNil(t, flag, "orchestrate should have --%s", name)
		assert.Equal(t, want, flag.DefValue, "--%s default", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

// writeConfig writes a sqlite-backed config file and returns its path and
// the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tenkay.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "store:\n  driver: sqlite\n  database_url: " + dbPath + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath, dbPath
}

func openStore(t *testing.T, dbPath string) store.Store {
	t.Helper()
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestCompaniesSeedAndSubscribersAdd(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seed := filepath.Join(filepath.Dir(cfgPath), "companies.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`companies:
  - ticker: aapl
    name: Apple Inc.
    sector: Technology
  - ticker: MSFT
    name: Microsoft
    enabled: false
`), 0o644))

	rootCmd.SetArgs([]string{"companies", "seed", "--config", cfgPath, "--file", seed})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"subscribers", "add", "--config", cfgPath, "--email", "Ann@Example.com", "--first-name", "Ann", "--tier", "paid"})
	require.NoError(t, rootCmd.Execute())

	st := openStore(t, dbPath)
	ctx := context.Background()

	enabled, err := st.ListCompanies(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "AAPL", enabled[0].Ticker)

	subs, err := st.ListSubscribers(ctx, model.TierPaid)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ann@example.com", subs[0].Email)
}

func TestResetCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	rootCmd.SetArgs([]string{"migrate", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	st := openStore(t, dbPath)
	ctx := context.Background()
	c := model.Company{Ticker: "AAPL", Name: "Apple", Enabled: true}
	require.NoError(t, st.UpsertCompany(ctx, &c))
	f := model.Filing{
		CompanyID: c.ID, Ticker: c.Ticker, FilingType: model.Filing10K,
		AccessionNumber: "0000320193-24-000123", DocumentURL: "https://www.sec.gov/x.txt",
	}
	_, err := st.CreateFiling(ctx, &f)
	require.NoError(t, err)
	require.NoError(t, st.AdvanceFiling(ctx, f.ID, model.FilingFailed, "boom"))

	rootCmd.SetArgs([]string{"reset", "--config", cfgPath, "--accession", f.AccessionNumber})
	require.NoError(t, rootCmd.Execute())

	exists, err := st.FilingExists(ctx, f.AccessionNumber)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResetCommand_UnknownAccession(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	rootCmd.SetArgs([]string{"reset", "--config", cfgPath, "--accession", "missing"})
	assert.ErrorIs(t, rootCmd.Execute(), store.ErrNotFound)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tabletrace/internal/config"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func noEnv(string) string { return "" }

func TestBuildConfig(t *testing.T) {
	t.Run("database is required", func(t *testing.T) {
		_, err := buildConfig(&options{}, changedSet(), noEnv)
		require.ErrorIs(t, err, config.ErrDatabaseRequired)
	})

	t.Run("flags over defaults", func(t *testing.T) {
		opts := &options{driver: "mysql", database: "shop", intervalMs: 250, interactive: false}
		cfg, err := buildConfig(opts, changedSet("driver", "database", "interval", "interactive"), func(k string) string {
			if k == "MYSQL_PWD" {
				return "pw"
			}
			return ""
		})
		require.NoError(t, err)
		require.Equal(t, config.DriverMySQL, cfg.Database.Driver)
		require.Equal(t, 3306, cfg.Database.Port)
		require.Equal(t, "root", cfg.Database.User)
		require.Equal(t, "shop", cfg.Watch.Schema)
		require.Equal(t, "pw", cfg.Database.Password)
		require.Equal(t, 250*time.Millisecond, cfg.Watch.Interval)
		require.False(t, cfg.Watch.Interactive)
	})

	t.Run("preset then explicit flags", func(t *testing.T) {
		opts := &options{preset: "supabase", schema: "all"}
		cfg, err := buildConfig(opts, changedSet("schema"), noEnv)
		require.NoError(t, err)
		require.Equal(t, 54322, cfg.Database.Port)
		require.Equal(t, "postgres", cfg.Database.Name)
		require.Equal(t, "postgres", cfg.Database.Password)
		require.Equal(t, config.AllSchemas, cfg.Watch.Schema)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := buildConfig(&options{preset: "oracle"}, changedSet(), noEnv)
		require.ErrorIs(t, err, config.ErrUnknownPreset)
	})

	t.Run("zero interval", func(t *testing.T) {
		_, err := buildConfig(&options{database: "shop"}, changedSet("database", "interval"), noEnv)
		require.Error(t, err)
	})

	t.Run("config file with flag override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tabletrace.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database:\n  name: shop\n  host: db.internal\nwatch:\n  max_rows: 50\n"), 0o600))

		opts := &options{configPath: path, host: "localhost", script: "hook.js"}
		cfg, err := buildConfig(opts, changedSet("host", "script"), noEnv)
		require.NoError(t, err)
		require.Equal(t, "localhost", cfg.Database.Host)
		require.Equal(t, "shop", cfg.Database.Name)
		require.Equal(t, 50, cfg.Watch.MaxRows)
		require.True(t, cfg.Processor.Enabled)
		require.Equal(t, "hook.js", cfg.Processor.Script)
	})
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["watch"])
	require.True(t, names["check"])
	require.True(t, names["tables"])

	watch, _, err := root.Find([]string{"watch"})
	require.NoError(t, err)
	for _, flag := range []string{"host", "port", "database", "user", "password", "schema", "interval", "interactive", "preset"} {
		require.NotNil(t, watch.Flags().Lookup(flag), flag)
	}
	require.Equal(t, "H", watch.Flags().Lookup("host").Shorthand)
}

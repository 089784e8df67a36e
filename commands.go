package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tabletrace/internal/config"
)

// options holds the command line flags. Only flags the user set override the
// config file.
type options struct {
	configPath    string
	preset        string
	driver        string
	host          string
	port          int
	database      string
	user          string
	password      string
	schema        string
	intervalMs    int
	interactive   bool
	counterSource string
	maxRows       int
	logLevel      string
	natsEnabled   bool
	natsURL       string
	natsSubject   string
	script        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "tabletrace",
		Short:         "Real-time database change monitoring",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Watch tables for changes in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(opts, cmd.Flags().Changed, os.Getenv)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg)
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Verify the connection and that table statistics are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(opts, cmd.Flags().Changed, os.Getenv)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cfg)
		},
	}

	tables := &cobra.Command{
		Use:   "tables",
		Short: "List the tables that can be watched",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(opts, cmd.Flags().Changed, os.Getenv)
			if err != nil {
				return err
			}
			return runTables(cmd.Context(), cfg)
		},
	}

	def := config.Default()
	for _, cmd := range []*cobra.Command{watch, check, tables} {
		addConnectionFlags(cmd, opts, def)
	}

	f := watch.Flags()
	f.IntVarP(&opts.intervalMs, "interval", "i", int(def.Watch.Interval/time.Millisecond), "Polling interval in milliseconds")
	f.BoolVar(&opts.interactive, "interactive", def.Watch.Interactive, "Enable interactive mode (keyboard input for details)")
	f.StringVar(&opts.counterSource, "counter-source", def.Watch.CounterSource, "Where counters come from: 'stats', or 'binlog' for mysql")
	f.IntVar(&opts.maxRows, "max-rows", def.Watch.MaxRows, "Maximum rows captured per table")
	f.BoolVar(&opts.natsEnabled, "nats", def.NATS.Enabled, "Publish change records to NATS")
	f.StringVar(&opts.natsURL, "nats-url", def.NATS.URL, "NATS server URL")
	f.StringVar(&opts.natsSubject, "nats-subject", def.NATS.Subject, "NATS subject for change records")
	f.StringVar(&opts.script, "script", "", "JavaScript file with a transform function for published records")

	root.AddCommand(watch, check, tables)
	return root
}

func addConnectionFlags(cmd *cobra.Command, opts *options, def *config.Config) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.StringVar(&opts.preset, "preset", "", "Preset connection: 'supabase' (local Docker), 'postgres' (local default), 'mysql'")
	f.StringVar(&opts.driver, "driver", def.Database.Driver, "Database driver, 'postgres' or 'mysql'")
	f.StringVarP(&opts.host, "host", "H", def.Database.Host, "Database host")
	f.IntVarP(&opts.port, "port", "P", 0, "Database port (default 5432, or 3306 for mysql)")
	f.StringVarP(&opts.database, "database", "d", "", "Database name")
	f.StringVarP(&opts.user, "user", "u", "", "Database user (default postgres, or root for mysql)")
	f.StringVarP(&opts.password, "password", "W", "", "Database password (or use PGPASSWORD / MYSQL_PWD)")
	f.StringVarP(&opts.schema, "schema", "s", "", "Schema to filter tables, 'all' for every schema (default public)")
	f.StringVar(&opts.logLevel, "log-level", def.Logging.Level, "Logging level (error, warn, info, debug)")
}

// buildConfig merges the config file, a preset and the flags the user set,
// then fills driver dependent defaults and validates the result.
func buildConfig(opts *options, changed func(name string) bool, getenv func(string) string) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	preset := cfg.Database.Preset
	if opts.preset != "" {
		preset = opts.preset
	}
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}

	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("driver", func() { cfg.Database.Driver = opts.driver })
	set("host", func() { cfg.Database.Host = opts.host })
	set("port", func() { cfg.Database.Port = opts.port })
	set("database", func() { cfg.Database.Name = opts.database })
	set("user", func() { cfg.Database.User = opts.user })
	set("password", func() { cfg.Database.Password = opts.password })
	set("schema", func() { cfg.Watch.Schema = opts.schema })
	set("interval", func() { cfg.Watch.Interval = time.Duration(opts.intervalMs) * time.Millisecond })
	set("interactive", func() { cfg.Watch.Interactive = opts.interactive })
	set("counter-source", func() { cfg.Watch.CounterSource = opts.counterSource })
	set("max-rows", func() { cfg.Watch.MaxRows = opts.maxRows })
	set("log-level", func() { cfg.Logging.Level = opts.logLevel })
	set("nats", func() { cfg.NATS.Enabled = opts.natsEnabled })
	set("nats-url", func() { cfg.NATS.URL = opts.natsURL })
	set("nats-subject", func() { cfg.NATS.Subject = opts.natsSubject })
	set("script", func() {
		cfg.Processor.Enabled = true
		cfg.Processor.Script = opts.script
	})

	if changed("interval") && opts.intervalMs <= 0 {
		return nil, fmt.Errorf("polling interval must be greater than 0")
	}

	cfg.Complete()
	cfg.ResolvePassword(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

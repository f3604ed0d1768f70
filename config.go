/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every runtime-tunable knob for the coordination engine.
type Config struct {
	bind        string
	port        int
	databaseURL string

	startHandshakeTTL time.Duration
	janitorInterval   time.Duration
	shutdownTimeout   time.Duration

	profile bool
	verbose bool
	version bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if strings.TrimSpace(c.databaseURL) == "" {
		return errors.New("--database-url (or DATABASE_URL) is required")
	}
	if c.startHandshakeTTL <= 0 {
		return errors.New("--start-handshake-ttl must be positive")
	}
	if c.janitorInterval <= 0 {
		return errors.New("--janitor-interval must be positive")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CHALLENGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// §6 names these two exactly: PORT and DATABASE_URL, unprefixed.
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("database-url", "DATABASE_URL")

	cmd := &cobra.Command{
		Use:           "challenge-coordinator",
		Short:         "Realtime coordination server for peer-to-peer game challenges.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CHALLENGE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PORT)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string (env: DATABASE_URL)")
	fs.DurationVar(&cfg.startHandshakeTTL, "start-handshake-ttl", 5*time.Minute, "age at which a stale start handshake is evicted (env: CHALLENGE_START_HANDSHAKE_TTL)")
	fs.DurationVar(&cfg.janitorInterval, "janitor-interval", 60*time.Second, "tick interval for the stale-handshake sweep (env: CHALLENGE_JANITOR_INTERVAL)")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 5*time.Second, "grace period for draining connections on shutdown (env: CHALLENGE_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CHALLENGE_PROFILE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: CHALLENGE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CHALLENGE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("challenge-coordinator v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

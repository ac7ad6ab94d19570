// Package config binds CLI flags and environment variables into a Config,
// the way the teacher's partybox command does, scoped to the settings the
// Jarls server needs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every server-wide setting, bound from flags/env at startup.
type Config struct {
	Bind   string
	Port   int
	Env    string
	Verbose bool

	DatabaseURL    string
	SessionStoreURL string

	DisconnectGrace    time.Duration
	StarvationTimeout  time.Duration
	AITimeout          time.Duration
}

// Validate collects every configuration violation into a single error,
// rather than stopping at the first, so operators see the full list of
// what's missing on a failed startup (spec §6: "fail startup with a
// human-readable list").
func (c *Config) Validate() error {
	var problems []string

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.SessionStoreURL == "" {
		problems = append(problems, "SESSION_STORE_URL is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port (must be 1-65535): %d", c.Port))
	}
	switch c.Env {
	case "development", "production", "test":
	default:
		problems = append(problems, fmt.Sprintf("invalid env %q (must be development, production, or test)", c.Env))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
	}

	return nil
}

// NewCommand builds the root cobra command, binding flags into cfg via
// viper with the JARLS_ env prefix, mirroring the teacher's newCmd.
func NewCommand(cfg *Config, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("JARLS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "jarlsd",
		Short:         "Authoritative multiplayer server for Jarls, a turn-based hex strategy game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: JARLS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 3000, "port to listen on (env: JARLS_PORT)")
	fs.StringVar(&cfg.Env, "env", "development", "environment: development, production, or test (env: JARLS_ENV)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging (env: JARLS_VERBOSE)")

	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "snapshot/event store DSN, required (env: JARLS_DATABASE_URL)")
	fs.StringVar(&cfg.SessionStoreURL, "session-store-url", "", "session store (redis) URL, required (env: JARLS_SESSION_STORE_URL)")

	fs.DurationVar(&cfg.DisconnectGrace, "disconnect-grace", 120*time.Second, "grace window before a disconnected player is forfeited (env: JARLS_DISCONNECT_GRACE)")
	fs.DurationVar(&cfg.StarvationTimeout, "starvation-timeout", 30*time.Second, "default per-round starvation choice timeout (env: JARLS_STARVATION_TIMEOUT)")
	fs.DurationVar(&cfg.AITimeout, "ai-timeout", 5*time.Second, "timeout for AI adapter move generation (env: JARLS_AI_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceUsage = true

	return cmd
}

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/config"
	"github.com/platinummonkey/cantor/pkg/observability"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env is shared by every command
type Env struct {
	Out io.Writer
	Log *logrus.Logger
	// Load reads configuration from a YAML path; empty means environment only
	Load func(path string) (*config.Config, error)
}

func (e *Env) defaults() {
	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Log == nil {
		e.Log = logrus.New()
		e.Log.SetOutput(os.Stderr)
	}
	if e.Load == nil {
		e.Load = config.Load
	}
}

// NewRootCommand creates the cantorctl root command
func NewRootCommand(env *Env) *Command {
	env.defaults()
	root := &Command{
		Name:        "cantorctl",
		Description: "Cantor - administration for the parish music auth service",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("cantorctl", flag.ContinueOnError),
	}

	root.Subcommands["migrate"] = newMigrateCommand(env)
	root.Subcommands["create-account"] = newCreateAccountCommand(env)
	root.Subcommands["seed"] = newSeedCommand(env)
	root.Subcommands["purge"] = newPurgeCommand(env)

	for _, sub := range root.Subcommands {
		sub.Flags.SetOutput(env.Out)
	}
	root.Flags.SetOutput(env.Out)
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// parse parses args into fs, turning -h into a nil error
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv("CANTOR_CONFIG_FILE"), "YAML configuration file")
}

// openStore loads configuration and connects to its database
func openStore(ctx context.Context, env *Env, path string) (*config.Config, *sqlstore.Store, error) {
	cfg, err := env.Load(path)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, cfg.SQLStore())
	if err != nil {
		return nil, nil, err
	}
	env.Log.WithField("driver", store.Driver()).Debug("connected to database")
	return cfg, store, nil
}

// withService runs fn against a migrated store and an auth service built
// from the loaded configuration
func withService(ctx context.Context, env *Env, path string, fn func(*config.Config, *sqlstore.Store, *auth.Service) error) error {
	cfg, store, err := openStore(ctx, env, path)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	svc, err := auth.NewService(store, cfg.AuthCore(),
		auth.WithLogger(serviceLogger(env)),
		auth.WithAuditLogger(auth.NewAuditLogger(serviceLogger(env))),
	)
	if err != nil {
		return err
	}
	return fn(cfg, store, svc)
}

// serviceLogger routes library logs to the CLI's log output
func serviceLogger(env *Env) *observability.Logger {
	level := observability.WarnLevel
	if env.Log.IsLevelEnabled(logrus.DebugLevel) {
		level = observability.DebugLevel
	}
	return observability.NewLogger(level, env.Log.Out)
}

package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
)

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}
	path := configFlag(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if ok, err := parse(cmd.Flags, args); !ok {
			return err
		}

		_, store, err := openStore(ctx, env, *path)
		if err != nil {
			return err
		}
		defer store.Close()

		// schema_migrations does not exist yet on a fresh database
		before, _ := store.SchemaVersion(ctx)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		after, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}

		env.Log.WithFields(logrus.Fields{
			"from": before,
			"to":   after,
		}).Info("migrations applied")
		fmt.Fprintf(env.Out, "schema at version %d\n", after)
		return nil
	}
	return cmd
}

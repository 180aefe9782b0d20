package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/config"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

func newSeedCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "seed",
		Description: "Create the configured admin account if no admin exists",
		Flags:       flag.NewFlagSet("seed", flag.ContinueOnError),
	}
	path := configFlag(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if ok, err := parse(cmd.Flags, args); !ok {
			return err
		}

		return withService(ctx, env, *path, func(cfg *config.Config, _ *sqlstore.Store, svc *auth.Service) error {
			seeds := cfg.SeedAccounts()
			if len(seeds) == 0 {
				return errors.New("no seed admin configured; set CANTOR_SEED_ADMIN_EMAIL and CANTOR_SEED_ADMIN_PASSWORD")
			}
			created, err := svc.Seed(ctx, seeds...)
			if err != nil {
				return err
			}
			env.Log.WithField("created", created).Info("seed complete")
			fmt.Fprintf(env.Out, "created %d account(s)\n", created)
			return nil
		})
	}
	return cmd
}

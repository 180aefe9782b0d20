package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/config"
	"github.com/platinummonkey/cantor/pkg/maintenance"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

func newPurgeCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "purge",
		Description: "Delete expired sessions and stale reset tokens once",
		Flags:       flag.NewFlagSet("purge", flag.ContinueOnError),
	}
	path := configFlag(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if ok, err := parse(cmd.Flags, args); !ok {
			return err
		}

		return withService(ctx, env, *path, func(_ *config.Config, store *sqlstore.Store, svc *auth.Service) error {
			janitor, err := maintenance.New(maintenance.Config{},
				[]maintenance.Target{
					{Table: "sessions", Purger: svc.Sessions},
					{Table: "password_reset_tokens", Purger: svc.ResetTokens},
				},
				maintenance.WithLogger(serviceLogger(env)),
				maintenance.WithStats(store.DB()),
			)
			if err != nil {
				return err
			}

			result, err := janitor.RunOnce(ctx)
			tables := make([]string, 0, len(result.Purged))
			for table := range result.Purged {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				fmt.Fprintf(env.Out, "%-22s %d\n", table, result.Purged[table])
			}
			return err
		})
	}
	return cmd
}

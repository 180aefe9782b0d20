package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/config"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

// PasswordEnv supplies create-account's password. There is no flag for it
// so the password stays out of shell history and the process list.
const PasswordEnv = "CANTOR_ACCOUNT_PASSWORD"

func newCreateAccountCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "create-account",
		Description: "Create a musician or admin account",
		Flags:       flag.NewFlagSet("create-account", flag.ContinueOnError),
	}
	path := configFlag(cmd.Flags)
	email := cmd.Flags.String("email", "", "Account email (required)")
	name := cmd.Flags.String("name", "", "Display name (required)")
	role := cmd.Flags.String("role", string(auth.RoleMusician), "Role: musician or admin")
	instrument := cmd.Flags.String("instrument", "", "Instrument, musicians only")
	phone := cmd.Flags.String("phone", "", "Phone number")

	cmd.Run = func(ctx context.Context, args []string) error {
		if ok, err := parse(cmd.Flags, args); !ok {
			return err
		}
		if *email == "" || *name == "" {
			return errors.New("-email and -name are required")
		}
		pw := os.Getenv(PasswordEnv)
		if pw == "" {
			return fmt.Errorf("%s is required", PasswordEnv)
		}

		in := auth.NewAccount{
			Email:    *email,
			Password: pw,
			Name:     *name,
			Role:     *role,
		}
		if *instrument != "" {
			in.Instrument = instrument
		}
		if *phone != "" {
			in.Phone = phone
		}

		return withService(ctx, env, *path, func(_ *config.Config, _ *sqlstore.Store, svc *auth.Service) error {
			account, err := svc.CreateAccount(ctx, in)
			if err != nil {
				return err
			}
			env.Log.WithFields(logrus.Fields{
				"account_id": account.ID,
				"role":       account.Role,
			}).Info("account created")
			fmt.Fprintln(env.Out, account.ID)
			return nil
		})
	}
	return cmd
}

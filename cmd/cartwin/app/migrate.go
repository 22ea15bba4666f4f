package app

import (
	"fmt"

	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/cartwin/internal/twin"
	"github.com/autopeer-io/cartwin/internal/twin/schema"
	"github.com/autopeer-io/cartwin/pkg/options"
)

func newMigrateCommand() *cobra.Command {
	opts := options.NewPostgresOptions()

	cmd := &cobra.Command{
		Use:       "migrate {up|down|version}",
		Short:     "Manage the Postgres schema of the device directory and telemetry table",
		ValidArgs: []string{"up", "down", "version"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
				return err
			}

			db, err := twin.InitializePostgres(opts)
			if err != nil {
				return err
			}
			mg, err := schema.NewMigrator(db)
			if err != nil {
				db.Close()
				return err
			}
			defer mg.Close()

			switch args[0] {
			case "up":
				err = mg.Up()
			case "down":
				err = mg.Down()
			}
			if err != nil {
				return err
			}

			v, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
			return err
		},
	}
	opts.AddFlags(cmd.Flags())

	return cmd
}

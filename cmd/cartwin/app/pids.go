package app

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/cartwin/internal/twin/pid"
)

func newPIDsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pids",
		Short: "Print the measurement codes understood by the decoder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := uitable.New()
			table.MaxColWidth = 60
			table.Wrap = true

			table.AddRow("PID", "CODE", "FIELD", "KIND", "DESCRIPTION")
			for _, e := range pid.Table() {
				table.AddRow(e.PID(), e.Code, e.Field, e.Kind, e.Description)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}
}

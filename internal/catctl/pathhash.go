package catctl

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

func newPathHashCmd(opts *options) *cobra.Command {
	var referring string
	cmd := &cobra.Command{
		Use:   "pathhash <app-name> <transaction-metric-name>",
		Short: "Compute the path hash a transaction sends downstream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.print(cmd.OutOrStdout(), cat.PathHash(args[0]+";"+args[1], referring))
		},
	}
	cmd.Flags().StringVar(&referring, "referring", "", "Path hash received from the caller")
	return cmd
}

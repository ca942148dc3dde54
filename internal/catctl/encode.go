package catctl

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

func newEncodeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a CAT header value",
	}
	cmd.AddCommand(newEncodeIDCmd(opts), newEncodeTxnCmd(opts), newEncodeAppDataCmd(opts))
	return cmd
}

func newEncodeIDCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "id <cross-process-id>",
		Short: "Encode an X-NewRelic-ID value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			value, err := codec.EncodeID(args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), value)
		},
	}
}

func newEncodeTxnCmd(opts *options) *cobra.Command {
	var h cat.TxnHeader
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Encode an X-NewRelic-Transaction value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			value, err := codec.EncodeTxnHeader(h)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), value)
		},
	}
	cmd.Flags().StringVar(&h.GUID, "guid", "", "Caller transaction GUID")
	cmd.Flags().StringVar(&h.TripID, "trip", "", "Trip ID")
	cmd.Flags().StringVar(&h.PathHash, "path-hash", "", "Caller path hash")
	_ = cmd.MarkFlagRequired("guid")
	return cmd
}

func newEncodeAppDataCmd(opts *options) *cobra.Command {
	var a cat.AppData
	cmd := &cobra.Command{
		Use:   "appdata",
		Short: "Encode an X-NewRelic-App-Data value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			value, err := codec.EncodeAppData(a)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), value)
		},
	}
	cmd.Flags().StringVar(&a.CrossProcessID, "cpid", "", "Callee cross process id")
	cmd.Flags().StringVar(&a.TransactionName, "name", "", "Callee transaction name")
	cmd.Flags().Float64Var(&a.ResponseTime, "response-time", 0, "Response time in seconds")
	cmd.Flags().Int64Var(&a.ContentLength, "content-length", -1, "Response content length")
	cmd.Flags().StringVar(&a.TransactionGUID, "guid", "", "Callee transaction GUID")
	_ = cmd.MarkFlagRequired("cpid")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

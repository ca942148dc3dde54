package catctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDecodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "decode <id|txn|appdata> <value>",
		Short:     "Decode a CAT header value",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"id", "txn", "appdata"},
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}

			var decoded any
			switch args[0] {
			case "id":
				decoded, err = codec.DecodeID(args[1])
			case "txn":
				decoded, err = codec.DecodeTxnHeader(args[1])
			case "appdata":
				decoded, err = codec.DecodeAppData(args[1])
			default:
				return fmt.Errorf("unknown header kind %q (want id, txn or appdata)", args[0])
			}
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), decoded)
		},
	}
}

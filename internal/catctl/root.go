package catctl

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

const keyEnv = "APM_ENCODING_KEY"

type options struct {
	key    string
	format string
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "catctl",
		Short: "Encode and decode cross-application tracing headers",
		Long: `catctl inspects the headers traced services exchange.

Examples:
  # Decode a captured X-NewRelic-ID header
  catctl decode id VQQUUFNS --key $APM_ENCODING_KEY

  # Build an X-NewRelic-Transaction header
  catctl encode txn --guid 0123456789abcdef --trip 0123456789abcdef

  # Compute the path hash of a transaction
  catctl pathhash "My App" "WebTransaction/Go/GET /items"
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.key, "key", "k", os.Getenv(keyEnv), "Encoding key (defaults to $"+keyEnv+")")
	root.PersistentFlags().StringVarP(&opts.format, "output", "o", "text", "Output format (text, json, yaml)")

	root.AddCommand(newEncodeCmd(opts), newDecodeCmd(opts), newPathHashCmd(opts))
	return root
}

func (o *options) codec() (*cat.Codec, error) {
	codec := cat.NewCodec(o.key)
	if !codec.Enabled() {
		return nil, fmt.Errorf("%w: pass --key or set %s", cat.ErrNoEncodingKey, keyEnv)
	}
	return codec, nil
}

// print writes v in the selected format. text falls back to fmt's %+v.
func (o *options) print(w io.Writer, v any) error {
	switch o.format {
	case "json":
		out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "text", "":
		if s, ok := v.(string); ok {
			_, err := fmt.Fprintln(w, s)
			return err
		}
		_, err := fmt.Fprintf(w, "%+v\n", v)
		return err
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}
}

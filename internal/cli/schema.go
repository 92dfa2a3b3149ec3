package cli

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/deno-lib/oned/application/schema"
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [op|config]",
		Short: "Print the JSON Schema of an op payload or of the config file",
		Long: `Print the JSON Schema of an op's payload, or of the config file when
the argument is "config". Without an argument, list the ops that take a
payload.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if len(args) == 0 {
				ops := schema.PayloadOps()
				return f.Success(ops, strings.Join(ops, "\n")+"\n")
			}

			var (
				doc []byte
				err error
			)
			if args[0] == schema.ConfigName {
				doc, err = schema.ConfigSchema()
			} else {
				doc, err = schema.PayloadSchema(args[0])
			}
			if stdErrors.Is(err, schema.ErrNoPayload) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("no schema for %q", args[0]), err)
			}
			if err != nil {
				return err
			}
			return f.Success(json.RawMessage(doc), string(doc)+"\n")
		},
	}
}

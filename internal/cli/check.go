package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deno-lib/oned/application/validation"
	"github.com/deno-lib/oned/domain/entities"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <op> <payload-file|->",
		Short: "Validate an op payload against its JSON Schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read payload", err)
			}

			res, err := validation.NewPayloadValidator(nil).Validate(args[0], payload)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot validate payload", err)
			}

			f := rootOpts.formatter(cmd)
			if res.Valid {
				return f.Success(res, fmt.Sprintf("%s payload is valid\n", args[0]))
			}
			return f.Failure(fmt.Sprintf("%s payload is invalid", args[0]), res, formatErrors(args[0], res.Errors))
		},
	}
}

func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func formatErrors(op string, errs []entities.ValidationError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s payload is invalid:\n", op)
	for _, e := range errs {
		field := e.Field
		if field == "" {
			field = "/"
		}
		fmt.Fprintf(&b, "  %s: %s\n", field, e.Message)
	}
	return b.String()
}

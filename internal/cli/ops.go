package cli

import (
	"fmt"
	"strings"

	"github.com/deno-lib/oned/driver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// OpInfo describes one registered op.
type OpInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the ops a script can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := driver.DefaultRegistry(zap.NewNop())
			if err != nil {
				return err
			}

			var (
				infos []OpInfo
				text  strings.Builder
			)
			for _, op := range registry.Ops() {
				infos = append(infos, OpInfo{Name: op.Name, Kind: op.Kind.String()})
				fmt.Fprintf(&text, "%-8s %s\n", op.Name, op.Kind)
			}
			return rootOpts.formatter(cmd).Success(infos, text.String())
		},
	}
}

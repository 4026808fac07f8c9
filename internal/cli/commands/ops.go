package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/onnxrun/internal/onnx"
)

// NewOpsCommand creates the ops command.
func NewOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List supported operators",
		Long:  `List the ONNX operators (default domain) this runtime can execute.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			ops := onnx.ListSupportedOps()
			for _, op := range ops {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), op)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%d operators\n", len(ops))
		},
	}
}

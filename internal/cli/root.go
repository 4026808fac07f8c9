// Package cli provides the onnxrun command-line interface.
package cli

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/onnxrun/internal/cli/commands"
	"github.com/born-ml/onnxrun/internal/config"
	"github.com/born-ml/onnxrun/internal/errs"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "onnxrun",
		Short: "onnxrun - ONNX inference on the CPU",
		Long: `onnxrun loads ONNX models and runs inference on the CPU.

It decodes .onnx model files and TensorProto data files (the test_data_set
layout of the ONNX model zoo), executes the graph and compares the result
with the expected output.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if cfg.Verbose && cfg.File != "" {
				klog.Infof("using config file %s", cfg.File)
			}
			cmd.SetContext(commands.WithConfig(cmd.Context(), cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./onnxrun.yaml)")
	flags.Bool("verbose", false, "log every executed node")
	flags.String("labels", "", "label set for top-k output (mnist|imagenet|custom)")
	flags.String("labels-file", "", "labels text file, one label per line")
	flags.Int("top-k", 5, "number of ranked classes to print")
	flags.Float64("tolerance", 1e-4, "maximum absolute difference accepted against expected outputs")
	flags.String("order", "resolve", "node execution order (resolve|recorded)")
	flags.Bool("parallel", true, "split heavy kernels across goroutines")
	flags.Int("workers", 0, "kernel goroutines (0 = number of CPUs)")

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	flags.AddGoFlagSet(goFlags)

	_ = rootCmd.RegisterFlagCompletionFunc("labels", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"mnist", "imagenet", "custom"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("order", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"resolve", "recorded"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewVerifyCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewOpsCommand())

	return rootCmd
}

// ExitCode maps an error to the process exit status: 0 for success, 1 for
// comparison failures and usage errors, and a distinct code per runtime
// error kind.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errs.KindOf(err) {
	case errs.KindIO:
		return 2
	case errs.KindDecode:
		return 3
	case errs.KindUnknownOp:
		return 4
	case errs.KindMissingInput:
		return 5
	case errs.KindShapeMismatch:
		return 6
	case errs.KindCycleDetected:
		return 7
	default:
		return 1
	}
}

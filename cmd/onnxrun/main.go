// Package main provides the onnxrun CLI.
package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/born-ml/onnxrun/internal/cli"
)

func main() {
	defer klog.Flush()
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		klog.Flush()
		os.Exit(cli.ExitCode(err))
	}
}

// Command finch runs a compiled class file under the engine in pkg/vm,
// resolving the named main class, initializing it, and executing
// main([Ljava/lang/String;)V.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finchvm/finch/pkg/native"
	"github.com/finchvm/finch/pkg/native/builtin"
	"github.com/finchvm/finch/pkg/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var classpath []string
	var nativeLibs []string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "finch <main-class>",
		Short:         "Interpret a compiled class file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], classpath, nativeLibs, verbose)
		},
	}

	cmd.Flags().StringSliceVar(&classpath, "classpath", nil,
		"additional search path to probe after the working directory (repeatable)")
	cmd.Flags().StringSliceVar(&nativeLibs, "native-lib", nil,
		"path to a shared library dlopen'd and bound against unbound native methods (repeatable)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	return cmd
}

func run(mainClass string, classpath, nativeLibs []string, verbose bool) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	loader := vm.NewClassLoader(classpath, log)
	defer loader.Close() //nolint:errcheck

	for _, path := range nativeLibs {
		lib, err := native.LoadDLLibrary(path)
		if err != nil {
			return fmt.Errorf("loading native library %s: %w", path, err)
		}
		loader.RegisterLibrary(lib)
	}
	loader.RegisterLibrary(builtin.Library(os.Stdout, os.Stdin))

	v := vm.NewVM(loader, os.Stdout, log)
	return v.Execute(mainClass)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

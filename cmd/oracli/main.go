package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          os.Args[0],
		Short:        "query Oracle tables as JSON",
		SilenceUsage: true,
	}
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	opts := &options{}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "oracli.toml", "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides the log level of the config file")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newQueryCmd(opts),
		newDescribeCmd(opts),
	)

	runRootCommand(rootCmd)
}

func runRootCommand(rootCmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sc := make(chan os.Signal, 1)
		signal.Notify(sc,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGQUIT,
		)

		// wait for quit signals
		<-sc
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

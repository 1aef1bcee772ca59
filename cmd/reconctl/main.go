package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "reconctl",
		Short:         "Operator tool for the virtual IBAN reconciliation engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "reconctl", "Config base name, read as <name>.env from ./configs or .")

	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(validateBalancesCmd())
	rootCmd.AddCommand(expireTopUpsCmd())
	rootCmd.AddCommand(resolveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

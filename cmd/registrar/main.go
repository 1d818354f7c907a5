package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "registrar", Short: "Name registration pipeline daemon and CLI"}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(opsCmd())
	rootCmd.AddCommand(stateCmd())

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "pollctl",
	Short:         "Command line client for the ballotbox poll registry",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var globalFlags struct {
	server  string
	keyFile string
	as      string
}

func init() {
	server := os.Getenv("BALLOTBOX_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&globalFlags.server, "server", server, "registry base URL (env BALLOTBOX_URL)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.keyFile, "key", os.Getenv("BALLOTBOX_KEY"), "path to an Ed25519 key written by keygen (env BALLOTBOX_KEY)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.as, "as", "", "unsigned identity to send; only accepted by servers in trusted_header mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

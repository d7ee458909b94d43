package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kgate",
		Short: "Realtime gateway client for KOOK-style chat platforms",
		Long: `kgate keeps a resilient realtime connection to the chat platform
and fans incoming events out to registered handlers.

It speaks the gateway websocket protocol (hello handshake, heartbeats,
resume, AES frame decryption, zlib compression) and can alternatively
take events as webhook callbacks. Configuration lives in kgate.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

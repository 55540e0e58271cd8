// Command wirehttp runs a demo application on the wirehttp server and
// inspects its route table.
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
		Use:   "wirehttp",
		Short: "HTTP/1.1 and WebSocket server",
		Long: `wirehttp serves HTTP/1.1 requests and WebSocket sessions on the same port.

The demo application registers a few JSON and streaming routes, a static
file directory and a /chat WebSocket endpoint that broadcasts every message.
Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		routesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

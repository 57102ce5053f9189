// Package cli wires lobbyd's cobra commands.
//
// Grounded on the teacher's internal/cli/root.go: a package-level
// rootCmd with subcommands registered in init(), and an exported
// Execute entry point for cmd/lobbyd/main.go.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lobbyd",
	Short: "Lobby registry server for Gang Garrison 2 and compatible games",
	Long: `lobbyd tracks which game servers are currently live and reachable.

It speaks two wire protocols over UDP/TCP:
  - the legacy Gang Garrison 2 protocol (versioned, IPv4-only, plain
    info strings)
  - the new-style protocol (UUID-framed, typed fields, optional IPv6,
    arbitrary key/value metadata)

Game servers register themselves, lobbyd verifies TCP reachability
before listing a TCP-transport server (new-style UDP-transport
servers are listed without a probe), and entries expire automatically
if not refreshed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/gg2-lobby/lobbyd/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Current().String())
		},
	}
}

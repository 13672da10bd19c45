package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the memcore version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memcore %s\n", Version)
		},
	})
}

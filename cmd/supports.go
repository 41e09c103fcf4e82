package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mdbook-env/internal/mdbook"
)

// exit is replaced in tests.
var exit = os.Exit

var supportsCmd = &cobra.Command{
	Use:   "supports <renderer>",
	Short: "Check whether a renderer is supported by this preprocessor",
	Long: `Report through the exit status whether the preprocessor runs for the
given renderer: 0 when it is supported, 1 when it is not. mdbook calls this
before every build.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if mdbook.SupportsRenderer(args[0]) {
			exit(0)
			return
		}
		exit(1)
	},
}

func init() {
	rootCmd.AddCommand(supportsCmd)
}

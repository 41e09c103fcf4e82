package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every environment template",
	Long: `Compile every registered environment and render it against a sample
block. Templates that fail to render, or whose output leaves HTML tags
unbalanced, are reported and make the command exit non-zero.

Examples:
  mdbook-env check
  mdbook-env check -c envs.json --no-builtin`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkVerbose bool

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "Print the sample rendering of each environment")
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newLocalApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	failed := 0

	for _, result := range a.registry.Check() {
		if result.OK() {
			fmt.Fprintf(out, "ok    %s\n", result.Name)
		} else {
			failed++
			fmt.Fprintf(out, "FAIL  %s\n", result.Name)
			for _, problem := range result.Problems {
				fmt.Fprintf(out, "      %s\n", problem)
			}
		}
		if checkVerbose && result.Rendered != "" {
			fmt.Fprintf(out, "%s\n\n", result.Rendered)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d environment(s) failed the check", failed)
	}
	return nil
}

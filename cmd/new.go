package cmd

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/mdbook-env/internal/config"
	"github.com/conneroisu/mdbook-env/internal/env"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Print a config snippet for a numbered environment",
	Long: `Print the configuration of a theorem-like environment ready to paste into
.mdbook-env.yml (or, with -o json, into a JSON config file). The label is
the title-cased name unless --label is given.

Examples:
  mdbook-env new corollary                     # shares the theorem counter
  mdbook-env new exercise --counter exercise   # numbered on its own
  mdbook-env new conjecture --italic --label "Open Problem"`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newCounter string
	newLabel   string
	newItalic  bool
	newFormat  string
)

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringVar(&newCounter, "counter", env.TheoremCounter, "counter id; environments sharing it share numbering")
	newCmd.Flags().StringVar(&newLabel, "label", "", "label printed before the number (default is the title-cased name)")
	newCmd.Flags().BoolVar(&newItalic, "italic", false, "italicize the body")
	newCmd.Flags().StringVarP(&newFormat, "output", "o", "yaml", "Output format (yaml|json)")
	AddFlagValidation(newCmd.Flags(), "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"yaml", "json"})
	})
}

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("environment name %q must be non-empty and contain no whitespace", name)
	}

	snippet, err := newEnvironmentConfig(name, newLabel, newCounter, newItalic)
	if err != nil {
		return err
	}

	if strings.ToLower(newFormat) == "json" {
		return outputJSON(cmd.OutOrStdout(), snippet)
	}
	return outputYAML(cmd.OutOrStdout(), snippet)
}

// newEnvironmentConfig builds a config holding one theorem-like
// environment and checks that it registers.
func newEnvironmentConfig(name, label, counterID string, italic bool) (map[string]map[string]config.EnvironmentConfig, error) {
	if label == "" {
		label = cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	}

	e := config.EnvironmentConfig{
		Template:  env.TheoremLikeTemplate(label, italic),
		CounterID: counterID,
	}

	if err := env.NewRegistry().Register(name, e.Template, e.CounterID); err != nil {
		return nil, err
	}

	return map[string]map[string]config.EnvironmentConfig{
		config.KeyEnvironments: {name: e},
	}, nil
}

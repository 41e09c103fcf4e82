package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mdbook-env/internal/env"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List all registered environments",
	Long: `List the environments a book can use: the builtins (unless --no-builtin)
and those added by configuration, with their counter and origin.

Examples:
  mdbook-env list                 # Table format
  mdbook-env list -o json         # Output as JSON
  mdbook-env list -o yaml -t      # Include templates, output as YAML`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listFlags         *StandardFlags
	listWithTemplates bool
)

// environmentInfo is one row of list output.
type environmentInfo struct {
	Name      string `json:"name" yaml:"name"`
	Label     string `json:"label" yaml:"label"`
	CounterID string `json:"counter_id,omitempty" yaml:"counter_id,omitempty"`
	Origin    string `json:"origin" yaml:"origin"`
	Template  string `json:"template,omitempty" yaml:"template,omitempty"`
}

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
	listCmd.Flags().BoolVarP(&listWithTemplates, "with-templates", "t", false, "Include environment templates")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a, err := newLocalApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	infos := describeEnvironments(a.registry.GetAll(), listWithTemplates)
	out := cmd.OutOrStdout()

	if len(infos) == 0 && listFlags.Format() == "table" {
		_, err := fmt.Fprintln(out, "No environments registered.")
		return err
	}

	switch listFlags.Format() {
	case "json":
		return outputJSON(out, infos)
	case "yaml":
		return outputYAML(out, infos)
	default:
		return outputTable(out, infos)
	}
}

func describeEnvironments(envs []*env.Environment, withTemplates bool) []environmentInfo {
	title := cases.Title(language.English)

	infos := make([]environmentInfo, 0, len(envs))
	for _, e := range envs {
		info := environmentInfo{
			Name:      e.Name,
			Label:     title.String(e.Name),
			CounterID: e.CounterID,
			Origin:    string(e.Origin),
		}
		if withTemplates {
			info.Template = e.Template
		}
		infos = append(infos, info)
	}
	return infos
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func outputYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(v)
}

func outputTable(w io.Writer, infos []environmentInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tLABEL\tCOUNTER\tORIGIN")
	fmt.Fprintln(tw, "----\t-----\t-------\t------")
	for _, info := range infos {
		counterID := info.CounterID
		if counterID == "" {
			counterID = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Label, counterID, info.Origin)
	}

	return tw.Flush()
}

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mdbook-env/internal/mdbook"
	"github.com/conneroisu/mdbook-env/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for mdbook-env including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)
- The mdbook release it was built against

Examples:
  mdbook-env version            # Show version
  mdbook-env version --short    # Version number only
  mdbook-env version -o json    # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "output", "o", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	AddFlagValidation(versionCmd.Flags(), "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"text", "json", "yaml"})
	})
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	info := version.GetBuildInfo(mdbook.SupportedVersion)

	switch strings.ToLower(versionFormat) {
	case "json":
		return outputJSON(out, info)
	case "yaml":
		return outputYAML(out, info)
	case "text":
		if versionShort {
			_, err := fmt.Fprintln(out, version.GetShortVersion())
			return err
		}
		return outputVersionText(out, info)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", versionFormat)
	}
}

func outputVersionText(w io.Writer, info *version.BuildInfo) error {
	fmt.Fprintf(w, "mdbook-env %s", info.Version)

	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}

	if info.Dirty {
		fmt.Fprint(w, " (dirty)")
	}

	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}

	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)
	fmt.Fprintf(w, "mdbook: %s\n", info.MdbookVersion)

	if version.IsRelease() {
		fmt.Fprintln(w, "Build type: release")
	} else {
		fmt.Fprintln(w, "Build type: development")
	}

	return nil
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mdbook-env/internal/logging"
	"github.com/conneroisu/mdbook-env/internal/preprocess"
)

var renderCmd = &cobra.Command{
	Use:     "render [file]",
	Aliases: []string{"r"},
	Short:   "Preprocess a single markdown file",
	Long: `Render the environments of one markdown file, or of standard input when
no file is given, and print the result. The file is treated as one chapter,
so counters start fresh.

Examples:
  mdbook-env render src/chapter_1.md
  mdbook-env render -o out.md src/chapter_1.md
  cat notes.md | mdbook-env render --no-builtin -c envs.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var renderOutput string

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write to this file instead of standard output")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newLocalApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var content []byte
	source := "stdin"
	if len(args) == 1 {
		source = args[0]
		content, err = os.ReadFile(source)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	perf := logging.StartOperation(a.logger, "render")
	result, err := preprocess.New(a.registry, a.logger).ProcessMarkdown(ctx, string(content))
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	perf.End(ctx, "source", source, "rendered", result.Rendered, "failed", result.Failed)

	for _, be := range result.Errors {
		be.Chapter = source
		a.logger.Warn(ctx, &be, "Environment failed to render")
	}

	if renderOutput == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), result.Content)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(renderOutput), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(renderOutput, []byte(result.Content), 0o644)
}

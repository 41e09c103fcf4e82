package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mdbook-env/internal/config"
	"github.com/conneroisu/mdbook-env/internal/logging"
	"github.com/conneroisu/mdbook-env/internal/preprocess"
	"github.com/conneroisu/mdbook-env/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch the book source and write preprocessed chapters",
	Long: `Preprocess every markdown file of the book source into an output
directory, then keep watching the source and update the output whenever a
chapter changes. Useful to inspect what mdbook will receive.

The source directory defaults to the [book] src of book.toml.

Examples:
  mdbook-env watch
  mdbook-env watch --src src --out build/env
  mdbook-env watch --once                # single pass, no watching`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchFlags *StandardFlags
	watchOnce  bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "verbosity")
	watchCmd.Flags().String("src", config.DefaultWatchSrc, "book source directory")
	watchCmd.Flags().String("out", config.DefaultWatchOut, "output directory")
	watchCmd.Flags().Duration("debounce", config.DefaultWatchDebounce, "delay before a batch of changes is processed")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "process the source once and exit")

	_ = viper.BindPFlag(config.KeyWatchSrc, watchCmd.Flags().Lookup("src"))
	_ = viper.BindPFlag(config.KeyWatchOut, watchCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag(config.KeyWatchDebounce, watchCmd.Flags().Lookup("debounce"))
}

// mirror writes preprocessed copies of the markdown files under src to out.
type mirror struct {
	src    string
	out    string
	pre    *preprocess.Preprocessor
	logger logging.Logger
}

func (m *mirror) target(path string) (string, error) {
	rel, err := filepath.Rel(m.src, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.out, rel), nil
}

func (m *mirror) process(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	result, err := m.pre.ProcessMarkdown(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", path, err)
	}

	target, err := m.target(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(result.Content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	for _, be := range result.Errors {
		be.Chapter = path
		m.logger.Warn(ctx, &be, "Environment failed to render")
	}
	m.logger.Debug(ctx, "Chapter written", "source", path, "target", target, "rendered", result.Rendered)
	return nil
}

func (m *mirror) remove(path string) error {
	target, err := m.target(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// all processes every markdown file under src.
func (m *mirror) all(ctx context.Context) (int, error) {
	count := 0
	err := filepath.WalkDir(m.src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != m.src && !watcher.ExcludeDirFilter(m.out)(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !watcher.MarkdownFilter(path) || !watcher.NoHiddenFilter(path) {
			return nil
		}
		count++
		return m.process(ctx, path)
	})
	return count, err
}

func (m *mirror) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	var errs []error
	for _, event := range events {
		var err error
		switch event.Type {
		case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
			err = m.remove(event.Path)
		default:
			err = m.process(ctx, event.Path)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a, err := newLocalApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	src := a.cfg.Watch.Src
	if !cmd.Flags().Changed("src") && src == config.DefaultWatchSrc {
		if book, err := readLocalBook(cmd); err == nil && book != nil {
			src = filepath.Join(filepath.Dir(bookFile), book.SourceDir())
		}
	}

	m := &mirror{
		src:    src,
		out:    a.cfg.Watch.Out,
		pre:    preprocess.New(a.registry, a.logger),
		logger: a.logger.WithComponent("watch"),
	}

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	count, err := m.all(ctx)
	if err != nil {
		return err
	}
	if !watchFlags.Quiet {
		fmt.Fprintf(out, "Processed %d chapter(s) from %s into %s\n", count, m.src, m.out)
	}
	if watchOnce {
		return nil
	}

	fileWatcher, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.MarkdownFilter)
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.ExcludeDirFilter(m.out))

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		if watchFlags.Verbose {
			for _, event := range events {
				fmt.Fprintf(out, "  %s: %s\n", event.Type, event.Path)
			}
		} else if !watchFlags.Quiet {
			fmt.Fprintf(out, "%d file(s) changed\n", len(events))
		}
		return m.handle(ctx, events)
	})

	if err := fileWatcher.AddRecursive(m.src); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.src, err)
	}
	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	if !watchFlags.Quiet {
		fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")
	}

	<-ctx.Done()
	return nil
}

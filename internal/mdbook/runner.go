package mdbook

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
	"github.com/conneroisu/mdbook-env/internal/logging"
	"github.com/conneroisu/mdbook-env/internal/preprocess"
)

// Name is the preprocessor name used in book.toml.
const Name = "env"

// SupportedVersion is the mdbook release the preprocessor is built against.
const SupportedVersion = "0.4.40"

// SupportsRenderer reports whether the preprocessor runs for renderer.
func SupportsRenderer(renderer string) bool {
	return renderer != "not-supported"
}

// CompatibleVersion reports whether version is in the same release series
// as SupportedVersion. Unparseable versions are incompatible.
func CompatibleVersion(version string) bool {
	v := "v" + strings.TrimPrefix(strings.TrimSpace(version), "v")
	if !semver.IsValid(v) {
		return false
	}
	return semver.MajorMinor(v) == semver.MajorMinor("v"+SupportedVersion)
}

// Runner preprocesses whole books.
type Runner struct {
	pre       *preprocess.Preprocessor
	workers   int
	logger    logging.Logger
	collector *enverrors.ErrorCollector
}

// NewRunner creates a runner processing up to workers chapters at a time.
func NewRunner(pre *preprocess.Preprocessor, workers int, logger logging.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{
		pre:       pre,
		workers:   workers,
		logger:    logger.WithComponent("mdbook"),
		collector: enverrors.NewErrorCollector(),
	}
}

// Errors returns the block failures of every run so far.
func (r *Runner) Errors() *enverrors.ErrorCollector {
	return r.collector
}

// Setup builds the runner for one invocation from the [context] mdbook
// sent, typically from its [preprocessor.env] table.
type Setup func(bookCtx *Context) (*Runner, error)

// Run reads [context, book] from in, preprocesses every chapter with the
// runner setup returns and writes the book to out. Nothing is written when
// any step fails.
func Run(ctx context.Context, in io.Reader, out io.Writer, setup Setup) error {
	bookCtx, book, err := ReadInput(in)
	if err != nil {
		return err
	}

	r, err := setup(bookCtx)
	if err != nil {
		return err
	}

	r.CheckVersion(ctx, bookCtx.MdbookVersion)

	if err := r.ProcessBook(ctx, book); err != nil {
		return err
	}
	r.reportFailures(ctx, book, bookCtx.Renderer)

	return WriteBook(out, book)
}

// reportFailures logs one warning per chapter with failed blocks.
func (r *Runner) reportFailures(ctx context.Context, book Book, renderer string) {
	if !r.collector.HasErrors() {
		return
	}

	seen := make(map[string]bool)
	for _, ch := range book.Chapters() {
		if seen[ch.Name()] {
			continue
		}
		seen[ch.Name()] = true

		failed := r.collector.GetErrorsByChapter(ch.Name())
		if len(failed) == 0 {
			continue
		}
		envs := make([]string, 0, len(failed))
		for _, be := range failed {
			envs = append(envs, be.Environment)
		}
		r.logger.Warn(ctx, nil, "Some environments failed to render",
			"chapter", ch.Name(),
			"count", len(failed),
			"environments", strings.Join(envs, ","),
			"renderer", renderer)
	}
}

// CheckVersion logs a warning when mdbook's version is outside the
// supported series.
func (r *Runner) CheckVersion(ctx context.Context, version string) {
	if CompatibleVersion(version) {
		return
	}
	r.logger.Warn(ctx, nil, fmt.Sprintf(
		"The %s preprocessor was built against version %s of mdbook, but we're being called from version %s",
		Name, SupportedVersion, version))
}

// ProcessBook runs one pass per chapter, each with its own counters.
// Chapters are processed concurrently; the first error cancels the rest.
func (r *Runner) ProcessBook(ctx context.Context, book Book) error {
	chapters := book.Chapters()
	perf := logging.StartOperation(r.logger, "process_book")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, ch := range chapters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return r.processChapter(gctx, ch)
		})
	}

	if err := g.Wait(); err != nil {
		perf.EndWithError(ctx, err)
		return err
	}

	perf.End(ctx, "chapters", len(chapters))
	return nil
}

func (r *Runner) processChapter(ctx context.Context, ch *Chapter) error {
	result, err := r.pre.ProcessMarkdown(ctx, ch.Content())
	if err != nil {
		return fmt.Errorf("chapter %q: %w", ch.Name(), err)
	}

	for _, be := range result.Errors {
		be.Chapter = ch.Name()
		r.collector.Add(be)
	}

	ch.SetContent(result.Content)

	r.logger.Debug(ctx, "Chapter processed",
		"chapter", ch.Name(),
		"path", ch.Path(),
		"rendered", result.Rendered,
		"failed", result.Failed)
	return nil
}

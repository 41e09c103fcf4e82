// Package preprocess rewrites environment code blocks in one document.
//
// A pass walks the document's structural events once. Top-level headings
// advance every live counter to the next chapter, second-level headings to
// the next section. Each fenced code block whose info string names a
// registered environment is rendered with the current value of its counter,
// and all rendered blocks are spliced back into the text at the end.
//
// Failures are local to a block: an empty info string or an unknown name
// leaves the block untouched, a render failure replaces the block with the
// error text so the author sees it.
package preprocess

import (
	"context"
	"fmt"

	"github.com/conneroisu/mdbook-env/internal/counter"
	"github.com/conneroisu/mdbook-env/internal/document"
	"github.com/conneroisu/mdbook-env/internal/env"
	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
	"github.com/conneroisu/mdbook-env/internal/logging"
	"github.com/conneroisu/mdbook-env/internal/markdown"
)

// Heading levels that advance counters.
const (
	ChapterLevel = 1
	SectionLevel = 2
)

// Result describes one finished pass.
type Result struct {
	Content  string
	Rendered int
	Failed   int
	Skipped  int
	Errors   []enverrors.BlockError
}

// Preprocessor runs document passes against a shared registry.
type Preprocessor struct {
	registry *env.Registry
	parser   *markdown.Parser
	logger   logging.Logger
}

// New creates a preprocessor. The registry must be fully populated before
// the first pass and not modified afterwards.
func New(registry *env.Registry, logger logging.Logger) *Preprocessor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Preprocessor{
		registry: registry,
		parser:   markdown.NewParser(),
		logger:   logger.WithComponent("preprocess"),
	}
}

// Registry returns the registry the preprocessor renders with.
func (p *Preprocessor) Registry() *env.Registry {
	return p.registry
}

// ProcessMarkdown parses content as markdown and runs one pass over it.
func (p *Preprocessor) ProcessMarkdown(ctx context.Context, content string) (*Result, error) {
	return p.Process(ctx, content, p.parser.Events(content))
}

// Process runs one pass over content driven by events. Every pass gets its
// own counters, so passes may run concurrently.
func (p *Preprocessor) Process(ctx context.Context, content string, events document.EventSource) (*Result, error) {
	counters := p.registry.Counters()
	result := &Result{}
	var subs []document.Substitution

	for {
		event, ok := events.Next()
		if !ok {
			break
		}

		switch event.Kind {
		case document.EventHeading:
			switch event.Level {
			case ChapterLevel:
				counters.NextChapter()
			case SectionLevel:
				counters.NextSection()
			}

		case document.EventCodeBlock:
			sub, ok := p.processBlock(ctx, content, event, counters, result)
			if ok {
				subs = append(subs, sub)
			}
		}
	}

	out, err := document.Splice(content, subs)
	if err != nil {
		return nil, fmt.Errorf("failed to apply substitutions: %w", err)
	}
	result.Content = out

	p.logger.Debug(ctx, "Document processed",
		"rendered", result.Rendered,
		"failed", result.Failed,
		"skipped", result.Skipped)

	return result, nil
}

func (p *Preprocessor) processBlock(
	ctx context.Context,
	content string,
	event document.Event,
	counters counter.Set,
	result *Result,
) (document.Substitution, bool) {
	span := event.Span
	if span.Start < 0 || span.End > len(content) || span.End < span.Start {
		result.Skipped++
		p.logger.Warn(ctx, nil, "Code block span out of range", "start", span.Start, "end", span.End)
		return document.Substitution{}, false
	}

	block, err := env.ParseBlock(event.Info, content[span.Start:span.End])
	if err != nil {
		result.Skipped++
		return document.Substitution{}, false
	}

	environment, ok := p.registry.Get(block.Info.Name)
	if !ok {
		result.Skipped++
		p.logger.Debug(ctx, "Skipping code block", "info", event.Info)
		return document.Substitution{}, false
	}

	c, _ := counters.Take(environment.CounterID)

	rendered, err := p.registry.Render(block, c)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, enverrors.BlockError{
			Environment: block.Info.Name,
			Offset:      span.Start,
			Message:     err.Error(),
			Severity:    enverrors.ErrorSeverityWarning,
		})
		p.logger.Warn(ctx, err, "Failed to render environment",
			"environment", block.Info.Name,
			"offset", span.Start)
		rendered = err.Error()
	} else {
		result.Rendered++
	}

	return document.Substitution{Span: span, Text: rendered}, true
}

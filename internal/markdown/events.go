// Package markdown turns a markdown document into the structural events
// consumed by the preprocessor, using goldmark for parsing.
//
// goldmark does not record where a fenced code block ends, so the closing
// fence is located from the last content line. Blocks that run to the end
// of the document without a closing fence, and blocks without an info
// string, are not reported as code blocks.
package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/conneroisu/mdbook-env/internal/document"
)

// Parser builds event sources for markdown documents. It is safe for
// concurrent use.
type Parser struct {
	md goldmark.Markdown
}

// NewParser returns a parser with the extensions mdbook enables: tables,
// footnotes, strikethrough and task lists.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Footnote,
				extension.Strikethrough,
				extension.TaskList,
			),
		),
	}
}

// Events parses content and returns its heading and fenced code block
// events in document order.
func (p *Parser) Events(content string) document.EventSource {
	src := []byte(content)
	doc := p.md.Parser().Parse(text.NewReader(src))

	var events []document.Event
	last := 0

	// The walker never returns an error.
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			span := linesSpan(src, node.Lines(), last)
			last = span.Start
			events = append(events, document.Event{
				Kind:  document.EventHeading,
				Level: node.Level,
				Span:  span,
			})
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			// No info string means no environment name.
			if node.Info == nil {
				return ast.WalkSkipChildren, nil
			}

			span, ok := fenceSpan(src, node)
			if !ok {
				return ast.WalkSkipChildren, nil
			}
			last = span.Start
			events = append(events, document.Event{
				Kind: document.EventCodeBlock,
				Info: string(node.Info.Segment.Value(src)),
				Span: span,
			})
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	return document.NewSliceSource(events...)
}

// linesSpan covers the lines of a block from the start of its first line.
// Blocks without lines get an empty span at fallback.
func linesSpan(src []byte, lines *text.Segments, fallback int) document.Span {
	if lines == nil || lines.Len() == 0 {
		return document.Span{Start: fallback, End: fallback}
	}
	return document.Span{
		Start: lineStart(src, lines.At(0).Start),
		End:   lines.At(lines.Len() - 1).Stop,
	}
}

// fenceSpan locates a fenced code block from the first character of its
// opening fence to the last character of its closing fence. The opening
// fence is found backwards from the info string, so list markers and
// blockquote markers before it on the same line are not part of the span.
func fenceSpan(src []byte, node *ast.FencedCodeBlock) (document.Span, bool) {
	infoStart := node.Info.Segment.Start

	fenceEnd := infoStart
	for fenceEnd > 0 && (src[fenceEnd-1] == ' ' || src[fenceEnd-1] == '\t') {
		fenceEnd--
	}
	if fenceEnd == 0 || (src[fenceEnd-1] != '`' && src[fenceEnd-1] != '~') {
		return document.Span{}, false
	}
	fence := src[fenceEnd-1]
	open := fenceEnd
	for open > 0 && src[open-1] == fence {
		open--
	}
	openLen := fenceEnd - open
	if openLen < 3 {
		return document.Span{}, false
	}

	var contentEnd int
	lines := node.Lines()
	if lines.Len() > 0 {
		contentEnd = lines.At(lines.Len() - 1).Stop
	} else {
		contentEnd = infoStart
	}
	if contentEnd == 0 || src[contentEnd-1] != '\n' {
		contentEnd = lineEnd(src, contentEnd)
		if contentEnd >= len(src) {
			return document.Span{}, false
		}
		contentEnd++
	}

	closing := skipPrefix(src, contentEnd)
	closeLen := runLength(src, closing, fence)
	if closeLen < openLen {
		return document.Span{}, false
	}

	return document.Span{Start: open, End: closing + closeLen}, true
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the index of the newline ending the line at pos, or
// len(src) for the last line.
func lineEnd(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	return pos
}

// skipPrefix skips indentation and blockquote markers.
func skipPrefix(src []byte, pos int) int {
	for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t' || src[pos] == '>') {
		pos++
	}
	return pos
}

func runLength(src []byte, pos int, c byte) int {
	n := 0
	for pos+n < len(src) && src[pos+n] == c {
		n++
	}
	return n
}

package preprocess

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mdbook-env/internal/document"
	"github.com/conneroisu/mdbook-env/internal/env"
)

func builtinPreprocessor(t *testing.T) *Preprocessor {
	t.Helper()
	r := env.NewRegistry()
	r.RegisterBuiltin(env.BuiltinAll)
	return New(r, nil)
}

func process(t *testing.T, p *Preprocessor, content string) *Result {
	t.Helper()
	result, err := p.ProcessMarkdown(context.Background(), content)
	require.NoError(t, err)
	return result
}

func TestProcessProof(t *testing.T) {
	p := builtinPreprocessor(t)

	result := process(t, p, "```proof\nThe proof.\n```")
	assert.Equal(t, "\n*Proof.* The proof.<p style='width: 100%; text-align: right;'>▯</p>", result.Content)
	assert.Equal(t, 1, result.Rendered)
}

func TestProcessSharedCounter(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "```theorem\nA\n```\n\n```lemma\nB\n```\n\n```remark\nC\n```\n"
	result := process(t, p, content)

	assert.Equal(t,
		"\n**Theorem 1.** *A*\n\n"+
			"\n**Lemma 2.** *B*\n\n"+
			"\n**Remark 3.** C\n",
		result.Content)
	assert.Equal(t, 3, result.Rendered)
}

func TestProcessSectionNumbering(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "## First\n\n## Second\n\n```theorem\nx\n```\n"
	result := process(t, p, content)

	assert.Equal(t, "## First\n\n## Second\n\n\n**Theorem 2.1.** *x*\n", result.Content)
}

func TestProcessChapterNumbering(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "# Intro\n\n```theorem\na\n```\n\n```definition\nb\n```\n\n# Next\n\n```lemma\nc\n```\n"
	result := process(t, p, content)

	assert.Contains(t, result.Content, "**Theorem 1.1.**")
	assert.Contains(t, result.Content, "**Definition 1.2.**")
	assert.Contains(t, result.Content, "**Lemma 2.1.**")
}

func TestProcessChapterAndSection(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "# Chapter\n\n## Section\n\n```theorem\na\n```\n\n# Chapter two\n\n```theorem\nb\n```\n"
	result := process(t, p, content)

	assert.Contains(t, result.Content, "**Theorem 1.1.1.**")
	assert.Contains(t, result.Content, "**Theorem 2.1.1.**", "a tracked section restarts at 1")
}

func TestProcessTitledTheorem(t *testing.T) {
	p := builtinPreprocessor(t)

	result := process(t, p, "```theorem \"Pythagoras\"\na² + b² = c²\n```\n")
	assert.Equal(t, "\n**Theorem 1** (Pythagoras)**.** *a² + b² = c²*\n", result.Content)
}

func TestProcessUncountedEnvironmentsDoNotAdvance(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "```theorem\na\n```\n\n```proof\np\n```\n\n```center\nc\n```\n\n```lemma\nb\n```\n"
	result := process(t, p, content)

	assert.Contains(t, result.Content, "**Theorem 1.**")
	assert.Contains(t, result.Content, "**Lemma 2.**")
	assert.Contains(t, result.Content, "<center>\n\nc\n\n</center>")
}

func TestProcessUnknownEnvironmentUntouched(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "# Code\n\n```rust\nfn main() {}\n```\n\n```\nplain\n```\n\n    indented\n"
	result := process(t, p, content)

	assert.Equal(t, content, result.Content)
	assert.Equal(t, 0, result.Rendered)
	assert.Equal(t, 1, result.Skipped, "blocks without an info string are not events")
}

func TestProcessEnvironmentsInLists(t *testing.T) {
	p := builtinPreprocessor(t)

	content := "- ```theorem\n  a\n  ```\n\n1. ```lemma\n   b\n   ```\n\n> - ```remark\n>   c\n>   ```\n"
	result := process(t, p, content)

	assert.Equal(t, 3, result.Rendered)
	assert.Equal(t,
		"- \n**Theorem 1.** *a*\n\n"+
			"1. \n**Lemma 2.** *b*\n\n"+
			"> - \n**Remark 3.** >   c\n>\n",
		result.Content)
}

func TestProcessTextOutsideBlocksPreserved(t *testing.T) {
	p := builtinPreprocessor(t)

	before := "Some *prose* with  two spaces\r\nand a tab\t.\n\n"
	after := "\n\nTrailing text without newline"
	result := process(t, p, before+"```center\nmid\n```"+after)

	require.True(t, strings.HasPrefix(result.Content, before))
	require.True(t, strings.HasSuffix(result.Content, after))
}

func TestProcessRenderFailureSubstitutesMessage(t *testing.T) {
	r := env.NewRegistry()
	require.NoError(t, r.Register("broken", "{{index .args 4}}", ""))
	p := New(r, nil)

	result := process(t, p, "before\n\n```broken\nbody\n```\n\nafter\n")

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Environment)
	assert.Contains(t, result.Content, "render error occurred")
	assert.NotContains(t, result.Content, "```broken")
	assert.True(t, strings.HasPrefix(result.Content, "before\n\n\n"))
	assert.True(t, strings.HasSuffix(result.Content, "\n\nafter\n"))
}

func TestProcessEventSource(t *testing.T) {
	p := builtinPreprocessor(t)

	block := "```theorem\nbody\n```"
	content := "HEAD" + block + "TAIL"
	events := document.NewSliceSource(
		document.Event{Kind: document.EventHeading, Level: 1},
		document.Event{Kind: document.EventCodeBlock, Info: "theorem", Span: document.Span{Start: 4, End: 4 + len(block)}},
	)

	result, err := p.Process(context.Background(), content, events)
	require.NoError(t, err)
	assert.Equal(t, "HEAD\n**Theorem 1.1.** *body*TAIL", result.Content)
}

func TestProcessSkipsOutOfRangeSpan(t *testing.T) {
	p := builtinPreprocessor(t)

	events := document.NewSliceSource(
		document.Event{Kind: document.EventCodeBlock, Info: "proof", Span: document.Span{Start: 2, End: 99}},
	)

	result, err := p.Process(context.Background(), "short", events)
	require.NoError(t, err)
	assert.Equal(t, "short", result.Content)
	assert.Equal(t, 1, result.Skipped)
}

func TestProcessCountersAreFreshPerPass(t *testing.T) {
	p := builtinPreprocessor(t)
	content := "```theorem\nx\n```\n"

	first := process(t, p, content)
	second := process(t, p, content)
	assert.Equal(t, first.Content, second.Content)
	assert.Contains(t, second.Content, "**Theorem 1.**")
}

func TestProcessConcurrentPasses(t *testing.T) {
	p := builtinPreprocessor(t)
	content := "# A\n\n```theorem\nx\n```\n\n```lemma\ny\n```\n"
	want := process(t, p, content).Content

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.ProcessMarkdown(context.Background(), content)
			assert.NoError(t, err)
			assert.Equal(t, want, result.Content)
		}()
	}
	wg.Wait()
}

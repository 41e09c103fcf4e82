package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mdbook-env/internal/config"
	"github.com/conneroisu/mdbook-env/internal/env"
	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
	"github.com/conneroisu/mdbook-env/internal/preprocess"
	"github.com/conneroisu/mdbook-env/internal/watcher"
)

// newTestCommand resets global configuration state and returns a command
// writing its output to the returned buffer.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	configErr = nil
	cfgFile = ""
	bookFile = filepath.Join(t.TempDir(), "book.toml")
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	return cmd, &out
}

func bookInput(preprocessor, content string) string {
	chapter, _ := json.Marshal(content)
	return `[
  {
    "root": "/book",
    "config": {"book": {"src": "src"}, "preprocessor": {"env": ` + preprocessor + `}},
    "renderer": "html",
    "mdbook_version": "0.4.40"
  },
  {
    "sections": [
      {"Chapter": {
        "name": "One",
        "content": ` + string(chapter) + `,
        "number": [1],
        "sub_items": [],
        "path": "one.md",
        "source_path": "one.md",
        "parent_names": []
      }}
    ],
    "__non_exhaustive": null
  }
]`
}

func firstChapterContent(t *testing.T, output []byte) string {
	t.Helper()

	var book map[string]interface{}
	require.NoError(t, json.Unmarshal(output, &book))

	sections := book["sections"].([]interface{})
	require.Len(t, sections, 1)
	chapter := sections[0].(map[string]interface{})["Chapter"].(map[string]interface{})
	return chapter["content"].(string)
}

func TestSupportsCommand(t *testing.T) {
	defer func(orig func(int)) { exit = orig }(exit)

	tests := []struct {
		renderer string
		code     int
	}{
		{"html", 0},
		{"markdown", 0},
		{"not-supported", 1},
	}

	for _, tt := range tests {
		t.Run(tt.renderer, func(t *testing.T) {
			code := -1
			exit = func(c int) { code = c }

			supportsCmd.Run(supportsCmd, []string{tt.renderer})
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRunPreprocess(t *testing.T) {
	cmd, out := newTestCommand(t)
	cmd.SetIn(strings.NewReader(bookInput(`{"command": "mdbook-env"}`, "```theorem\nX\n```\n")))

	require.NoError(t, runPreprocess(cmd, nil))
	assert.Equal(t, "\n**Theorem 1.** *X*\n", firstChapterContent(t, out.Bytes()))
}

func TestRunPreprocessBookEnvironments(t *testing.T) {
	cmd, out := newTestCommand(t)
	table := `{"environments": {"claim": {"template": "CLAIM {{.counter}}: {{.body}}", "counter_id": "theorem"}}}`
	cmd.SetIn(strings.NewReader(bookInput(table, "```theorem\nA\n```\n\n```claim\nB\n```\n")))

	require.NoError(t, runPreprocess(cmd, nil))
	assert.Equal(t, "\n**Theorem 1.** *A*\n\n\nCLAIM 2: B\n", firstChapterContent(t, out.Bytes()))
}

func TestRunPreprocessNoBuiltin(t *testing.T) {
	cmd, out := newTestCommand(t)
	content := "```theorem\nX\n```\n"
	cmd.SetIn(strings.NewReader(bookInput(`{"no-builtin": true}`, content)))

	require.NoError(t, runPreprocess(cmd, nil))
	assert.Equal(t, content, firstChapterContent(t, out.Bytes()))
}

func TestRunPreprocessInvalidInput(t *testing.T) {
	cmd, out := newTestCommand(t)
	cmd.SetIn(strings.NewReader("not json"))

	err := runPreprocess(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preprocessor error")
	assert.Empty(t, out.String())
}

func TestRunPreprocessInvalidBookConfig(t *testing.T) {
	cmd, out := newTestCommand(t)
	cmd.SetIn(strings.NewReader(bookInput(`{"environments": {"bad": {"template": "{{.body"}}}`, "text")))

	err := runPreprocess(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preprocessor error: environment `bad` has a malformed template")
	assert.True(t, enverrors.IsTemplateSyntaxError(err))
	assert.Empty(t, out.String())
}

func TestRenderCommandStdin(t *testing.T) {
	cmd, out := newTestCommand(t)
	cmd.SetIn(strings.NewReader("```lemma\nL\n```"))

	require.NoError(t, runRender(cmd, nil))
	assert.Equal(t, "\n**Lemma 1.** *L*", out.String())
}

func TestRenderCommandFile(t *testing.T) {
	cmd, out := newTestCommand(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "chapter.md")
	require.NoError(t, os.WriteFile(source, []byte("# Title\n\n```definition\nD\n```\n"), 0o644))

	renderOutput = filepath.Join(dir, "out", "chapter.md")
	defer func() { renderOutput = "" }()

	require.NoError(t, runRender(cmd, []string{source}))
	assert.Empty(t, out.String())

	written, err := os.ReadFile(renderOutput)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n\n**Definition 1.1.** D\n", string(written))
}

func TestRenderCommandMissingFile(t *testing.T) {
	cmd, _ := newTestCommand(t)

	err := runRender(cmd, []string{filepath.Join(t.TempDir(), "missing.md")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestListCommand(t *testing.T) {
	defer func() {
		listFlags.OutputFormat = "table"
		listWithTemplates = false
	}()

	t.Run("table", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		listFlags.OutputFormat = "table"

		require.NoError(t, runList(cmd, nil))
		assert.Contains(t, out.String(), "NAME")
		assert.Contains(t, out.String(), "theorem")
		assert.Contains(t, out.String(), "builtin")

		for _, line := range strings.Split(out.String(), "\n") {
			if strings.HasPrefix(line, "center") {
				assert.Contains(t, line, "-", "uncounted environments show no counter")
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		listFlags.OutputFormat = "json"

		require.NoError(t, runList(cmd, nil))

		var infos []environmentInfo
		require.NoError(t, json.Unmarshal(out.Bytes(), &infos))
		require.Len(t, infos, len(env.BuiltinNames()))
		assert.Equal(t, "boxed", infos[0].Name)
		assert.Equal(t, "Boxed", infos[0].Label)
		assert.Empty(t, infos[0].Template)
	})

	t.Run("yaml with templates", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		listFlags.OutputFormat = "yaml"
		listWithTemplates = true
		viper.Set(config.KeyEnvironments, map[string]interface{}{
			"axiom": map[string]interface{}{"template": "AXIOM {{.body}}"},
		})

		require.NoError(t, runList(cmd, nil))

		var infos []environmentInfo
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &infos))

		var axiom *environmentInfo
		for i := range infos {
			if infos[i].Name == "axiom" {
				axiom = &infos[i]
			}
		}
		require.NotNil(t, axiom)
		assert.Equal(t, "config", axiom.Origin)
		assert.Equal(t, "AXIOM {{.body}}", axiom.Template)
	})

	t.Run("empty", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		listFlags.OutputFormat = "table"
		listWithTemplates = false
		viper.Set(config.KeyNoBuiltin, true)

		require.NoError(t, runList(cmd, nil))
		assert.Equal(t, "No environments registered.\n", out.String())
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("builtins pass", func(t *testing.T) {
		cmd, out := newTestCommand(t)

		require.NoError(t, runCheck(cmd, nil))
		for _, name := range env.BuiltinNames() {
			assert.Contains(t, out.String(), "ok    "+name)
		}
	})

	t.Run("unbalanced template fails", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		viper.Set(config.KeyNoBuiltin, true)
		viper.Set(config.KeyEnvironments, map[string]interface{}{
			"open": map[string]interface{}{"template": "<div>{{.body}}"},
		})

		err := runCheck(cmd, nil)
		require.Error(t, err)
		assert.Contains(t, out.String(), "FAIL  open")
		assert.Contains(t, out.String(), "unclosed <div>")
	})
}

func TestNewCommand(t *testing.T) {
	defer func() {
		newCounter = env.TheoremCounter
		newLabel = ""
		newItalic = false
		newFormat = "yaml"
	}()

	t.Run("yaml", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		newFormat = "yaml"

		require.NoError(t, runNew(cmd, []string{"corollary"}))

		var snippet map[string]map[string]config.EnvironmentConfig
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &snippet))

		e := snippet["environments"]["corollary"]
		assert.Equal(t, env.TheoremLikeTemplate("Corollary", false), e.Template)
		assert.Equal(t, env.TheoremCounter, e.CounterID)
	})

	t.Run("json with label", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		newFormat = "json"
		newLabel = "Open Problem"
		newItalic = true
		newCounter = "problem"

		require.NoError(t, runNew(cmd, []string{"conjecture"}))

		var snippet map[string]map[string]config.EnvironmentConfig
		require.NoError(t, json.Unmarshal(out.Bytes(), &snippet))

		e := snippet["environments"]["conjecture"]
		assert.Contains(t, e.Template, "**Open Problem {{.counter}}.**")
		assert.Contains(t, e.Template, "*{{.body}}*")
		assert.Equal(t, "problem", e.CounterID)
	})

	t.Run("whitespace name", func(t *testing.T) {
		cmd, _ := newTestCommand(t)
		assert.Error(t, runNew(cmd, []string{"two words"}))
	})
}

func TestNewEnvironmentConfigLabel(t *testing.T) {
	snippet, err := newEnvironmentConfig("worked_example", "", "", false)
	require.NoError(t, err)

	e := snippet[config.KeyEnvironments]["worked_example"]
	assert.Contains(t, e.Template, "**Worked Example {{.counter}}.**")
	assert.Empty(t, e.CounterID)
}

func TestWatchOnce(t *testing.T) {
	cmd, out := newTestCommand(t)

	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "part"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.md"), []byte("```theorem\nA\n```"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "part", "b.md"), []byte("```lemma\nB\n```"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("```lemma\nB\n```"), 0o644))

	viper.Set(config.KeyWatchSrc, src)
	viper.Set(config.KeyWatchOut, dest)
	watchOnce = true
	defer func() { watchOnce = false }()

	require.NoError(t, runWatch(cmd, nil))
	assert.Contains(t, out.String(), "Processed 2 chapter(s)")

	a, err := os.ReadFile(filepath.Join(dest, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "\n**Theorem 1.** *A*", string(a))

	b, err := os.ReadFile(filepath.Join(dest, "part", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "\n**Lemma 1.** *B*", string(b), "every file is its own chapter")

	assert.NoFileExists(t, filepath.Join(dest, "notes.txt"))
}

func TestMirrorHandle(t *testing.T) {
	cmd, _ := newTestCommand(t)
	a, err := newLocalApp(cmd)
	require.NoError(t, err)
	defer a.close()

	src := t.TempDir()
	dest := t.TempDir()
	m := &mirror{src: src, out: dest, pre: preprocess.New(a.registry, a.logger), logger: a.logger}

	path := filepath.Join(src, "c.md")
	require.NoError(t, os.WriteFile(path, []byte("```remark\nR\n```"), 0o644))

	ctx := context.Background()
	require.NoError(t, m.handle(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeCreated, Path: path}}))

	written, err := os.ReadFile(filepath.Join(dest, "c.md"))
	require.NoError(t, err)
	assert.Equal(t, "\n**Remark 1.** R", string(written))

	require.NoError(t, os.Remove(path))
	require.NoError(t, m.handle(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeDeleted, Path: path}}))
	assert.NoFileExists(t, filepath.Join(dest, "c.md"))

	assert.NoError(t, m.handle(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeDeleted, Path: path}}),
		"removing an output twice is not an error")
}

func TestVersionCommand(t *testing.T) {
	defer func() {
		versionFormat = "text"
		versionShort = false
	}()

	t.Run("text", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		versionFormat = "text"

		require.NoError(t, runVersionCommand(cmd, nil))
		assert.True(t, strings.HasPrefix(out.String(), "mdbook-env "))
		assert.Contains(t, out.String(), "mdbook: 0.4.40")
	})

	t.Run("json", func(t *testing.T) {
		cmd, out := newTestCommand(t)
		versionFormat = "json"

		require.NoError(t, runVersionCommand(cmd, nil))

		var info map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &info))
		assert.Equal(t, "0.4.40", info["mdbook_version"])
		assert.Contains(t, info, "go_version")
	})

	t.Run("unsupported", func(t *testing.T) {
		cmd, _ := newTestCommand(t)
		versionFormat = "xml"

		assert.Error(t, runVersionCommand(cmd, nil))
	})
}

func TestValidateFormatWithSuggestion(t *testing.T) {
	assert.NoError(t, ValidateFormatWithSuggestion("JSON", outputFormats))

	err := ValidateFormatWithSuggestion("ya", outputFormats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "yaml"`)

	err = ValidateFormatWithSuggestion("xml", outputFormats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of: table, json, yaml")
}

func TestValidatePositiveInt(t *testing.T) {
	assert.NoError(t, ValidatePositiveInt("4"))
	assert.Error(t, ValidatePositiveInt("0"))
	assert.Error(t, ValidatePositiveInt("four"))
}

func TestValidateFileExists(t *testing.T) {
	assert.NoError(t, ValidateFileExists(""))
	assert.Error(t, ValidateFileExists(filepath.Join(t.TempDir(), "missing.yml")))
}

func TestAddFlagValidation(t *testing.T) {
	cmd := &cobra.Command{}
	var workers int
	cmd.Flags().IntVar(&workers, "workers", 1, "")
	AddFlagValidation(cmd.Flags(), "workers", ValidatePositiveInt)

	assert.Error(t, cmd.Flags().Set("workers", "0"))
	assert.Equal(t, 1, workers)

	require.NoError(t, cmd.Flags().Set("workers", "8"))
	assert.Equal(t, 8, workers)
}

func TestStandardFlagsQuietVerbose(t *testing.T) {
	flags := &StandardFlags{Verbose: true, Quiet: true}
	assert.Error(t, flags.ValidateFlags())
}

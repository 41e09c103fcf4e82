package env

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/mdbook-env/internal/counter"
)

// CheckResult is the outcome of rendering one environment against a sample
// block.
type CheckResult struct {
	Name     string
	Rendered string
	Problems []string
}

// OK reports whether the environment rendered cleanly.
func (c CheckResult) OK() bool {
	return len(c.Problems) == 0
}

// sampleArgs fill every argument a builtin template can test.
var sampleArgs = []string{"Sample title", "gray"}

// Check renders every registered environment against a sample block and
// reports render failures and unbalanced HTML tags in the output.
func (r *Registry) Check() []CheckResult {
	envs := r.GetAll()
	results := make([]CheckResult, 0, len(envs))

	sample := counter.New()
	sample.NextChapter()
	sample.NextSection()

	for _, e := range envs {
		block := Block{
			Info: Info{Name: e.Name, Args: sampleArgs},
			Body: "Sample body.",
		}

		result := CheckResult{Name: e.Name}
		rendered, err := r.Render(block, sample)
		if err != nil {
			result.Problems = append(result.Problems, err.Error())
		} else {
			result.Rendered = rendered
			result.Problems = append(result.Problems, unbalancedTags(rendered)...)
		}
		results = append(results, result)
	}

	return results
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// unbalancedTags tokenizes s and reports end tags without a matching start
// tag and start tags left open.
func unbalancedTags(s string) []string {
	var problems []string
	var open []string

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				problems = append(problems, z.Err().Error())
			}
			break
		}

		tok := z.Token()
		switch tt {
		case html.StartTagToken:
			if !voidElements[tok.Data] {
				open = append(open, tok.Data)
			}
		case html.EndTagToken:
			if len(open) == 0 || open[len(open)-1] != tok.Data {
				problems = append(problems, fmt.Sprintf("unexpected </%s>", tok.Data))
				continue
			}
			open = open[:len(open)-1]
		}
	}

	for i := len(open) - 1; i >= 0; i-- {
		problems = append(problems, fmt.Sprintf("unclosed <%s>", open[i]))
	}
	return problems
}

package env

import (
	"regexp"
	"strings"

	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// argumentPattern matches one argument: a double-quoted span, a single-quoted
// span, or a bare run of non-space non-quote characters, followed by
// whitespace or the end of input. Escaped quotes are matched but never
// unescaped.
var argumentPattern = regexp.MustCompile(`("(?:\\"|[^"])+"|'(?:\\'|[^'])+'|[^"'\s]+)(?:\s|$)`)

// Info is the parsed info string of a fenced code block: an environment name
// followed by positional arguments.
type Info struct {
	Name string
	Args []string
}

// ParseInfo splits an info string such as `theorem "Fermat's Last Theorem"`
// into a name and its arguments. Only an empty info string is an error; an
// unrecognized name is left for the registry lookup to reject.
func ParseInfo(info string) (Info, error) {
	info = strings.TrimSpace(info)
	if info == "" {
		return Info{}, enverrors.NewHeaderParseError(info)
	}

	i := strings.IndexFunc(info, isSpace)
	if i < 0 {
		return Info{Name: info, Args: []string{}}, nil
	}

	return Info{
		Name: info[:i],
		Args: parseArguments(info[i:]),
	}, nil
}

// HasArg reports whether positional argument i was supplied.
func (i Info) HasArg(n int) bool {
	return n >= 0 && n < len(i.Args)
}

// Arg returns positional argument n, or "" when it was not supplied.
func (i Info) Arg(n int) string {
	if !i.HasArg(n) {
		return ""
	}
	return i.Args[n]
}

func parseArguments(rest string) []string {
	matches := argumentPattern.FindAllStringSubmatch(rest, -1)
	args := make([]string, 0, len(matches))
	for _, m := range matches {
		args = append(args, unquote(m[1]))
	}
	return args
}

// unquote strips the delimiting quotes of a quoted token.
func unquote(token string) string {
	if len(token) >= 2 && (token[0] == '"' || token[0] == '\'') {
		return token[1 : len(token)-1]
	}
	return token
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

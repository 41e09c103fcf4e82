//go:build property
// +build property

package env

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestInfoProperties checks that quoting arguments survives parsing.
func TestInfoProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: double-quoted arguments come back verbatim and in order
	properties.Property("quoted arguments round trip", prop.ForAll(
		func(name string, args []string) bool {
			quoted := make([]string, len(args))
			for i, a := range args {
				quoted[i] = `"` + a + `"`
			}

			info, err := ParseInfo(name + " " + strings.Join(quoted, " "))
			if err != nil || info.Name != name || len(info.Args) != len(args) {
				return false
			}
			for i := range args {
				if info.Args[i] != args[i] {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`^[a-z][a-z0-9-]{0,11}$`),
		gen.SliceOfN(4, gen.RegexMatch(`^[A-Za-z0-9' .,]{1,16}$`)),
	))

	// Property: bare tokens come back unchanged
	properties.Property("bare arguments round trip", prop.ForAll(
		func(args []string) bool {
			info, err := ParseInfo("boxed " + strings.Join(args, " "))
			if err != nil || len(info.Args) != len(args) {
				return false
			}
			for i := range args {
				if info.Args[i] != args[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.RegexMatch(`^[a-z#0-9]{1,8}$`)),
	))

	properties.TestingRun(t)
}

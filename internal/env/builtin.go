package env

import "fmt"

// Builtin selects one or all of the predefined environments.
type Builtin int

const (
	BuiltinAll Builtin = iota
	BuiltinCenter
	BuiltinBoxed
	BuiltinProof
	BuiltinTheorem
	BuiltinLemma
	BuiltinProposition
	BuiltinRemark
	BuiltinDefinition
)

// TheoremCounter is the counter id shared by the theorem-like builtins.
const TheoremCounter = "theorem"

type builtinDef struct {
	name      string
	template  string
	counterID string
}

var builtinDefs = map[Builtin]builtinDef{
	BuiltinCenter: {
		name:     "center",
		template: "<center>\n\n{{.body}}\n\n</center>",
	},
	BuiltinBoxed: {
		name: "boxed",
		template: `<div style="width: 100%; padding: 5px; border: 2px solid {{if index .has_arg 1}}{{index .args 1}}{{else}}black{{end}}; {{if index .has_arg 0}}background: {{index .args 0}}{{end}};">` +
			"\n\n{{.body}}\n\n</div>",
	},
	BuiltinProof: {
		name:     "proof",
		template: "*Proof.* {{.body}}<p style='width: 100%; text-align: right;'>▯</p>",
	},
	BuiltinTheorem:     theoremLike("theorem", "Theorem", true),
	BuiltinLemma:       theoremLike("lemma", "Lemma", true),
	BuiltinProposition: theoremLike("proposition", "Proposition", true),
	BuiltinRemark:      theoremLike("remark", "Remark", false),
	BuiltinDefinition:  theoremLike("definition", "Definition", false),
}

// builtinOrder is the registration order of BuiltinAll.
var builtinOrder = []Builtin{
	BuiltinCenter,
	BuiltinBoxed,
	BuiltinProof,
	BuiltinTheorem,
	BuiltinLemma,
	BuiltinProposition,
	BuiltinRemark,
	BuiltinDefinition,
}

func theoremLike(name, label string, italic bool) builtinDef {
	return builtinDef{
		name:      name,
		template:  TheoremLikeTemplate(label, italic),
		counterID: TheoremCounter,
	}
}

// TheoremLikeTemplate returns the template of a numbered environment:
// "**Label N.** body", or "**Label N** (title)**.** body" when argument 0 is
// given. The body is italicized when italic is set.
func TheoremLikeTemplate(label string, italic bool) string {
	body := "{{.body}}"
	if italic {
		body = "*{{.body}}*"
	}
	return fmt.Sprintf(
		"{{if index .has_arg 0}}**%[1]s {{.counter}}** ({{index .args 0}})**.**{{else}}**%[1]s {{.counter}}.**{{end}} %[2]s",
		label, body,
	)
}

// RegisterBuiltin installs the selected predefined environments. Builtin
// templates are known to compile, so a failure here panics.
func (r *Registry) RegisterBuiltin(b Builtin) {
	if b == BuiltinAll {
		for _, each := range builtinOrder {
			r.RegisterBuiltin(each)
		}
		return
	}

	def, ok := builtinDefs[b]
	if !ok {
		panic(fmt.Sprintf("env: unknown builtin %d", b))
	}

	err := r.register(&Environment{
		Name:      def.name,
		Template:  def.template,
		CounterID: def.counterID,
		Origin:    OriginBuiltin,
	})
	if err != nil {
		panic(fmt.Sprintf("env: builtin %q does not compile: %v", def.name, err))
	}
}

// BuiltinNames returns the names installed by BuiltinAll in registration
// order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinOrder))
	for _, b := range builtinOrder {
		names = append(names, builtinDefs[b].name)
	}
	return names
}

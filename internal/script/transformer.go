// Package script rewrites the options block of a k6 script so that it runs
// with a given load profile.
//
// The rewrite is textual. The options declaration is located with a regular
// expression that only matches a single statement whose object literal has
// no nested braces (or a block this package generated earlier). Scripts
// whose options do not match receive a new declaration right after their
// leading imports, so a script with a nested options literal ends up with two
// declarations.
package script

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/wesleyorama2/k6lunge/internal/profile"
)

// Thresholds are the pass/fail limits written into every transformed script.
type Thresholds struct {
	// P95DurationMs is the ceiling for the 95th percentile request duration
	P95DurationMs int

	// FailureRate is the ceiling for the ratio of failed requests
	FailureRate float64
}

// DefaultThresholds: p(95) request duration under 5s, failure rate under 50%.
var DefaultThresholds = Thresholds{
	P95DurationMs: 5000,
	FailureRate:   0.5,
}

// stageEntry matches one rendered stage literal.
const stageEntry = `\{ duration: '[^'\n]*', target: -?\d+ \}`

var (
	// flatOptionsPattern matches a hand-written options literal without nested braces.
	flatOptionsPattern = regexp.MustCompile(`export\s+const\s+options\s*=\s*\{[^{}]*\};?`)

	// generatedOptionsPattern matches only the exact text optionsTemplate
	// renders, so that applying the same profile twice yields the same text.
	generatedOptionsPattern = regexp.MustCompile(
		`export const options = \{\n` +
			`  (?:stages: \[` + stageEntry + `(?:, ` + stageEntry + `)*\],|vus: -?\d+, duration: '[^'\n]*',)\n` +
			`  thresholds: \{\n` +
			`    'http_req_duration': \['p\(95\)<-?\d+'\],\n` +
			`    'http_req_failed': \['rate<[^'\n]*'\],\n` +
			`  \},\n` +
			`\};`)

	importPattern = regexp.MustCompile(`^import\b`)
)

const optionsTemplate = `export const options = {
  {{- if .Stages }}
  stages: [{{ range $i, $s := .Stages }}{{ if $i }}, {{ end }}{ duration: {{ squote $s.Duration }}, target: {{ $s.Target }} }{{ end }}],
  {{- else }}
  vus: {{ .VUs }}, duration: {{ squote .Duration }},
  {{- end }}
  thresholds: {
    'http_req_duration': ['p(95)<{{ .Thresholds.P95DurationMs }}'],
    'http_req_failed': ['rate<{{ .Thresholds.FailureRate }}'],
  },
};`

var optionsTmpl = template.Must(template.New("options").Funcs(sprig.TxtFuncMap()).Parse(optionsTemplate))

// Transformer injects a load profile into k6 scripts.
type Transformer struct {
	Thresholds Thresholds
}

// NewTransformer returns a Transformer using DefaultThresholds.
func NewTransformer() *Transformer {
	return &Transformer{Thresholds: DefaultThresholds}
}

type optionsData struct {
	Stages     []profile.Target
	VUs        int
	Duration   string
	Thresholds Thresholds
}

// OptionsBlock renders the options declaration for a profile.
//
// A profile with active stages is written as a stages list. A profile
// whose only active stage is steady load, or with no active stage at all,
// is written as a flat vus/duration pair.
func (t *Transformer) OptionsBlock(p profile.LoadProfile) (string, error) {
	data := optionsData{Thresholds: t.Thresholds}

	switch {
	case p.SteadyOnly():
		data.VUs = *p.Steady.VUs
		data.Duration = p.Steady.Duration
	default:
		data.Stages = p.ActiveStages()
		if len(data.Stages) == 0 {
			data.VUs, data.Duration = p.Fallback()
		}
	}

	var sb strings.Builder
	if err := optionsTmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "failed to render options block")
	}
	return sb.String(), nil
}

// Apply returns script with its options declaration replaced by one that
// encodes p. Everything outside the declaration is left untouched.
func (t *Transformer) Apply(script string, p profile.LoadProfile) (string, error) {
	block, err := t.OptionsBlock(p)
	if err != nil {
		return "", err
	}

	if loc := locateOptions(script); loc != nil {
		return script[:loc[0]] + block + script[loc[1]:], nil
	}

	return insertAfterImports(script, block), nil
}

// locateOptions returns the byte range of the options declaration, or nil.
func locateOptions(script string) []int {
	if loc := generatedOptionsPattern.FindStringIndex(script); loc != nil {
		return loc
	}
	return flatOptionsPattern.FindStringIndex(script)
}

// insertAfterImports places block, surrounded by blank lines, before the
// first line that is neither blank nor part of a leading import statement.
func insertAfterImports(script, block string) string {
	lines := strings.Split(script, "\n")

	idx := leadingImportsEnd(lines)
	out := make([]string, 0, len(lines)+3)
	out = append(out, lines[:idx]...)
	out = append(out, "", block, "")
	out = append(out, lines[idx:]...)

	return strings.Join(out, "\n")
}

// leadingImportsEnd returns the index of the first line that is neither
// blank nor part of a leading import statement. A script made only of
// imports gets the index right after its last import line.
func leadingImportsEnd(lines []string) int {
	inImport := false
	end := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inImport {
			inImport = !importTerminated(trimmed)
			end = i + 1
			continue
		}

		switch {
		case trimmed == "":
			continue
		case importPattern.MatchString(trimmed):
			inImport = !importTerminated(trimmed)
			end = i + 1
		default:
			return i
		}
	}

	return end
}

// importTerminated reports whether an import line ends its statement.
func importTerminated(line string) bool {
	if strings.HasSuffix(line, ";") {
		return true
	}
	if strings.Contains(line, " from ") || strings.HasPrefix(line, "from ") || strings.HasPrefix(line, "} from") {
		return true
	}
	// Side-effect import: import 'k6/x/foo'
	if strings.HasPrefix(line, "import '") || strings.HasPrefix(line, `import "`) {
		return true
	}
	return false
}

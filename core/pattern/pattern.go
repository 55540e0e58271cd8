// Package pattern compiles route templates such as "/users/:id/files/:path"
// into anchored matchers with a specificity score.
//
// Every ":name" token captures one path segment, except the last token of the
// template which captures the remainder of the path including "/". A ":" that
// is not followed by an identifier is literal text.
package pattern

import (
	"regexp"
	"strings"
)

// token finds ":identifier" parameters in a template.
var token = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// Pattern is a compiled route template. It is immutable and safe for concurrent use.
type Pattern struct {
	raw      string
	re       *regexp.Regexp
	params   []string
	literals int
	dynamics int
}

// Compile turns a route template into a Pattern. It never fails: malformed
// parameter tokens are kept as literal text.
func Compile(template string) *Pattern {
	locs := token.FindAllStringSubmatchIndex(template, -1)

	var (
		expr     strings.Builder
		params   = make([]string, 0, len(locs))
		literals int
		pos      int
	)
	expr.WriteByte('^')

	for i, loc := range locs {
		lit := template[pos:loc[0]]
		literals += countSegments(lit)
		expr.WriteString(regexp.QuoteMeta(lit))

		params = append(params, template[loc[2]:loc[3]])
		if i == len(locs)-1 {
			expr.WriteString("(.*)")
		} else {
			expr.WriteString("([^/]+)")
		}
		pos = loc[1]
	}

	tail := template[pos:]
	literals += countSegments(tail)
	expr.WriteString(regexp.QuoteMeta(tail))
	expr.WriteByte('$')

	return &Pattern{
		raw:      template,
		re:       regexp.MustCompile(expr.String()),
		params:   params,
		literals: literals,
		dynamics: len(params),
	}
}

// countSegments counts non-empty pieces of a literal run split on "/".
func countSegments(lit string) int {
	n := 0
	for _, seg := range strings.Split(lit, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

// String returns the original template.
func (p *Pattern) String() string { return p.raw }

// Params returns parameter names in template order.
func (p *Pattern) Params() []string {
	out := make([]string, len(p.params))
	copy(out, p.params)
	return out
}

// Literals returns the number of literal path segments.
func (p *Pattern) Literals() int { return p.literals }

// Dynamics returns the number of parameter tokens.
func (p *Pattern) Dynamics() int { return p.dynamics }

// Match reports whether path matches and returns the captured values in the
// same order as Params.
func (p *Pattern) Match(path string) ([]string, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// Extract matches path and maps captured values to parameter names.
func (p *Pattern) Extract(path string) (map[string]string, bool) {
	values, ok := p.Match(path)
	if !ok {
		return nil, false
	}
	params := make(map[string]string, len(p.params))
	for i, name := range p.params {
		if i < len(values) {
			params[name] = values[i]
		}
	}
	return params, true
}

// MoreSpecific reports whether a should be tried before b: more literal
// segments first, then fewer parameters.
func MoreSpecific(a, b *Pattern) bool {
	if a.literals != b.literals {
		return a.literals > b.literals
	}
	return a.dynamics < b.dynamics
}

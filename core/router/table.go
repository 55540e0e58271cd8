package router

import (
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/pattern"
)

// Outcome is the result of a table lookup.
type Outcome int

const (
	NotFound Outcome = iota
	Found
	MethodNotAllowed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case MethodNotAllowed:
		return "method_not_allowed"
	default:
		return "not_found"
	}
}

// Match is the result of Table.Lookup.
type Match struct {
	Outcome Outcome
	Handler handler.HandlerFunc
	Route   string
	Params  map[string]string
	// Allowed lists the methods of the matched route, sorted, when Outcome is MethodNotAllowed.
	Allowed []string
}

type entry struct {
	pattern  *pattern.Pattern
	handlers map[string]handler.HandlerFunc
}

func (e *entry) methods() []string {
	out := make([]string, 0, len(e.handlers))
	for m := range e.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Table holds routes ordered by specificity. It is safe for concurrent use,
// although routes are normally registered before serving starts.
type Table struct {
	mu      sync.RWMutex
	entries []*entry
}

// Add registers h for method on template. Registering an existing template
// adds or replaces the method's handler in place.
func (t *Table) Add(template, method string, h handler.HandlerFunc) {
	method = strings.ToUpper(method)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.pattern.String() == template {
			e.handlers[method] = h
			return
		}
	}

	t.entries = append(t.entries, &entry{
		pattern:  pattern.Compile(template),
		handlers: map[string]handler.HandlerFunc{method: h},
	})
	sort.SliceStable(t.entries, func(i, j int) bool {
		return pattern.MoreSpecific(t.entries[i].pattern, t.entries[j].pattern)
	})
}

// Lookup finds the handler for method and path.
func (t *Table) Lookup(method, path string) Match {
	method = strings.ToUpper(method)
	exempt := method == http.MethodGet || method == http.MethodHead

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		values, ok := e.pattern.Match(path)
		if !ok {
			continue
		}

		h, ok := e.handlers[method]
		if !ok && method == http.MethodHead {
			h, ok = e.handlers[http.MethodGet]
		}
		if ok {
			names := e.pattern.Params()
			params := make(map[string]string, len(names))
			for i, name := range names {
				params[name] = values[i]
			}
			return Match{Outcome: Found, Handler: h, Route: e.pattern.String(), Params: params}
		}

		if !exempt {
			return Match{Outcome: MethodNotAllowed, Route: e.pattern.String(), Allowed: e.methods()}
		}
	}

	return Match{Outcome: NotFound}
}

// Route describes one registered method and template.
type Route struct {
	Method  string
	Pattern string
}

// Routes lists registered routes in match order.
func (t *Table) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Route
	for _, e := range t.entries {
		for _, m := range e.methods() {
			out = append(out, Route{Method: m, Pattern: e.pattern.String()})
		}
	}
	return out
}

// Templates returns the registered templates in match order.
func (t *Table) Templates() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.pattern.String())
	}
	return slices.Clip(out)
}

// Package loader resolves, compiles, and evaluates module graphs for a
// worker. ES modules are lowered to CommonJS-style units with esbuild,
// deduplicated through a per-load module table, linked into a single
// self-contained closure, and evaluated in the worker's runtime. No
// global names are created in the script environment.
package loader

import (
	"fmt"
	"strings"

	"github.com/isobridge/worker/internal/core"
)

// Provider supplies module source text for a resolved URL. Import
// specifiers are used verbatim as URLs.
type Provider func(url string) (string, error)

// Result codes for Load and the host-facing load operations.
const (
	OK                = 0
	CompileFailed     = 1
	InstantiateFailed = 2
	EvaluateFailed    = 3
)

// Load resolves the module graph rooted at entry, compiles every
// reachable module once, links the units, and evaluates the graph in
// rt. On success the returned table maps engine-reported positions
// back to module URLs for later runtime errors.
//
// Resolution is an explicit worklist with the table as the visited
// set: a URL already present short-circuits (shared dependencies and
// cycles), and a unit is inserted before its imports are pushed, so
// cyclic graphs terminate. The provider is consulted at most once per
// URL.
func Load(rt core.JSRuntime, provider Provider, entry string) (*Table, int, *core.ScriptError) {
	table := NewTable()

	stack := []string{entry}
	for len(stack) > 0 {
		url := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := table.Get(url); ok {
			continue
		}

		source, err := provider(url)
		if err != nil {
			return nil, CompileFailed, &core.ScriptError{
				Message:  fmt.Sprintf("Cannot load module %q: %v", url, err),
				Resource: url,
				StartCol: -1,
			}
		}

		body, imports, serr := Lower(url, source)
		if serr != nil {
			return nil, CompileFailed, serr
		}

		table.Add(&Unit{
			URL:     url,
			Body:    strings.TrimRight(body, "\n"),
			Imports: imports,
		})
		// Push in reverse so imports resolve in declaration order.
		for i := len(imports) - 1; i >= 0; i-- {
			stack = append(stack, imports[i])
		}
	}

	blob := link(table, entry)
	origin := BlobOrigin(entry)
	// Every unit parsed on its own; a blob the parser rejects means the
	// graph could not be linked. Past this point the blob is sound and
	// an eval error can only be a thrown value.
	if serr := Check(origin, blob); serr != nil {
		return nil, InstantiateFailed, remap(table, serr)
	}
	if err := rt.Eval(origin, blob); err != nil {
		return nil, EvaluateFailed, remap(table, core.FromOpaque(entry, err))
	}
	rt.RunMicrotasks()

	return table, OK, nil
}

// BlobOrigin names the linked blob's evaluation. The name is distinct
// from every unit URL so blob positions in later runtime errors are
// never mistaken for a module's own local positions.
func BlobOrigin(entry string) string {
	return "<modules:" + entry + ">"
}

// link assembles the evaluation blob: a closure holding every unit as
// a CommonJS-style function, a memoizing loader, and the entry
// invocation. Module bodies run on first load; a cyclic import
// re-entered mid-evaluation observes the partially populated exports.
// Unit blob offsets are recorded for error remapping.
func link(t *Table, entry string) string {
	var b strings.Builder
	b.WriteString("(function() {\n")
	b.WriteString("var __wm_defs = {\n")
	line := 3
	for _, u := range t.Units() {
		fmt.Fprintf(&b, "%s: function(module, exports, require) {\n", core.JSEscape(u.URL))
		u.blobLine = line
		line++
		b.WriteString(u.Body)
		b.WriteString("\n},\n")
		line += strings.Count(u.Body, "\n") + 2
	}
	b.WriteString("};\n")
	b.WriteString("var __wm_cache = {};\n")
	b.WriteString("function __wm_load(url) {\n")
	b.WriteString("var mod = __wm_cache[url];\n")
	b.WriteString("if (mod) return mod.exports;\n")
	b.WriteString("var def = __wm_defs[url];\n")
	b.WriteString("if (!def) throw new Error(\"module not found: \" + url);\n")
	b.WriteString("mod = __wm_cache[url] = { exports: {} };\n")
	b.WriteString("def(mod, mod.exports, __wm_load);\n")
	b.WriteString("return mod.exports;\n")
	b.WriteString("}\n")
	fmt.Fprintf(&b, "__wm_load(%s);\n", core.JSEscape(entry))
	b.WriteString("})();\n")
	return b.String()
}

// remap rewrites blob positions in a runtime error back to the
// containing module's URL and local line, attaching that line's source
// text. Positions outside any unit body (the linking scaffold) pass
// through unchanged.
func remap(t *Table, se *core.ScriptError) *core.ScriptError {
	if se.Line <= 0 {
		return se
	}
	u, local, ok := t.Locate(se.Line)
	if !ok {
		return se
	}
	se.Resource = u.URL
	se.Line = local
	se.SourceLine = bodyLine(u, local)
	return se
}

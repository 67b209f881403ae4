package loader

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/isobridge/worker/internal/core"
)

// Lower converts one ES module to a CommonJS-style body and returns it
// together with the module's static import specifiers in declaration
// order. Compile diagnostics come back as a *core.ScriptError carrying
// esbuild's position metadata (file, line, column range, source line).
func Lower(url, source string) (string, []string, *core.ScriptError) {
	result := api.Transform(source, api.TransformOptions{
		Format:     api.FormatCommonJS,
		Target:     api.ESNext,
		Sourcefile: url,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", nil, compileError(url, result.Errors[0])
	}
	body := string(result.Code)
	return body, extractImports(body), nil
}

// Check parses source without transforming it. A nil return means the
// text is syntactically valid, so a later engine failure evaluating
// the same text is attributable to execution rather than parsing.
// Diagnostics carry the same position metadata as Lower's.
func Check(url, source string) *core.ScriptError {
	result := api.Transform(source, api.TransformOptions{
		Sourcefile: url,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return compileError(url, result.Errors[0])
	}
	return nil
}

func compileError(url string, msg api.Message) *core.ScriptError {
	se := &core.ScriptError{
		Message:  msg.Text,
		Resource: url,
		StartCol: -1,
	}
	if loc := msg.Location; loc != nil {
		if loc.File != "" {
			se.Resource = loc.File
		}
		se.Line = loc.Line
		se.StartCol = loc.Column
		se.EndCol = loc.Column + loc.Length
		se.SourceLine = loc.LineText
	}
	return se
}

// extractImports collects the specifiers of the require calls in a
// lowered body, in source order. The scan tracks string, template,
// comment, and regex contexts so a require token embedded in literal
// text is never taken for an import. Calls with a non-literal argument
// are dynamic and stay out of the result.
func extractImports(body string) []string {
	var imports []string
	var prev byte // last significant byte outside skipped regions

	// Lexical nesting: -1 marks template text, other entries count the
	// open braces of a code level. A template expression closes when
	// its level sees "}" with no brace open.
	stack := []int{0}

	i := 0
	for i < len(body) {
		top := len(stack) - 1
		if stack[top] == -1 {
			switch {
			case body[i] == '\\':
				i += 2
			case body[i] == '`':
				stack = stack[:top]
				prev = '`'
				i++
			case body[i] == '$' && i+1 < len(body) && body[i+1] == '{':
				stack = append(stack, 0)
				prev = 0
				i += 2
			default:
				i++
			}
			continue
		}

		c := body[i]
		switch {
		case c == '"' || c == '\'':
			_, i = scanStringLit(body, i)
			prev = c
		case c == '`':
			stack = append(stack, -1)
			i++
		case c == '/' && i+1 < len(body) && body[i+1] == '/':
			for i < len(body) && body[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(body) && body[i+1] == '*':
			end := strings.Index(body[i+2:], "*/")
			if end < 0 {
				return imports
			}
			i += 2 + end + 2
		case c == '/' && regexCanFollow(prev):
			i = scanRegex(body, i)
			prev = '/'
		case c == '{':
			stack[top]++
			prev = c
			i++
		case c == '}':
			if stack[top] == 0 && top > 0 {
				stack = stack[:top]
			} else {
				stack[top]--
				prev = c
			}
			i++
		case c == 'r' && strings.HasPrefix(body[i:], "require(") && !identByte(prev) && prev != '.':
			lit, next := scanStringLit(body, i+len("require("))
			if lit != "" && next < len(body) && body[next] == ')' {
				if spec, ok := unquoteJS(lit); ok {
					imports = append(imports, spec)
				}
				prev = ')'
				i = next + 1
			} else {
				prev = 'e'
				i += len("require")
			}
		default:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				prev = c
			}
			i++
		}
	}
	return imports
}

// scanStringLit scans a single- or double-quoted string literal
// starting at i, returning the literal (quotes included) and the index
// just past it. An index not opening a string, or an unterminated
// literal, yields "".
func scanStringLit(s string, i int) (string, int) {
	if i >= len(s) || (s[i] != '"' && s[i] != '\'') {
		return "", i
	}
	q := s[i]
	j := i + 1
	for j < len(s) {
		switch s[j] {
		case '\\':
			j += 2
		case q:
			return s[i : j+1], j + 1
		case '\n':
			return "", j
		default:
			j++
		}
	}
	return "", j
}

// unquoteJS decodes a quoted JS string literal. Specifiers in lowered
// output only ever carry simple escapes.
func unquoteJS(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	var b strings.Builder
	for i := 1; i < len(lit)-1; i++ {
		c := lit[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(lit)-1 {
			return "", false
		}
		switch lit[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(lit[i])
		}
	}
	return b.String(), true
}

// regexCanFollow reports whether a '/' after this byte starts a regex
// literal rather than division, judged the way scanners without a full
// parser do.
func regexCanFollow(prev byte) bool {
	switch prev {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';', '<', '>', '+', '-', '*', '/', '%', '^', '~':
		return true
	}
	return false
}

// scanRegex skips a regex literal starting at i. '/' inside a
// character class does not terminate; a newline means the '/' was not
// a regex after all.
func scanRegex(s string, i int) int {
	j := i + 1
	inClass := false
	for j < len(s) {
		switch s[j] {
		case '\\':
			j += 2
		case '[':
			inClass = true
			j++
		case ']':
			inClass = false
			j++
		case '/':
			if !inClass {
				return j + 1
			}
			j++
		case '\n':
			return j
		default:
			j++
		}
	}
	return j
}

func identByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ScriptError describes a value thrown by script code (or a compile
// failure), together with whatever position metadata the engine
// captured. Unknown fields stay at their zero values; Display degrades
// accordingly.
type ScriptError struct {
	Message    string // exception text, e.g. "Error: boom"
	Resource   string // origin name of the script the positions refer to
	Line       int    // 1-based; 0 when unknown
	StartCol   int    // 0-based inclusive; -1 when unknown
	EndCol     int    // 0-based exclusive
	SourceLine string // text of the offending line, when known
	Stack      string // engine stack trace (includes the message), when captured
}

func (e *ScriptError) Error() string { return e.Message }

// Display renders the error in the shape the host stores as the
// worker's pending exception:
//
//	resource:line
//	offending source line
//	      ^^^^^
//	stack trace (or the message when no stack was captured)
//
// With no position metadata the message alone is returned.
func (e *ScriptError) Display() string {
	if e.Resource == "" || e.Line <= 0 {
		return e.Message
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d\n", e.Resource, e.Line)
	if e.SourceLine != "" {
		b.WriteString(e.SourceLine)
		b.WriteByte('\n')
		if e.StartCol >= 0 && e.EndCol > e.StartCol {
			b.WriteString(strings.Repeat(" ", e.StartCol))
			b.WriteString(strings.Repeat("^", e.EndCol-e.StartCol))
			b.WriteByte('\n')
		}
	}
	if e.Stack != "" {
		b.WriteString(strings.TrimRight(e.Stack, "\n"))
	} else {
		b.WriteString(e.Message)
	}
	b.WriteByte('\n')
	return b.String()
}

// Frame position patterns emitted by the engines: "(file.js:3)" in
// stack frames, "file.js:3" in bare positions.
var (
	parenPosRe = regexp.MustCompile(`\(([^()\n]*):(\d+)\)`)
	barePosRe  = regexp.MustCompile(`([^\s:()]+):(\d+)`)
)

// FromOpaque converts an arbitrary engine error into a ScriptError
// attributed to origin. The engine bindings return opaque errors whose
// text carries the exception message on the first line and, usually, a
// stack with "(origin:line)" frames after it; the first recognizable
// position supplies the line number.
func FromOpaque(origin string, err error) *ScriptError {
	var se *ScriptError
	if errors.As(err, &se) {
		return se
	}
	text := strings.TrimRight(err.Error(), "\n")
	se = &ScriptError{
		Message:  text,
		Resource: origin,
		StartCol: -1,
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		se.Message = text[:i]
		se.Stack = text
	}
	if m := parenPosRe.FindStringSubmatch(text); m != nil {
		se.Line, _ = strconv.Atoi(m[2])
	} else if m := barePosRe.FindStringSubmatch(text); m != nil {
		se.Line, _ = strconv.Atoi(m[2])
	}
	return se
}

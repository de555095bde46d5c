package artifact

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Convention decides how paths and line endings are rendered for the
// consumer of a document.
type Convention struct {
	Name       string
	Separator  string
	LineEnding string
}

var (
	// MacroConvention is read by the design tool interpreter.
	MacroConvention = Convention{Name: "macro", Separator: "/", LineEnding: "\n"}
	// ShellConvention is read by cmd.exe. Labels are only reliable with CRLF.
	ShellConvention = Convention{Name: "shell", Separator: `\`, LineEnding: "\r\n"}
)

// NativeConvention renders paths for the machine rvmbridge runs on.
func NativeConvention() Convention {
	return Convention{Name: "native", Separator: string(filepath.Separator), LineEnding: "\n"}
}

// RenderPath rewrites a path with the convention separator.
func (c Convention) RenderPath(p Path) string {
	if c.Separator == "/" {
		return string(p)
	}
	return strings.ReplaceAll(string(p), "/", c.Separator)
}

// Path is a location stored in slash form. It is only turned into text
// through a Convention, so a single value renders both ways.
type Path string

// NewPath accepts either separator style and drops trailing separators.
func NewPath(raw string) Path {
	value := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	trimmed := strings.TrimRight(value, "/")
	if trimmed == "" && value != "" {
		return Path("/")
	}
	return Path(trimmed)
}

// Join appends elements with the slash separator.
func (p Path) Join(elem ...string) Path {
	parts := make([]string, 0, len(elem)+1)
	if p != "" {
		parts = append(parts, strings.TrimRight(string(p), "/"))
	}
	for _, e := range elem {
		if e = strings.Trim(strings.ReplaceAll(e, `\`, "/"), "/"); e != "" {
			parts = append(parts, e)
		}
	}
	joined := strings.Join(parts, "/")
	if strings.HasPrefix(string(p), "/") && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return Path(joined)
}

// String returns the slash form.
func (p Path) String() string { return string(p) }

// Part is one fragment of a line.
type Part interface {
	render(Convention) string
}

// Text is emitted verbatim.
type Text string

func (t Text) render(Convention) string { return string(t) }

func (p Path) render(c Convention) string { return c.RenderPath(p) }

// Quoted wraps a path in double quotes.
type Quoted Path

func (q Quoted) render(c Convention) string { return `"` + c.RenderPath(Path(q)) + `"` }

// Line is a sequence of parts rendered without separators.
type Line []Part

// L builds a line from parts.
func L(parts ...Part) Line { return Line(parts) }

// T builds a single text line.
func T(text string) Line { return Line{Text(text)} }

// Blank is an empty line.
var Blank = Line{}

func (l Line) render(c Convention) string {
	var b strings.Builder
	for _, part := range l {
		b.WriteString(part.render(c))
	}
	return b.String()
}

// Section is a named group of lines. Sections are separated by one blank line.
type Section struct {
	Name  string
	Lines []Line
}

// Document is an ordered list of sections rendered with one convention.
type Document struct {
	Ref        Ref
	Convention Convention
	Sections   []Section
}

// Section returns the named section, if present.
func (d Document) Section(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Render produces the document bytes. Every line, including the last, ends
// with the convention line ending.
func (d Document) Render() []byte {
	var buf bytes.Buffer
	for i, section := range d.Sections {
		if i > 0 {
			buf.WriteString(d.Convention.LineEnding)
		}
		for _, line := range section.Lines {
			buf.WriteString(line.render(d.Convention))
			buf.WriteString(d.Convention.LineEnding)
		}
	}
	return buf.Bytes()
}

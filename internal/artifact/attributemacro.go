package artifact

import (
	_ "embed"
	"strings"

	"github.com/kingrea/rvmbridge/internal/objects"
)

//go:embed templates/attribute.mac
var attributeTemplate string

// Placeholders substituted in the attribute macro template.
const (
	PlaceholderTempFile = "{{TEMP_FILE}}"
	PlaceholderObjects  = "{{OBJECTS}}"
)

// SectionTemplate is the only section of the attribute macro.
const SectionTemplate = "template"

// buildAttributeMacro fills the two placeholders. The temp file is a path
// part so it follows the macro convention; the objects are joined with single
// spaces and are not escaped.
func buildAttributeMacro(list objects.List, layout Layout) Document {
	raw := strings.Split(strings.TrimRight(attributeTemplate, "\r\n"), "\n")
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		lines = append(lines, substitute(strings.TrimRight(text, "\r"), map[string]Part{
			PlaceholderTempFile: layout.File(TempAttributes),
			PlaceholderObjects:  Text(list.Joined()),
		}))
	}
	return Document{
		Ref:        AttributeMacro,
		Convention: MacroConvention,
		Sections:   []Section{{Name: SectionTemplate, Lines: lines}},
	}
}

// substitute splits a template line around placeholders.
func substitute(text string, values map[string]Part) Line {
	var line Line
	for text != "" {
		idx, key := -1, ""
		for placeholder := range values {
			if i := strings.Index(text, placeholder); i >= 0 && (idx < 0 || i < idx) {
				idx, key = i, placeholder
			}
		}
		if idx < 0 {
			line = append(line, Text(text))
			break
		}
		if idx > 0 {
			line = append(line, Text(text[:idx]))
		}
		line = append(line, values[key])
		text = text[idx+len(key):]
	}
	return line
}

// Package defaults exposes the built-in per-project reference table: the
// default object list and database identifier for each known project code.
package defaults

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var builtinYAML []byte

// Project is one row of the table.
type Project struct {
	Database string   `yaml:"mdb"`
	Objects  []string `yaml:"objects"`
}

type document struct {
	Projects map[string]Project `yaml:"projects"`
}

// Table maps project codes to their defaults. It is immutable once built;
// every accessor hands out copies.
type Table struct {
	projects map[string]Project
}

var (
	builtinOnce  sync.Once
	builtinTable *Table
)

// Builtin returns the table compiled into the binary.
func Builtin() *Table {
	builtinOnce.Do(func() {
		table, err := Parse(builtinYAML)
		if err != nil {
			panic(fmt.Errorf("defaults: embedded table: %w", err))
		}
		builtinTable = table
	})
	return builtinTable
}

// Parse builds a table from YAML.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("defaults: parse: %w", err)
	}
	table := &Table{projects: make(map[string]Project, len(doc.Projects))}
	for code, project := range doc.Projects {
		key := normalizeCode(code)
		if key == "" {
			return nil, fmt.Errorf("defaults: empty project code")
		}
		objects := make([]string, 0, len(project.Objects))
		for _, obj := range project.Objects {
			if trimmed := strings.TrimSpace(obj); trimmed != "" {
				objects = append(objects, trimmed)
			}
		}
		table.projects[key] = Project{
			Database: strings.TrimSpace(project.Database),
			Objects:  objects,
		}
	}
	return table, nil
}

// Objects returns the default object list for a project, or nil.
func (t *Table) Objects(code string) []string {
	if t == nil {
		return nil
	}
	project, ok := t.projects[normalizeCode(code)]
	if !ok || len(project.Objects) == 0 {
		return nil
	}
	return append([]string(nil), project.Objects...)
}

// Database returns the default database identifier for a project.
func (t *Table) Database(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	project, ok := t.projects[normalizeCode(code)]
	if !ok || project.Database == "" {
		return "", false
	}
	return project.Database, true
}

// Codes lists the known project codes in sorted order.
func (t *Table) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.projects))
	for code := range t.projects {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

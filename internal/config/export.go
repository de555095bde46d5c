package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/rvmbridge/internal/defaults"
)

// ViewerLauncherName is the executable inside the viewer folder that converts
// the exported RVM into a viewer model.
const ViewerLauncherName = "Roamer.exe"

// Export is the validated input of one artifact generation run.
type Export struct {
	InstallPath      string       `yaml:"install_path" validate:"required"`
	ProjectCode      string       `yaml:"project_code" validate:"required"`
	Username         string       `yaml:"user" validate:"required"`
	Password         string       `yaml:"password" validate:"required"`
	Database         string       `yaml:"mdb" validate:"required"`
	OutputFolder     string       `yaml:"output_folder" validate:"required"`
	ViewerFolder     string       `yaml:"viewer_folder" validate:"required"`
	ObjectListFile   string       `yaml:"object_list,omitempty"`
	ExportAttributes bool         `yaml:"export_attributes"`
	DailyExport      bool         `yaml:"daily_export"`
	ExportTime       OptionalTime `yaml:"export_time,omitempty"`
}

// ViewerLauncher returns the viewer executable path, joined with a forward
// slash the same way the folder pickers report paths.
func (e Export) ViewerLauncher() string {
	folder := strings.TrimRight(strings.ReplaceAll(e.ViewerFolder, `\`, "/"), "/")
	return folder + "/" + ViewerLauncherName
}

func (e *Export) normalize(table *defaults.Table) {
	e.InstallPath = strings.TrimSpace(e.InstallPath)
	e.ProjectCode = strings.TrimSpace(e.ProjectCode)
	e.Username = strings.TrimSpace(e.Username)
	e.Database = strings.TrimSpace(e.Database)
	e.OutputFolder = strings.TrimSpace(e.OutputFolder)
	e.ViewerFolder = strings.TrimSpace(e.ViewerFolder)
	e.ObjectListFile = strings.TrimSpace(e.ObjectListFile)
	if e.Database == "" && e.ProjectCode != "" && table != nil {
		if mdb, ok := table.Database(e.ProjectCode); ok {
			e.Database = mdb
		}
	}
	switch {
	case !e.DailyExport:
		e.ExportTime = OptionalTime{}
	case !e.ExportTime.Valid:
		e.ExportTime = SomeTime(ClockTime{})
	}
}

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses the HH:mm form.
func ParseClockTime(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return ClockTime{}, fmt.Errorf("config: export time %q must use HH:mm", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("config: export time %q has an invalid hour", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("config: export time %q has an invalid minute", value)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String renders the time as HH:mm.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Next returns the first instant at or after now matching the time of day, in
// now's location.
func (t ClockTime) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// OptionalTime is an export time that is either present or absent.
type OptionalTime struct {
	Time  ClockTime
	Valid bool
}

// SomeTime wraps a present time.
func SomeTime(t ClockTime) OptionalTime {
	return OptionalTime{Time: t, Valid: true}
}

// String returns HH:mm or an empty string when absent.
func (o OptionalTime) String() string {
	if !o.Valid {
		return ""
	}
	return o.Time.String()
}

// IsZero lets yaml omitempty drop absent values.
func (o OptionalTime) IsZero() bool {
	return !o.Valid
}

// MarshalJSON encodes an absent time as null.
func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Time.String())
}

// UnmarshalJSON accepts null, false, or an HH:mm string.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "null", "false", `""`:
		*o = OptionalTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: export time: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*o = SomeTime(parsed)
	return nil
}

// MarshalYAML encodes the time as an HH:mm string.
func (o OptionalTime) MarshalYAML() (any, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.Time.String(), nil
}

// UnmarshalYAML accepts an empty node or an HH:mm string.
func (o *OptionalTime) UnmarshalYAML(node *yaml.Node) error {
	value := strings.TrimSpace(node.Value)
	if node.Tag == "!!null" || value == "" {
		*o = OptionalTime{}
		return nil
	}
	parsed, err := ParseClockTime(value)
	if err != nil {
		return err
	}
	*o = SomeTime(parsed)
	return nil
}

package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/objects"
)

// Settings is the flat record written to settings.json. Paths use forward
// slashes. It is written for inspection and never read back.
type Settings struct {
	InstallPath      string              `json:"aveva_path"`
	ProjectCode      string              `json:"proj_code"`
	Username         string              `json:"user"`
	Password         string              `json:"password"`
	Database         string              `json:"mdb"`
	OutputFolder     string              `json:"output_folder"`
	ViewerLauncher   string              `json:"roamer_path"`
	ObjectSource     string              `json:"areas_file"`
	ExportAttributes bool                `json:"export_attribute"`
	DailyExport      bool                `json:"daily_export"`
	ExportTime       config.OptionalTime `json:"export_time"`
}

// NewSettings builds the record. ObjectSource is empty unless the objects
// were read from a file.
func NewSettings(exp config.Export, res objects.Resolution) Settings {
	layout := NewLayout(exp)
	settings := Settings{
		InstallPath:      layout.Install.String(),
		ProjectCode:      exp.ProjectCode,
		Username:         exp.Username,
		Password:         exp.Password,
		Database:         exp.Database,
		OutputFolder:     layout.Output.String(),
		ViewerLauncher:   layout.Viewer.String(),
		ExportAttributes: exp.ExportAttributes,
		DailyExport:      exp.DailyExport,
		ExportTime:       exp.ExportTime,
	}
	if res.Source != "" {
		settings.ObjectSource = NewPath(res.Source).String()
	}
	return settings
}

// Encode renders the record with a four space indent.
func (s Settings) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("artifact: encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Package artifact renders and writes the documents that drive one batch
// export: the settings record, the export macro, the attribute macro, and the
// run script. Each artifact has a stable identifier, a kind, and a fixed file
// name inside the output folder.

package artifact

import "fmt"

// Kind captures the storage shape and serialization format for an artifact.
type Kind string

const (
	// KindJSON is a JSON document.
	KindJSON Kind = "json"
	// KindMacro is a design tool macro.
	KindMacro Kind = "macro"
	// KindScript is a cmd.exe batch file.
	KindScript Kind = "script"
	// KindWorking is a file produced by the external tools during a run.
	KindWorking Kind = "working"
	// KindLog is the shared append-only run log.
	KindLog Kind = "log"
)

// Ref declares a stable identifier and metadata for an artifact.
type Ref struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	FileName    string
}

// Validate ensures the reference is well-formed.
func (r Ref) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.Kind == "" {
		return fmt.Errorf("artifact: kind is required for %s", r.ID)
	}
	if r.FileName == "" {
		return fmt.Errorf("artifact: file name missing for %s", r.ID)
	}
	return nil
}

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures Store.Check results.
type CheckResult struct {
	Ref   Ref
	Path  string
	State State
	Size  int64
	Err   error
}

// register panics on a malformed reference so mistakes surface at init.
func register(ref Ref) Ref {
	if err := ref.Validate(); err != nil {
		panic(err)
	}
	return ref
}

func newRef(id, name, desc string, kind Kind, file string) Ref {
	return Ref{ID: id, Name: name, Description: desc, Kind: kind, FileName: file}
}

// Canonical artifact references. File names are fixed; the run script and
// the macros refer to each other by these names.
var (
	SettingsRecord = register(newRef("settings", "Settings Record", "settings.json holding the export configuration for inspection", KindJSON, "settings.json"))
	ExportMacro    = register(newRef("export-macro", "Export Macro", "RVM.mac exporting every object and launching the viewer conversion", KindMacro, "RVM.mac"))
	AttributeMacro = register(newRef("attribute-macro", "Attribute Macro", "attribute.mac dumping element attributes to TEMP.txt", KindMacro, "attribute.mac"))
	RunScript      = register(newRef("run-script", "Run Script", "RunE3D.bat launching the design tool and waiting for the output", KindScript, "RunE3D.bat"))

	RunLog         = register(newRef("run-log", "Run Log", "RVM_LOG.txt shared between the macros and the run script", KindLog, "RVM_LOG.txt"))
	TempRVM        = register(newRef("temp-rvm", "Temporary RVM", "TEMP.RVM written by the export and read by the viewer", KindWorking, "TEMP.RVM"))
	TempAttributes = register(newRef("temp-attributes", "Temporary Attributes", "TEMP.txt written by the attribute macro", KindWorking, "TEMP.txt"))
)

// GeneratedRefs lists the four documents in write order.
func GeneratedRefs() []Ref {
	return []Ref{SettingsRecord, ExportMacro, AttributeMacro, RunScript}
}

// CleanupRefs lists the intermediate files removed after a verified run, in
// removal order. The run log and the run script itself are not included.
func CleanupRefs() []Ref {
	return []Ref{AttributeMacro, ExportMacro, SettingsRecord, TempRVM, TempAttributes}
}

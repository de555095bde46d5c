package artifact

import (
	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/protocol"
)

const (
	// MonitorExecutable starts the design tool inside its install folder.
	MonitorExecutable = "mon.exe"
	// LaunchInit is the design tool init file passed to the monitor.
	LaunchInit = "launch.init"
)

// Layout is the set of locations shared by all four documents. Every
// document takes its paths from here, so their cross references agree.
type Layout struct {
	Output  Path
	Install Path
	Viewer  Path
}

// NewLayout derives the layout from an export configuration.
func NewLayout(exp config.Export) Layout {
	return Layout{
		Output:  NewPath(exp.OutputFolder),
		Install: NewPath(exp.InstallPath),
		Viewer:  NewPath(exp.ViewerLauncher()),
	}
}

// File returns the location of an artifact inside the output folder.
func (l Layout) File(ref Ref) Path {
	return l.Output.Join(ref.FileName)
}

// Log is the shared run log.
func (l Layout) Log() Path { return l.File(RunLog) }

// Monitor is the design tool launcher.
func (l Layout) Monitor() Path { return l.Install.Join(MonitorExecutable) }

// Init is the design tool init file.
func (l Layout) Init() Path { return l.Install.Join(LaunchInit) }

// Cleanup returns the intermediate files in removal order.
func (l Layout) Cleanup() []Path {
	refs := CleanupRefs()
	out := make([]Path, len(refs))
	for i, ref := range refs {
		out[i] = l.File(ref)
	}
	return out
}

// LaunchArgs builds the monitor argument list. The export macro path is
// glued to the $M directive with no space, the way the monitor expects it.
func (l Layout) LaunchArgs(exp config.Export, c Convention) []string {
	return []string{
		"PROD", "E3D", "init", c.RenderPath(l.Init()),
		"GRAPHICS", exp.ProjectCode, exp.Username + "/" + exp.Password, "/" + exp.Database,
		"$M" + c.RenderPath(l.File(ExportMacro)),
	}
}

// Plan describes the protocol for a native run, with host paths.
func (l Layout) Plan(exp config.Export, settings config.Protocol) protocol.Plan {
	native := NativeConvention()
	cleanup := make([]string, 0, len(CleanupRefs()))
	for _, p := range l.Cleanup() {
		cleanup = append(cleanup, native.RenderPath(p))
	}
	return protocol.Plan{
		LogPath: native.RenderPath(l.Log()),
		Command: protocol.Command{
			Path: native.RenderPath(l.Monitor()),
			Args: l.LaunchArgs(exp, native),
		},
		Cleanup:       cleanup,
		Script:        native.RenderPath(l.File(RunScript)),
		PollInterval:  settings.PollInterval,
		SettleDelay:   settings.SettleDelay,
		MaxAttempts:   settings.MaxAttempts,
		KeepArtifacts: settings.KeepArtifacts,
	}
}

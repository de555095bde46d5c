package tui

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/kingrea/rvmbridge/internal/artifact"
	"github.com/kingrea/rvmbridge/internal/protocol"
	"github.com/kingrea/rvmbridge/internal/runlog"
)

const tailLines = 8

// Snapshot is what can be told about a run from the output folder alone.
type Snapshot struct {
	State        protocol.State
	LogExists    bool
	Finished     bool
	Output       string
	OutputExists bool
	Tail         []string
	TotalLines   int
	Artifacts    []artifact.CheckResult
	Err          error
}

// Observer reads the output folder of a run started elsewhere.
type Observer struct {
	fs    afero.Fs
	log   *runlog.Log
	store *artifact.Store
}

// NewObserver builds an observer for an output folder.
func NewObserver(outputFolder string, fsys afero.Fs) *Observer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	store := artifact.NewStore(outputFolder, artifact.WithStoreFs(fsys))
	return &Observer{
		fs:    fsys,
		log:   runlog.Open(store.Path(artifact.RunLog), runlog.WithFs(fsys)),
		store: store,
	}
}

// LogPath returns the watched log file.
func (o *Observer) LogPath() string { return o.log.Path() }

// Snapshot derives the coarse protocol state. Attempt counts and launch time
// are not observable from the outside.
func (o *Observer) Snapshot() Snapshot {
	snap := Snapshot{
		State:     protocol.StateLaunched,
		LogExists: o.log.Exists(),
		Artifacts: o.store.CheckAll(artifact.GeneratedRefs()),
	}
	lines, err := o.log.Lines()
	if err != nil {
		snap.Err = err
		return snap
	}
	snap.Tail, snap.TotalLines = tail(lines, tailLines)
	if !snap.LogExists {
		return snap
	}
	scan := protocol.ScanLines(lines)
	snap.Finished = scan.Finished
	snap.Output = scan.Output
	switch {
	case !scan.Finished:
		snap.State = protocol.StatePolling
	case scan.Output == "":
		snap.State = protocol.StatePolling
	default:
		snap.State = protocol.StateCompletionDetected
		native := filepath.FromSlash(strings.ReplaceAll(scan.Output, `\`, "/"))
		if info, err := o.fs.Stat(native); err == nil && !info.IsDir() {
			snap.OutputExists = true
			snap.State = protocol.StateOutputVerified
			if snap.artifactState(artifact.RunScript) == artifact.StateMissing {
				snap.State = protocol.StateSelfRemove
			} else if snap.artifactState(artifact.ExportMacro) == artifact.StateMissing {
				snap.State = protocol.StateCleanup
			}
		}
	}
	return snap
}

func (s Snapshot) artifactState(ref artifact.Ref) artifact.State {
	for _, result := range s.Artifacts {
		if result.Ref.ID == ref.ID {
			return result.State
		}
	}
	return artifact.StateMissing
}

func tail(lines []string, n int) ([]string, int) {
	total := len(lines)
	if total > n {
		lines = lines[total-n:]
	}
	return lines, total
}

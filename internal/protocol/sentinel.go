// Package protocol detects completion of an export run from the shared log
// file and cleans up afterwards. The generated run script encodes the same
// state machine for cmd.exe; Machine runs it natively.
package protocol

import (
	"strings"

	"github.com/kingrea/rvmbridge/internal/runlog"
)

// Sentinel lines written by the export macro. The run script matches them
// byte for byte.
const (
	FinishedSentinel = "[RVM] Finished"
	OutputSentinel   = "[RVM] NWD_OUT="
)

// Scan is what a log tells about a run.
type Scan struct {
	// Finished is true when a line equals FinishedSentinel exactly.
	Finished bool
	// Output is the path from the last OutputSentinel line.
	Output string
	// Declarations counts OutputSentinel lines.
	Declarations int
}

// ScanLines inspects log lines. Only the line ending is dropped; a sentinel
// followed by spaces does not count, the same as findstr /x in the run
// script. A later output declaration replaces an earlier one.
func ScanLines(lines []string) Scan {
	var scan Scan
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r\n")
		switch {
		case line == FinishedSentinel:
			scan.Finished = true
		case strings.HasPrefix(line, OutputSentinel):
			scan.Output = strings.TrimPrefix(line, OutputSentinel)
			scan.Declarations++
		}
	}
	return scan
}

// ScanLog reads and inspects a run log. A missing log scans as empty.
func ScanLog(log *runlog.Log) (Scan, error) {
	lines, err := log.Lines()
	if err != nil {
		return Scan{}, err
	}
	return ScanLines(lines), nil
}

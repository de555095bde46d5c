package protocol

import "time"

// State is a protocol state.
type State string

const (
	StateStart              State = "START"
	StateLaunched           State = "LAUNCHED"
	StatePolling            State = "POLLING"
	StateCompletionDetected State = "COMPLETION_DETECTED"
	StateOutputVerified     State = "OUTPUT_VERIFIED"
	StateCleanup            State = "CLEANUP"
	StateSelfRemove         State = "SELF_REMOVE"
	// StateTimedOut is only reachable with an attempt bound.
	StateTimedOut State = "TIMED_OUT"
)

// DefaultPollInterval is used when a Plan leaves PollInterval unset.
const DefaultPollInterval = 5 * time.Second

// Command is the external tool invocation.
type Command struct {
	Path string
	Args []string
}

// Plan is everything the protocol needs to know about one run. Paths are
// host paths.
type Plan struct {
	LogPath string
	Command Command
	// Cleanup lists intermediate files in removal order.
	Cleanup []string
	// Script is removed last.
	Script string

	PollInterval  time.Duration
	SettleDelay   time.Duration
	MaxAttempts   int
	KeepArtifacts bool
}

// Transition records one state change.
type Transition struct {
	From    State
	To      State
	Attempt int
	Message string
}

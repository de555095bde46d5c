package protocol

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/kingrea/rvmbridge/internal/runlog"
)

var (
	testLog    = filepath.FromSlash("/out/RVM_LOG.txt")
	testScript = filepath.FromSlash("/out/RunE3D.bat")
)

func testCleanup() []string {
	var out []string
	for _, name := range []string{"attribute.mac", "RVM.mac", "settings.json", "TEMP.RVM", "TEMP.txt"} {
		out = append(out, filepath.FromSlash("/out/"+name))
	}
	return out
}

func testPlan() Plan {
	return Plan{
		LogPath:      testLog,
		Command:      Command{Path: "mon.exe", Args: []string{"PROD", "E3D"}},
		Cleanup:      testCleanup(),
		Script:       testScript,
		PollInterval: 5 * time.Second,
		SettleDelay:  3 * time.Second,
	}
}

type recordingLauncher struct {
	calls []Command
	err   error
}

func (l *recordingLauncher) Launch(_ context.Context, cmd Command) error {
	l.calls = append(l.calls, cmd)
	return l.err
}

func writeFiles(t *testing.T, fsys afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := afero.WriteFile(fsys, p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func appendLog(t *testing.T, fsys afero.Fs, lines ...string) {
	t.Helper()
	log := runlog.Open(testLog, runlog.WithFs(fsys))
	for _, line := range lines {
		if err := log.Append(line); err != nil {
			t.Fatal(err)
		}
	}
}

func step(t *testing.T, m *Machine, want State) {
	t.Helper()
	got, err := m.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestScanLinesLastOutputWins(t *testing.T) {
	scan := ScanLines([]string{
		"[RVM] Start RVM.mac",
		"[RVM] NWD_OUT=/x/y.nwd",
		"[RVM] Export /SITE/A",
		"[RVM] NWD_OUT=/x/z.nwd\r",
		"[RVM] Finished\r",
	})
	want := Scan{Finished: true, Output: "/x/z.nwd", Declarations: 2}
	if diff := cmp.Diff(want, scan); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanLinesRequiresExactSentinel(t *testing.T) {
	for _, line := range []string{"[RVM] Finished export", "echo [RVM] Finished", " [RVM] Finished", "[RVM] Finished  ", "[RVM] Finished\t", "[rvm] finished"} {
		if ScanLines([]string{line}).Finished {
			t.Fatalf("line %q must not count as finished", line)
		}
	}
}

func TestScanLogIgnoresPaddedSentinel(t *testing.T) {
	fsys := afero.NewMemMapFs()
	appendLog(t, fsys, "[RVM] Finished ")
	log := runlog.Open(testLog, runlog.WithFs(fsys))
	scan, err := ScanLog(log)
	if err != nil {
		t.Fatalf("ScanLog: %v", err)
	}
	if scan.Finished {
		t.Fatalf("padded sentinel must not count as finished")
	}
	appendLog(t, fsys, "[RVM] Finished")
	if scan, _ = ScanLog(log); !scan.Finished {
		t.Fatalf("CRLF terminated sentinel must count as finished")
	}
}

func TestStartDeletesStaleLogAndLaunches(t *testing.T) {
	fsys := afero.NewMemMapFs()
	appendLog(t, fsys, "[RVM] NWD_OUT=/old.nwd", "[RVM] Finished")
	launcher := &recordingLauncher{}
	m := NewMachine(testPlan(), launcher, WithFs(fsys))

	step(t, m, StateLaunched)
	if exists, _ := afero.Exists(fsys, testLog); exists {
		t.Fatalf("stale log must be deleted before launch")
	}
	if len(launcher.calls) != 1 || launcher.calls[0].Path != "mon.exe" {
		t.Fatalf("launcher calls = %+v", launcher.calls)
	}
	step(t, m, StatePolling)
	step(t, m, StatePolling)
}

func TestLaunchFailureStaysInStart(t *testing.T) {
	launcher := &recordingLauncher{err: errors.New("no such file")}
	m := NewMachine(testPlan(), launcher, WithFs(afero.NewMemMapFs()))
	if _, err := m.Step(context.Background()); err == nil {
		t.Fatalf("expected launch error")
	}
	if m.State() != StateStart {
		t.Fatalf("state = %s, want START", m.State())
	}
}

func TestCapturesLastDeclaredOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	y, z := filepath.FromSlash("/x/y.nwd"), filepath.FromSlash("/x/z.nwd")
	writeFiles(t, fsys, y)
	m := NewMachine(testPlan(), &recordingLauncher{}, WithFs(fsys))
	step(t, m, StateLaunched)
	step(t, m, StatePolling)

	appendLog(t, fsys, "[RVM] NWD_OUT=/x/y.nwd", "[RVM] NWD_OUT=/x/z.nwd", "[RVM] Finished")
	step(t, m, StateCompletionDetected)
	// Only the later path counts, and it does not exist yet.
	step(t, m, StatePolling)

	writeFiles(t, fsys, z)
	step(t, m, StateCompletionDetected)
	step(t, m, StateOutputVerified)
	if got := m.Result().Output; got != z {
		t.Fatalf("Output = %q, want %q", got, z)
	}
}

func TestCleanupIsBestEffortAndOrdered(t *testing.T) {
	base := afero.NewMemMapFs()
	cleanup := testCleanup()
	locked := cleanup[1]
	fsys := lockedFs{Fs: base, locked: locked}
	writeFiles(t, base, filepath.FromSlash("/x/z.nwd"), testScript, cleanup[0], cleanup[1], cleanup[2], cleanup[4])

	m := NewMachine(testPlan(), &recordingLauncher{}, WithFs(fsys), WithLogger(zaptest.NewLogger(t)))
	step(t, m, StateLaunched)
	appendLog(t, base, "[RVM] NWD_OUT=/x/z.nwd", "[RVM] Finished")
	step(t, m, StatePolling)
	step(t, m, StateCompletionDetected)
	step(t, m, StateOutputVerified)
	step(t, m, StateCleanup)
	step(t, m, StateSelfRemove)
	if !m.Terminal() {
		t.Fatalf("SELF_REMOVE must be terminal")
	}

	res := m.Result()
	if diff := cmp.Diff([]string{cleanup[0], cleanup[2], cleanup[4], testScript}, res.Removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{cleanup[3]}, res.Skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	errs := multierr.Errors(res.CleanupErr)
	var removeErr *RemoveError
	if len(errs) != 1 || !errors.As(errs[0], &removeErr) || removeErr.Path != locked {
		t.Fatalf("cleanup errors = %v", errs)
	}
	if exists, _ := afero.Exists(base, testLog); !exists {
		t.Fatalf("run log must survive cleanup")
	}
	if exists, _ := afero.Exists(base, filepath.FromSlash("/x/z.nwd")); !exists {
		t.Fatalf("output must survive cleanup")
	}
}

func TestKeepArtifactsStopsAtVerifiedOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	plan := testPlan()
	plan.KeepArtifacts = true
	writeFiles(t, fsys, filepath.FromSlash("/x/z.nwd"), plan.Cleanup[0])
	m := NewMachine(plan, &recordingLauncher{}, WithFs(fsys))
	step(t, m, StateLaunched)
	appendLog(t, fsys, "[RVM] NWD_OUT=/x/z.nwd", "[RVM] Finished")
	step(t, m, StatePolling)
	step(t, m, StateCompletionDetected)
	step(t, m, StateOutputVerified)
	if !m.Terminal() {
		t.Fatalf("verified output must be terminal when keeping artifacts")
	}
	step(t, m, StateOutputVerified)
	if exists, _ := afero.Exists(fsys, plan.Cleanup[0]); !exists {
		t.Fatalf("artifacts must be kept")
	}
}

func TestMaxAttemptsTimesOut(t *testing.T) {
	plan := testPlan()
	plan.MaxAttempts = 2
	m := NewMachine(plan, &recordingLauncher{}, WithFs(afero.NewMemMapFs()))
	step(t, m, StateLaunched)
	step(t, m, StatePolling)
	step(t, m, StatePolling)
	step(t, m, StateTimedOut)
	if res := m.Result(); res.Attempts != 2 || res.State != StateTimedOut {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunWaitsOnClock(t *testing.T) {
	fsys := afero.NewMemMapFs()
	clock := clockwork.NewFakeClock()
	var transitions []State
	m := NewMachine(testPlan(), &recordingLauncher{}, WithFs(fsys), WithClock(clock),
		WithObserver(func(tr Transition) { transitions = append(transitions, tr.To) }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := m.Run(ctx)
		errCh <- err
		done <- res
	}()

	// First poll found nothing and the machine is sleeping.
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for first sleep: %v", err)
	}
	writeFiles(t, fsys, filepath.FromSlash("/x/z.nwd"))
	appendLog(t, fsys, "[RVM] NWD_OUT=/x/z.nwd", "[RVM] Finished")
	clock.Advance(5 * time.Second)

	// Settle delay before cleanup.
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for settle: %v", err)
	}
	clock.Advance(3 * time.Second)

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := <-done
	if res.State != StateSelfRemove || res.Attempts != 2 {
		t.Fatalf("result = %+v", res)
	}
	want := []State{
		StateLaunched, StatePolling, StatePolling,
		StateCompletionDetected, StateOutputVerified, StateCleanup, StateSelfRemove,
	}
	if diff := cmp.Diff(want, transitions); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMachine(testPlan(), &recordingLauncher{}, WithFs(afero.NewMemMapFs()), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(ctx)
		errCh <- err
	}()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if m.State() != StatePolling {
		t.Fatalf("state = %s, want POLLING", m.State())
	}
}

func TestRunDefaultsUnsetPollInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	plan := testPlan()
	plan.PollInterval = 0
	m := NewMachine(plan, &recordingLauncher{}, WithFs(afero.NewMemMapFs()), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(ctx)
		errCh <- err
	}()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("machine never slept between polls: %v", err)
	}
	clock.Advance(DefaultPollInterval - time.Second)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if got := m.Result().Attempts; got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

type lockedFs struct {
	afero.Fs
	locked string
}

func (f lockedFs) Remove(name string) error {
	if name == f.locked {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("file in use")}
	}
	return f.Fs.Remove(name)
}

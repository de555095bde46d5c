package artifact

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/protocol"
)

// Section names of the run script. Each one carries one or more protocol
// states.
const (
	SectionPrologue = "prologue"
	SectionLaunch   = "launch"
	SectionPoll     = "poll"
	SectionDone     = "done"
	SectionTimeout  = "timeout"
	SectionRemove   = "remove"
)

// seconds rounds a duration up to whole seconds for timeout /t.
func seconds(d time.Duration, floor int) string {
	s := int((d + time.Second - 1) / time.Second)
	if s < floor {
		s = floor
	}
	return strconv.Itoa(s)
}

func buildRunScript(exp config.Export, proto config.Protocol, layout Layout) Document {
	log := layout.Log()
	bounded := proto.MaxAttempts > 0
	interval := seconds(proto.PollInterval, 1)

	prologue := Section{Name: SectionPrologue, Lines: []Line{
		T("@echo off"),
		T("setlocal ENABLEDELAYEDEXPANSION"),
		T("echo [INFO] Starting AVEVA E3D with macro " + ExportMacro.FileName + "..."),
		T("echo -----------------------------------------"),
	}}

	// START -> LAUNCHED
	launch := Section{Name: SectionLaunch, Lines: []Line{
		L(Text("if exist "), Quoted(log), Text(" del "), Quoted(log)),
		L(
			Text(`start "" /b `), Quoted(layout.Monitor()),
			Text(" PROD E3D init "), Quoted(layout.Init()),
			Text(fmt.Sprintf(" GRAPHICS %s %s/%s /%s $M", exp.ProjectCode, exp.Username, exp.Password, exp.Database)),
			layout.File(ExportMacro),
		),
	}}

	// LAUNCHED -> POLLING -> COMPLETION_DETECTED -> OUTPUT_VERIFIED
	poll := Section{Name: SectionPoll, Lines: []Line{
		T("echo [INFO] Tracking macro progress..."),
		T(`set "NWD_PATH="`),
	}}
	if bounded {
		poll.Lines = append(poll.Lines, T("set /a ATTEMPTS=0"))
	}
	poll.Lines = append(poll.Lines, T(":loop"))
	if bounded {
		poll.Lines = append(poll.Lines, T("set /a ATTEMPTS+=1"))
	}
	poll.Lines = append(poll.Lines,
		L(Text("if exist "), Quoted(log), Text(" (")),
		L(Text(`  findstr /l /x /c:"`+protocol.FinishedSentinel+`" `), Quoted(log), Text(" >nul")),
		T("  if not errorlevel 1 ("),
		T("    echo [INFO] Macro has finished. Checking for NWD file path..."),
		T(`    set "NWD_PATH="`),
		L(Text("    for /f \"usebackq tokens=1,* delims==\" %%A in (`findstr /l /b /c:\""+protocol.OutputSentinel+"\" "), Quoted(log), Text("`) do set \"NWD_PATH=%%B\"")),
		T("    if defined NWD_PATH ("),
		T(`      set "NWD_PATH=!NWD_PATH:/=\!"`),
		T("      echo [INFO] NWD path found: !NWD_PATH!"),
		T(`      if exist "!NWD_PATH!" goto done`),
		T("      echo [WARN] NWD file does not exist yet, waiting..."),
		T("    )"),
		T("  )"),
		T(")"),
	)
	if bounded {
		poll.Lines = append(poll.Lines, T("if %ATTEMPTS% GEQ "+strconv.Itoa(proto.MaxAttempts)+" goto timed_out"))
	}
	poll.Lines = append(poll.Lines,
		T("echo [INFO] Waiting for macro to complete... (checking again in "+interval+"s)"),
		T("timeout /t "+interval+" /nobreak >nul"),
		T("goto loop"),
	)

	// OUTPUT_VERIFIED -> CLEANUP -> SELF_REMOVE
	done := Section{Name: SectionDone, Lines: []Line{
		T(":done"),
		T("echo."),
		T("echo [SUCCESS] Process finished. NWD file is ready at: !NWD_PATH!"),
		T("echo -----------------------------------------"),
	}}
	if proto.KeepArtifacts {
		done.Lines = append(done.Lines,
			T("echo [INFO] Keeping intermediate files for inspection."),
			T("exit /b 0"),
		)
	} else {
		if proto.SettleDelay > 0 {
			done.Lines = append(done.Lines, T("timeout /t "+seconds(proto.SettleDelay, 0)+" /nobreak >nul"))
		}
		for _, p := range layout.Cleanup() {
			done.Lines = append(done.Lines, L(Text("call :remove "), Quoted(p)))
		}
		done.Lines = append(done.Lines,
			T("echo [INFO] Cleanup finished."),
			L(Text("(goto) 2>nul & del "), Quoted(layout.File(RunScript))),
		)
	}

	sections := []Section{prologue, launch, poll, done}
	if bounded {
		sections = append(sections, Section{Name: SectionTimeout, Lines: []Line{
			T(":timed_out"),
			T("echo [ERROR] Gave up after " + strconv.Itoa(proto.MaxAttempts) + " attempts without a verified output."),
			T("exit /b 1"),
		}})
	}
	if !proto.KeepArtifacts {
		sections = append(sections, Section{Name: SectionRemove, Lines: []Line{
			T(":remove"),
			T(`if not exist "%~1" (`),
			T("  echo [WARN] %~1 not found, skipping."),
			T("  goto :eof"),
			T(")"),
			T(`del /f /q "%~1" 2>nul`),
			T(`if exist "%~1" (`),
			T("  echo [WARN] Could not delete %~1, skipping."),
			T(") else ("),
			T("  echo [INFO] Deleted %~1"),
			T(")"),
			T("goto :eof"),
		}})
	}

	return Document{
		Ref:        RunScript,
		Convention: ShellConvention,
		Sections:   sections,
	}
}

package artifact

import (
	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/objects"
	"github.com/kingrea/rvmbridge/internal/protocol"
)

// Section names of the export macro.
const (
	SectionHeader  = "header"
	SectionSetup   = "setup"
	SectionObjects = "objects"
	SectionTrailer = "trailer"
)

// ExportDirective is the design tool command exporting one object.
const ExportDirective = "EXPORT "

// logLine appends a message to the run log through the shell. The
// redirection comes first so the echoed text ends exactly where the message
// does and a trailing digit is never read as a handle number.
func logLine(log Path, message ...Part) Line {
	line := Line{Text(`SYSCOM |>>`), Quoted(log), Text(" echo ")}
	line = append(line, message...)
	return append(line, Text("|"))
}

func buildExportMacro(exp config.Export, list objects.List, layout Layout) Document {
	log := layout.Log()

	header := Section{Name: SectionHeader, Lines: []Line{
		T("DESIGN"),
		T("ONERROR CONTINUE"),
		logLine(log, Text("[RVM] Start "+ExportMacro.FileName)),
	}}
	if exp.ExportAttributes {
		header.Lines = append(header.Lines,
			logLine(log, Text("[RVM] Start "+AttributeMacro.FileName)),
			L(Text("$M "), layout.File(AttributeMacro)),
		)
	} else {
		header.Lines = append(header.Lines, logLine(log, Text("[RVM] Skipping "+AttributeMacro.FileName)))
	}

	setup := Section{Name: SectionSetup, Lines: []Line{
		logLine(log, Text("[RVM] Exporting RVM file...")),
		L(Text("EXPORT FILE /"), layout.File(TempRVM), Text(" OVER")),
		T("EXPORT AUTOCOLOUR DISPLAYEXPORT ON"),
		T("EXPORT AUTOCOLOUR ON"),
		T("EXPORT REPR ON"),
		T("EXPORT HOLES ON"),
		T("EXPORT IMPLIED TUBE INTO SEPARATE"),
	}}

	pairs := Section{Name: SectionObjects, Lines: make([]Line, 0, 2*len(list))}
	for _, obj := range list {
		pairs.Lines = append(pairs.Lines,
			logLine(log, Text("[RVM] Export "+obj)),
			T(ExportDirective+obj),
		)
	}

	trailer := Section{Name: SectionTrailer, Lines: []Line{
		T("EXPORT FINISH"),
		Blank,
		T("VAR !PROJ PROJ CODE"),
		T("!CUDATE = OBJECT DATETIME()"),
		T("!DAY = !CUDATE.DATE().STRING()"),
		T("IF !DAY.LENGTH().EQ( 1 ) THEN"),
		T("  !DAY = '0' + !DAY"),
		T("ENDIF"),
		T("!MONTH = !CUDATE.MONTH().STRING()"),
		T("IF !MONTH.LENGTH().EQ( 1 ) THEN"),
		T("  !MONTH = '0' + !MONTH"),
		T("ENDIF"),
		L(Text("!FILNAME = '"), layout.Output, Text("/' + '$!PROJ-' + !CUDATE.YEAR().STRING() + '-' + !MONTH + '-' + !DAY + '.nwd'")),
		logLine(log, Text(protocol.OutputSentinel+"$!FILNAME")),
		Blank,
		logLine(log, Text("[RVM] Launching Navisworks...")),
		L(Text(`SYSCOM |"`), Quoted(layout.Viewer), Text(" -nwd $!FILNAME "), Quoted(layout.File(TempRVM)), Text("|")),
		Blank,
		logLine(log, Text(protocol.FinishedSentinel)),
		T("FINISH"),
	}}

	return Document{
		Ref:        ExportMacro,
		Convention: MacroConvention,
		Sections:   []Section{header, setup, pairs, trailer},
	}
}

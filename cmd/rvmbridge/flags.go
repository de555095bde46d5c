package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/defaults"
)

// exportFlags are the command-line overrides of config.yaml. Only flags the
// user actually set are applied.
type exportFlags struct {
	installPath      string
	projectCode      string
	username         string
	password         string
	database         string
	outputFolder     string
	viewerFolder     string
	objectList       string
	exportAttributes bool
	dailyExport      bool
	exportTime       string

	pollInterval  time.Duration
	settleDelay   time.Duration
	maxAttempts   int
	keepArtifacts bool
	save          bool
}

func (f *exportFlags) bindExport(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.installPath, "install", "", "design tool install folder")
	flags.StringVarP(&f.projectCode, "project", "p", "", "project code")
	flags.StringVarP(&f.username, "user", "u", "", "design tool user")
	flags.StringVar(&f.password, "password", "", "design tool password")
	flags.StringVar(&f.database, "mdb", "", "multiple database (defaults per project)")
	flags.StringVarP(&f.outputFolder, "output", "o", "", "output folder for the artifacts and the model")
	flags.StringVar(&f.viewerFolder, "viewer", "", "viewer install folder")
	flags.StringVar(&f.objectList, "objects", "", "text file with one object per line")
	flags.BoolVar(&f.exportAttributes, "attributes", true, "export attributes alongside the geometry")
	flags.BoolVar(&f.dailyExport, "daily", false, "record a daily export")
	flags.StringVar(&f.exportTime, "time", "", "daily export time (HH:mm)")
	flags.BoolVar(&f.save, "save", false, "write the effective export settings back to config.yaml")
}

func (f *exportFlags) bindProtocol(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.DurationVar(&f.pollInterval, "poll", config.DefaultPollInterval, "wait between log checks")
	flags.DurationVar(&f.settleDelay, "settle", config.DefaultSettleDelay, "wait between output verification and cleanup")
	flags.IntVar(&f.maxAttempts, "max-attempts", 0, "give up after this many log checks (0 waits forever)")
	flags.BoolVar(&f.keepArtifacts, "keep", false, "leave the intermediate files in place")
}

func (f *exportFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	strs := []struct {
		name   string
		value  string
		target *string
	}{
		{"install", f.installPath, &cfg.Export.InstallPath},
		{"project", f.projectCode, &cfg.Export.ProjectCode},
		{"user", f.username, &cfg.Export.Username},
		{"password", f.password, &cfg.Export.Password},
		{"mdb", f.database, &cfg.Export.Database},
		{"output", f.outputFolder, &cfg.Export.OutputFolder},
		{"viewer", f.viewerFolder, &cfg.Export.ViewerFolder},
		{"objects", f.objectList, &cfg.Export.ObjectListFile},
	}
	for _, s := range strs {
		if changed(s.name) {
			*s.target = s.value
		}
	}
	// A new project brings its own database unless one was given too.
	if changed("project") && !changed("mdb") {
		if mdb, ok := defaults.Builtin().Database(f.projectCode); ok {
			cfg.Export.Database = mdb
		}
	}
	if changed("attributes") {
		cfg.Export.ExportAttributes = f.exportAttributes
	}
	if changed("daily") {
		cfg.Export.DailyExport = f.dailyExport
	}
	if changed("time") {
		// --time implies a daily export unless --daily said otherwise.
		if !changed("daily") {
			cfg.Export.DailyExport = true
		}
		if t, err := config.ParseClockTime(f.exportTime); err == nil {
			cfg.Export.ExportTime = config.SomeTime(t)
		}
	}

	if changed("poll") {
		cfg.Protocol.PollInterval = f.pollInterval
	}
	if changed("settle") {
		cfg.Protocol.SettleDelay = f.settleDelay
	}
	if changed("max-attempts") {
		cfg.Protocol.MaxAttempts = f.maxAttempts
	}
	if changed("keep") {
		cfg.Protocol.KeepArtifacts = f.keepArtifacts
	}
	cfg.Normalize()
}

// validateTime reports a malformed --time value, or one combined with an
// explicit --daily=false.
func (f *exportFlags) validateTime(cmd *cobra.Command) error {
	flag := cmd.Flags().Lookup("time")
	if flag == nil || !flag.Changed {
		return nil
	}
	if daily := cmd.Flags().Lookup("daily"); daily != nil && daily.Changed && !f.dailyExport {
		return fmt.Errorf("--time %s needs a daily export, but --daily=false was given", flag.Value.String())
	}
	_, err := config.ParseClockTime(flag.Value.String())
	return err
}

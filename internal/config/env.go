package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override values from config.yaml.
const (
	EnvInstallPath   = "RVMBRIDGE_INSTALL_PATH"
	EnvProject       = "RVMBRIDGE_PROJECT"
	EnvUser          = "RVMBRIDGE_USER"
	EnvPassword      = "RVMBRIDGE_PASSWORD"
	EnvDatabase      = "RVMBRIDGE_MDB"
	EnvOutput        = "RVMBRIDGE_OUTPUT"
	EnvViewer        = "RVMBRIDGE_VIEWER"
	EnvObjects       = "RVMBRIDGE_OBJECTS"
	EnvPollInterval  = "RVMBRIDGE_POLL_INTERVAL"
	EnvMaxAttempts   = "RVMBRIDGE_MAX_ATTEMPTS"
	EnvKeepArtifacts = "RVMBRIDGE_KEEP_ARTIFACTS"
)

func (c *Config) applyEnvOverrides() {
	if c == nil {
		return
	}
	strVars := map[string]*string{
		EnvInstallPath: &c.Export.InstallPath,
		EnvProject:     &c.Export.ProjectCode,
		EnvUser:        &c.Export.Username,
		EnvDatabase:    &c.Export.Database,
		EnvOutput:      &c.Export.OutputFolder,
		EnvViewer:      &c.Export.ViewerFolder,
		EnvObjects:     &c.Export.ObjectListFile,
	}
	for name, target := range strVars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
	// Passwords may legitimately carry surrounding spaces.
	if value := os.Getenv(EnvPassword); value != "" {
		c.Export.Password = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvPollInterval)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			c.Protocol.PollInterval = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv(EnvMaxAttempts)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			c.Protocol.MaxAttempts = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv(EnvKeepArtifacts)); value != "" {
		if keep, err := strconv.ParseBool(value); err == nil {
			c.Protocol.KeepArtifacts = keep
		}
	}
}

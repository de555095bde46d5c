// internal/config/config.go
//
// This package handles configuration and the .rvmbridge directory structure.
// Every folder rvmbridge runs from gets a .rvmbridge/ folder holding the
// config file, the run logs, and the persisted object lists.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/rvmbridge/internal/defaults"
)

const (
	// Dir is the name of the directory we create in each working folder
	Dir = ".rvmbridge"

	// DefaultInstallPath is where the design tool installs itself by default.
	DefaultInstallPath = "C:/Program Files (x86)/AVEVA/Everything3D3.1"
	// DefaultViewerFolder is where the viewer installs itself by default.
	DefaultViewerFolder = "C:/Program Files/Autodesk/Navisworks Manage 2020"

	// DefaultPollInterval matches the 5 second sleep of the run script loop.
	DefaultPollInterval = 5 * time.Second
	// DefaultSettleDelay is the pause between output verification and cleanup.
	DefaultSettleDelay = 3 * time.Second
)

const defaultConfigYAML = `# rvmbridge configuration
version: 1

export:
  install_path: "C:/Program Files (x86)/AVEVA/Everything3D3.1"
  viewer_folder: "C:/Program Files/Autodesk/Navisworks Manage 2020"
  # project_code: PBZ
  # user: SYSTEM
  # mdb: P2-ALL-PLANT           # falls back to the project default when empty
  # output_folder: C:/Exports
  # object_list: C:/Exports/SITE.txt
  export_attributes: true
  daily_export: false
  # export_time: "00:00"

protocol:
  poll_interval: 5s
  settle_delay: 3s
  max_attempts: 0               # 0 polls until the output appears
  keep_artifacts: false
`

// Protocol holds the knobs of the completion-detection loop.
type Protocol struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	MaxAttempts   int           `yaml:"max_attempts"`
	KeepArtifacts bool          `yaml:"keep_artifacts"`
}

// File models .rvmbridge/config.yaml.
type File struct {
	Version  int      `yaml:"version"`
	Export   Export   `yaml:"export"`
	Protocol Protocol `yaml:"protocol"`
}

// Config holds the runtime configuration for rvmbridge.
type Config struct {
	// WorkDir is the directory where the user ran `rvmbridge` from
	WorkDir string

	// ProjectDir is WorkDir/.rvmbridge
	ProjectDir string

	Export   Export
	Protocol Protocol
}

// InitDir creates the .rvmbridge directory structure in the given folder.
//
// Structure created:
// .rvmbridge/
// ├── config.yaml
// ├── logs/      <- rvmbridge.log
// └── state/     <- objects.db
func InitDir(workDir string) error {
	root := filepath.Join(workDir, Dir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureConfigFile(filepath.Join(root, "config.yaml"))
}

// Load builds a Config from defaults, the config file and environment
// overrides. Flags are applied by the caller afterwards; validation happens
// right before generation because it touches the filesystem.
func Load(workDir string) (*Config, error) {
	cfg := &Config{
		WorkDir:    workDir,
		ProjectDir: filepath.Join(workDir, Dir),
		Export:     defaultExport(),
		Protocol:   defaultProtocol(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Normalize()
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.ProjectDir, "state")
}

// ObjectStorePath returns the sqlite file holding persisted object lists.
func (c *Config) ObjectStorePath() string {
	return filepath.Join(c.StateDir(), "objects.db")
}

// FilePath returns the on-disk location for the config file.
func (c *Config) FilePath() string {
	return filepath.Join(c.ProjectDir, "config.yaml")
}

// Normalize trims values, applies defaults that depend on other fields, and
// reconciles the optional export time with the daily export flag.
func (c *Config) Normalize() {
	c.Export.normalize(defaults.Builtin())
	c.Protocol.normalize()
}

func (c *Config) loadFile() error {
	path := c.FilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := File{Export: c.Export, Protocol: c.Protocol}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if parsed.Version > 1 {
		return fmt.Errorf("config: unsupported version %d", parsed.Version)
	}
	c.Export = parsed.Export
	c.Protocol = parsed.Protocol
	return nil
}

// Save writes the current export and protocol settings back to config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Normalize()
	if err := os.MkdirAll(c.ProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", Dir, err)
	}
	data, err := yaml.Marshal(File{Version: 1, Export: c.Export, Protocol: c.Protocol})
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.FilePath(), data, 0o600); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}

func defaultExport() Export {
	return Export{
		InstallPath:      DefaultInstallPath,
		ViewerFolder:     DefaultViewerFolder,
		ExportAttributes: true,
	}
}

func defaultProtocol() Protocol {
	return Protocol{
		PollInterval: DefaultPollInterval,
		SettleDelay:  DefaultSettleDelay,
	}
}

func (p *Protocol) normalize() {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.SettleDelay < 0 {
		p.SettleDelay = 0
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o600)
}

// nativePath rewrites either separator style to the host convention so
// existence checks work no matter how the user typed the value.
func nativePath(value string) string {
	return filepath.FromSlash(strings.ReplaceAll(value, `\`, "/"))
}

package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/config"
	"github.com/kingrea/rvmbridge/internal/objects"
	"github.com/kingrea/rvmbridge/internal/protocol"
)

// ErrEmptyObjectList is returned when Build is given no objects.
var ErrEmptyObjectList = errors.New("artifact: object list is empty")

// Set is one rendered artifact set. All documents share Layout.
type Set struct {
	Layout         Layout
	Settings       Settings
	ExportMacro    Document
	AttributeMacro Document
	RunScript      Document
	Plan           protocol.Plan

	files map[string][]byte
}

// Bytes returns the rendered bytes of a generated artifact.
func (s Set) Bytes(ref Ref) []byte {
	return s.files[ref.ID]
}

// Generator renders artifact sets and writes them to the output folder.
type Generator struct {
	fs     afero.Fs
	logger *zap.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithFs overrides the filesystem used for validation and writes.
func WithFs(fsys afero.Fs) Option {
	return func(g *Generator) {
		if fsys != nil {
			g.fs = fsys
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator builds a generator on the host filesystem.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{fs: afero.NewOsFs(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build renders the four documents. It touches nothing on disk and gives
// byte-identical output for identical input.
func (g *Generator) Build(cfg *config.Config, res objects.Resolution) (Set, error) {
	if len(res.Objects) == 0 {
		return Set{}, ErrEmptyObjectList
	}
	exp := cfg.Export
	layout := NewLayout(exp)
	set := Set{
		Layout:         layout,
		Settings:       NewSettings(exp, res),
		ExportMacro:    buildExportMacro(exp, res.Objects, layout),
		AttributeMacro: buildAttributeMacro(res.Objects, layout),
		RunScript:      buildRunScript(exp, cfg.Protocol, layout),
		Plan:           layout.Plan(exp, cfg.Protocol),
	}
	settings, err := set.Settings.Encode()
	if err != nil {
		return Set{}, err
	}
	set.files = map[string][]byte{
		SettingsRecord.ID: settings,
		ExportMacro.ID:    set.ExportMacro.Render(),
		AttributeMacro.ID: set.AttributeMacro.Render(),
		RunScript.ID:      set.RunScript.Render(),
	}
	return set, nil
}

// Generate validates the configuration, renders the set and writes the four
// files in order: settings, export macro, attribute macro, run script.
// Nothing is written when validation fails. A write failure stops the
// sequence without removing files already written.
func (g *Generator) Generate(ctx context.Context, cfg *config.Config, res objects.Resolution) (Set, error) {
	if err := cfg.Export.Validate(g.fs); err != nil {
		return Set{}, err
	}
	set, err := g.Build(cfg, res)
	if err != nil {
		return Set{}, err
	}
	for _, obj := range res.Objects {
		if strings.ContainsAny(obj, " \t") {
			g.logger.Warn("object identifier contains whitespace and will split the attribute collection", zap.String("object", obj))
		}
	}

	store := NewStore(cfg.Export.OutputFolder, WithStoreFs(g.fs))
	for _, ref := range GeneratedRefs() {
		if err := ctx.Err(); err != nil {
			return set, fmt.Errorf("artifact: generation cancelled before %s: %w", ref.FileName, err)
		}
		if err := store.Write(ref, set.Bytes(ref)); err != nil {
			g.logger.Error("artifact write failed", zap.String("artifact", ref.FileName), zap.Error(err))
			return set, err
		}
		g.logger.Debug("artifact written", zap.String("artifact", ref.FileName), zap.String("path", store.Path(ref)))
	}
	g.logger.Info("artifacts generated",
		zap.String("output", cfg.Export.OutputFolder),
		zap.Int("objects", len(res.Objects)),
		zap.Bool("from_file", res.Source != ""),
	)
	return set, nil
}

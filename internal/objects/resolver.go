package objects

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kingrea/rvmbridge/internal/defaults"
)

// ErrNoObjectsAvailable is returned when neither the object list file nor
// the persisted/default list yields any object.
var ErrNoObjectsAvailable = errors.New("objects: no objects available")

// Resolution is the effective list for a run and where it came from.
type Resolution struct {
	Objects List
	// Source is the object list file the objects were read from. It is empty
	// when the persisted or default list was used.
	Source string
}

// Resolver picks the effective object list. A non-empty object list file
// always wins; otherwise the persisted per-project list is used, seeded from
// the project defaults the first time a project is seen.
type Resolver struct {
	store    Store
	defaults *defaults.Table
	fs       afero.Fs
	logger   *zap.Logger
}

// ResolverOption customizes a Resolver during construction.
type ResolverOption func(*Resolver)

// WithFs overrides the filesystem used to read object list files.
func WithFs(fsys afero.Fs) ResolverOption {
	return func(r *Resolver) {
		if fsys != nil {
			r.fs = fsys
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a resolver over the given store and defaults table.
func NewResolver(store Store, table *defaults.Table, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:    store,
		defaults: table,
		fs:       afero.NewOsFs(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective object list for projectCode.
func (r *Resolver) Resolve(ctx context.Context, projectCode, fileRef string) (Resolution, error) {
	if fileRef = strings.TrimSpace(fileRef); fileRef != "" {
		list, err := ReadList(r.fs, fileRef)
		if err != nil {
			return Resolution{}, err
		}
		if len(list) > 0 {
			r.logger.Debug("objects read from file", zap.String("file", fileRef), zap.Int("count", len(list)))
			return Resolution{Objects: list, Source: fileRef}, nil
		}
		r.logger.Info("object list file empty or missing, using project list", zap.String("file", fileRef))
	}

	list, err := r.Persisted(ctx, projectCode)
	if err != nil {
		return Resolution{}, err
	}
	if len(list) == 0 {
		return Resolution{}, fmt.Errorf("%w for project %s", ErrNoObjectsAvailable, projectCode)
	}
	return Resolution{Objects: list}, nil
}

// Persisted returns the stored list for a project, seeding it from the
// defaults table when nothing was stored yet.
func (r *Resolver) Persisted(ctx context.Context, projectCode string) (List, error) {
	list, ok, err := r.store.Get(ctx, projectCode)
	if err != nil {
		return nil, fmt.Errorf("objects: load project %s: %w", projectCode, err)
	}
	if ok {
		return list, nil
	}
	seed := List(r.defaults.Objects(projectCode))
	if seed == nil {
		seed = List{}
	}
	if err := r.store.Set(ctx, projectCode, seed); err != nil {
		return nil, fmt.Errorf("objects: seed project %s: %w", projectCode, err)
	}
	r.logger.Debug("seeded project objects from defaults", zap.String("project", projectCode), zap.Int("count", len(seed)))
	return seed.Clone(), nil
}

// ReadList reads an object list file: one identifier per line, trimmed, blank
// lines dropped, a leading byte order mark ignored. A missing file or a
// directory yields an empty list and no error. ref may use either separator.
func ReadList(fsys afero.Fs, ref string) (List, error) {
	path := filepath.FromSlash(strings.ReplaceAll(ref, `\`, "/"))
	file, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("objects: open %s: %w", ref, err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.IsDir() {
		return nil, nil
	}

	var list List
	scanner := bufio.NewScanner(file)
	for first := true; scanner.Scan(); first = false {
		text := scanner.Text()
		if first {
			// Notepad saves UTF-8 with a byte order mark.
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if line := strings.TrimSpace(text); line != "" {
			list = append(list, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("objects: read %s: %w", ref, err)
	}
	return list, nil
}

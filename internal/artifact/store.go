package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteError reports a failed write of one artifact. Files written before the
// failure stay on disk.
type WriteError struct {
	Ref  Ref
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("artifact: write %s (%s): %v", e.Ref.FileName, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store manages artifact IO rooted at one output folder.
type Store struct {
	fs   afero.Fs
	root string
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithStoreFs overrides the filesystem.
func WithStoreFs(fsys afero.Fs) StoreOption {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// NewStore builds a store for an output folder given in either separator
// style.
func NewStore(outputFolder string, opts ...StoreOption) *Store {
	store := &Store{
		fs:   afero.NewOsFs(),
		root: filepath.FromSlash(NewPath(outputFolder).String()),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Path resolves the host path of an artifact.
func (s *Store) Path(ref Ref) string {
	return filepath.Join(s.root, ref.FileName)
}

// Check inspects the artifact on disk and returns its status.
func (s *Store) Check(ref Ref) (CheckResult, error) {
	path := s.Path(ref)
	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Ref: ref, Path: path, State: StateMissing}, nil
		}
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	if info.IsDir() {
		return invalidResult(ref, path, fmt.Errorf("artifact: expected file got directory"))
	}
	result := CheckResult{Ref: ref, Path: path, State: StateReady, Size: info.Size()}
	if ref.Kind == KindJSON {
		data, readErr := afero.ReadFile(s.fs, path)
		if readErr != nil {
			return CheckResult{Ref: ref, Path: path, State: StateError, Err: readErr}, readErr
		}
		if !json.Valid(data) {
			return invalidResult(ref, path, fmt.Errorf("artifact: %s is not valid json", ref.FileName))
		}
	}
	return result, nil
}

// CheckAll inspects every reference, in order. Errors are carried in the
// results.
func (s *Store) CheckAll(refs []Ref) []CheckResult {
	out := make([]CheckResult, 0, len(refs))
	for _, ref := range refs {
		result, _ := s.Check(ref)
		out = append(out, result)
	}
	return out
}

// Write replaces the artifact contents.
func (s *Store) Write(ref Ref, body []byte) error {
	path := s.Path(ref)
	if body == nil {
		body = []byte{}
	}
	if err := afero.WriteFile(s.fs, path, body, 0o644); err != nil {
		return &WriteError{Ref: ref, Path: path, Err: err}
	}
	return nil
}

func invalidResult(ref Ref, path string, err error) (CheckResult, error) {
	return CheckResult{Ref: ref, Path: path, State: StateInvalid, Err: err}, err
}

package objects

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/kingrea/rvmbridge/internal/defaults"
)

func testTable(t *testing.T) *defaults.Table {
	t.Helper()
	table, err := defaults.Parse([]byte(`
projects:
  PBZ:
    mdb: P2-ALL-PLANT
    objects: [/SITE/DEF-1, /SITE/DEF-2]
  EMPTY:
    mdb: NONE
`))
	if err != nil {
		t.Fatalf("parse defaults: %v", err)
	}
	return table
}

func newTestResolver(t *testing.T, store Store, fsys afero.Fs) *Resolver {
	t.Helper()
	return NewResolver(store, testTable(t), WithFs(fsys))
}

func TestResolveFileWinsOverPersisted(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/in/SITE.txt", []byte("\ufeff /SITE/A \n\n/SITE/B\r\n   \n/SITE/A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewMemoryStore()
	if err := store.Set(ctx, "PBZ", List{"/SITE/PERSISTED"}); err != nil {
		t.Fatal(err)
	}

	res, err := newTestResolver(t, store, fsys).Resolve(ctx, "PBZ", "/in/SITE.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := List{"/SITE/A", "/SITE/B", "/SITE/A"}
	if diff := cmp.Diff(want, res.Objects); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
	if res.Source != "/in/SITE.txt" {
		t.Fatalf("Source = %q, want file path", res.Source)
	}
}

func TestResolveEmptyFileFallsBackToPersisted(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/in/SITE.txt", []byte("\n  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewMemoryStore()
	if err := store.Set(ctx, "PBZ", List{"/SITE/P1", "/SITE/P2"}); err != nil {
		t.Fatal(err)
	}
	res, err := newTestResolver(t, store, fsys).Resolve(ctx, "PBZ", "/in/SITE.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(List{"/SITE/P1", "/SITE/P2"}, res.Objects); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
	if res.Source != "" {
		t.Fatalf("Source = %q, want empty for fallback", res.Source)
	}
}

func TestResolveMissingFileSeedsFromDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	res, err := newTestResolver(t, store, afero.NewMemMapFs()).Resolve(ctx, "pbz", "/nope/SITE.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(List{"/SITE/DEF-1", "/SITE/DEF-2"}, res.Objects); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
	stored, ok, err := store.Get(ctx, "PBZ")
	if err != nil || !ok {
		t.Fatalf("expected seeded list, ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(res.Objects, stored); diff != "" {
		t.Fatalf("seeded list mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvePersistedEditIsNotReseeded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := newTestResolver(t, store, afero.NewMemMapFs())
	if _, err := resolver.Resolve(ctx, "PBZ", ""); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "PBZ", List{"/SITE/EDITED"}); err != nil {
		t.Fatal(err)
	}
	res, err := resolver.Resolve(ctx, "PBZ", "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(List{"/SITE/EDITED"}, res.Objects); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
}

func TestReadListBOMOnlyOnFirstLine(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/in/SITE.txt", []byte("\ufeff/SITE/A\r\n\ufeff/SITE/B\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := ReadList(fsys, `\in\SITE.txt`)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if diff := cmp.Diff(List{"/SITE/A", "\ufeff/SITE/B"}, list); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	list, err = ReadList(fsys, "/in/missing.txt")
	if err != nil || list != nil {
		t.Fatalf("ReadList on missing file = %v, %v", list, err)
	}
	if list, err = ReadList(fsys, "/in"); err != nil || list != nil {
		t.Fatalf("ReadList on directory = %v, %v", list, err)
	}
}

func TestResolveExhausted(t *testing.T) {
	ctx := context.Background()
	for _, code := range []string{"EMPTY", "UNKNOWN"} {
		_, err := newTestResolver(t, NewMemoryStore(), afero.NewMemMapFs()).Resolve(ctx, code, "")
		if !errors.Is(err, ErrNoObjectsAvailable) {
			t.Fatalf("Resolve(%s) err = %v, want ErrNoObjectsAvailable", code, err)
		}
	}
}

func TestResolveEmptyPersistedListIsExhausted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Set(ctx, "PBZ", nil); err != nil {
		t.Fatal(err)
	}
	_, err := newTestResolver(t, store, afero.NewMemMapFs()).Resolve(ctx, "PBZ", "")
	if !errors.Is(err, ErrNoObjectsAvailable) {
		t.Fatalf("err = %v, want ErrNoObjectsAvailable", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "objects.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok, err := store.Get(ctx, "PBZ"); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v err %v", ok, err)
	}
	want := List{"/SITE/B", "/SITE/A", "/SITE/B"}
	if err := store.Set(ctx, "pbz", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "PBZ", List{"/SITE/B", "/SITE/A", "/SITE/B"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(ctx, "PBZ")
	if err != nil || !ok {
		t.Fatalf("Get after reopen ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	if err := reopened.Set(ctx, "PBZ", List{}); err != nil {
		t.Fatal(err)
	}
	got, ok, err = reopened.Get(ctx, "PBZ")
	if err != nil || !ok || len(got) != 0 {
		t.Fatalf("empty list should persist as existing: %v %v %v", got, ok, err)
	}
}

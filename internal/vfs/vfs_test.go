package vfs

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispwin/ispwin/internal/storage"
)

func newTestFS(t *testing.T) (*FS, storage.Store) {
	t.Helper()
	store := storage.NewFileStoreFs(afero.NewMemMapFs())
	return New(store), store
}

func TestSeed(t *testing.T) {
	fs, _ := newTestFS(t)

	entries, err := fs.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "Documents", Type: TypeFolder}, entries[0])
	assert.Equal(t, "Readme.txt", entries[1].Name)

	notes, err := fs.ReadFile("/Documents/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to ispwin OS\n\nThis is a sample file.", notes)
}

func TestWriteRead_SurvivesReload(t *testing.T) {
	fs, store := newTestFS(t)

	require.NoError(t, fs.WriteFile("/notes/today.txt", "buy milk"))

	// A second instance on the same store behaves like a reloaded page.
	reloaded := New(store)
	got, err := reloaded.ReadFile("/notes/today.txt")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got)

	require.NoError(t, reloaded.WriteFile("/notes/today.txt", "buy bread"))
	require.NoError(t, fs.Reload())
	got, err = fs.ReadFile("notes/today.txt/")
	require.NoError(t, err)
	assert.Equal(t, "buy bread", got)
}

func TestWriteFile_CreatesIntermediateFolders(t *testing.T) {
	fs, _ := newTestFS(t)

	require.NoError(t, fs.WriteFile("/a/b/c.txt", "x"))

	entries, err := fs.List("/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, TypeFolder, entries[0].Type)

	entries, err = fs.List("/a/b")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "c.txt", Type: TypeFile, Content: "x"}}, entries)
}

func TestWriteFile_ReplacesFolder(t *testing.T) {
	fs, _ := newTestFS(t)

	require.NoError(t, fs.WriteFile("/Documents", "flat"))

	st, err := fs.Stat("/Documents")
	require.NoError(t, err)
	assert.Equal(t, TypeFile, st.Type)
	_, err = fs.List("/Documents")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty path", "", ErrInvalidPath},
		{"root", "/", ErrInvalidPath},
		{"only slashes", "///", ErrInvalidPath},
		{"file as ancestor", "/Readme.txt/inner.txt", ErrNotFolder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := newTestFS(t)
			err := fs.WriteFile(tt.path, "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("WriteFile(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	fs, _ := newTestFS(t)

	_, err := fs.ReadFile("/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.ReadFile("/Documents")
	assert.ErrorIs(t, err, ErrNotFound, "folders are not readable as files")

	_, err = fs.List("/Readme.txt")
	assert.ErrorIs(t, err, ErrNotFound, "files are not listable")

	_, err = fs.List("/Readme.txt/deeper")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Stat("/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMkdir(t *testing.T) {
	fs, store := newTestFS(t)

	require.NoError(t, fs.Mkdir("/x/y"))
	require.NoError(t, fs.Mkdir("/x/y"), "mkdir is idempotent")

	entries, err := New(store).List("/x/y")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, fs.Mkdir("/Readme.txt/sub"), ErrNotFolder)
}

func TestCorruptBlobFallsBackToSeed(t *testing.T) {
	store := storage.NewFileStoreFs(afero.NewMemMapFs())
	require.NoError(t, store.Set(StoreKey, "{not json"))

	fs := New(store)
	_, err := fs.ReadFile("/Readme.txt")
	assert.NoError(t, err)
}

func TestPathHelpers(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		base   string
		joined string
	}{
		{"/", "/", "/", "/"},
		{"", "/", "/", "/"},
		{"/a", "/", "a", "/a"},
		{"a/b/", "/a", "b", "/a/b"},
		{"//a//b//c", "/a/b", "c", "/a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.parent, Parent(tt.path))
			assert.Equal(t, tt.base, Base(tt.path))
			assert.Equal(t, tt.joined, Join(tt.path))
		})
	}
}

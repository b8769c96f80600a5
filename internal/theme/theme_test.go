package theme

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispwin/ispwin/internal/storage"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"dark", Dark},
		{"light", Light},
		{"", Light},
		{"DARK", Light},
		{"solarized", Light},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManager_PersistsFlag(t *testing.T) {
	store := storage.NewFileStoreFs(afero.NewMemMapFs())

	m := NewManager(store, "", "")
	assert.Equal(t, Light, m.Mode(), "no stored flag means light")

	require.NoError(t, m.Set(Dark))
	v, ok, err := store.Get(StoreKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", v)

	assert.Equal(t, Dark, NewManager(store, "", "").Mode(), "flag survives a restart")

	mode, err := m.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Light, mode)
	v, _, _ = store.Get(StoreKey)
	assert.Equal(t, "light", v)
}

func TestResolve_UnknownTintFallsBack(t *testing.T) {
	assert.Equal(t, fallback[Dark], Resolve("definitely-not-a-tint", Dark))
	assert.Equal(t, fallback[Light], Resolve("", Light))
}

func TestManager_PaletteFollowsMode(t *testing.T) {
	store := storage.NewFileStoreFs(afero.NewMemMapFs())
	m := NewManager(store, "no-such-dark", "no-such-light")

	assert.Equal(t, fallback[Light], m.Palette())
	require.NoError(t, m.Set(Dark))
	assert.Equal(t, fallback[Dark], m.Palette())
}

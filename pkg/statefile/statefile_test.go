package statefile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/statefile"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	require.NoError(t, statefile.Write(path, doc{Name: "a", Count: 3}))

	var got doc
	found, err := statefile.Read(path, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{Name: "a", Count: 3}, got)

	require.NoError(t, statefile.Write(path, doc{Name: "b", Count: 4}))
	found, err = statefile.Read(path, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b", got.Name)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadMissing(t *testing.T) {
	t.Parallel()

	var got doc
	found, err := statefile.Read(filepath.Join(t.TempDir(), "nope.json"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var got doc
	found, err := statefile.Read(path, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got doc
	_, err := statefile.Read(path, &got)
	assert.ErrorIs(t, err, statefile.ErrCorrupt)
}

func TestWriteUnencodable(t *testing.T) {
	t.Parallel()

	err := statefile.Write(filepath.Join(t.TempDir(), "x.json"), map[string]any{"f": func() {}})
	assert.ErrorIs(t, err, statefile.ErrWrite)
}

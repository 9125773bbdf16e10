package crdt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSaveLoadReplay checks replay determinism: a session reconstructed
// from its saved operation log matches the original, tombstones included.
func TestSaveLoadReplay(t *testing.T) {
	s := NewSession(1)
	for i, ch := range []string{"s", "k", "e", "i", "n"} {
		s.InsertAt(i, ch)
	}
	_, ok := s.DeleteAt(2)
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Save(path, s))

	ops, err := Load(path)
	require.NoError(t, err)

	restored := Replay(1, ops)
	assert.Equal(t, s.Text(), restored.Text())
	assert.Equal(t, s.Entries(), restored.Entries())
	assert.Equal(t, s.Version(), restored.Version())
}

func TestLoadRejectsMalformedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, os.WriteFile(path, []byte(`[{"kind":"upsert"}]`), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMalformedOperation)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

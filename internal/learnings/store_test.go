package learnings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathIsPure(t *testing.T) {
	s := NewStore("")
	assert.Equal(t, "/tmp/ralphtool/add-user-auth-learnings.md", s.Path("add-user-auth"))
	assert.Equal(t, s.Path("add-user-auth"), s.Path("add-user-auth"))

	custom := NewStore("/var/tmp/elsewhere")
	assert.Equal(t, "/var/tmp/elsewhere/add-user-auth-learnings.md", custom.Path("add-user-auth"))
}

func TestEnsureIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure("my-change"))

	// Simulate an agent appending a note, then ensure again.
	f, err := os.OpenFile(s.Path("my-change"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("- the linter wants tabs\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	before, err := os.ReadFile(s.Path("my-change"))
	require.NoError(t, err)
	require.NoError(t, s.Ensure("my-change"))
	after, err := os.ReadFile(s.Path("my-change"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReadTemplateOnly(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure("my-change"))

	content, ok, err := s.Read("my-change")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, content)
}

func TestReadTemplateWithWhitespaceDrift(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure("my-change"))

	// Trailing whitespace and an extra blank line are not notes.
	f, err := os.OpenFile(s.Path("my-change"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n   \n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, ok, err := s.Read("my-change")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadWithNotes(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure("my-change"))

	f, err := os.OpenFile(s.Path("my-change"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("- migrations must run before tests\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	content, ok, err := s.Read("my-change")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, content, "migrations must run before tests")
}

func TestReadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nothing-here"))
	content, ok, err := s.Read("ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, content)
}

package downloadpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisambiguateNoCollision(t *testing.T) {
	dir := t.TempDir()
	got, err := Disambiguate(dir, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), got)
}

func TestDisambiguatePairwiseDistinct(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		got, err := Disambiguate(dir, "dup.txt")
		require.NoError(t, err)
		require.False(t, seen[got], "destination reused: %s", got)
		seen[got] = true
		require.NoError(t, os.WriteFile(got, []byte("x"), 0o644))
	}
}

func TestDisambiguateNeverOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))

	got, err := Disambiguate(dir, "a.bin")
	require.NoError(t, err)
	assert.NotEqual(t, existing, got)
}

func TestDisambiguateBatchWithinBatchCollision(t *testing.T) {
	dir := t.TempDir()
	claimed := map[string]struct{}{}

	first, err := DisambiguateBatch(dir, "report.pdf", claimed)
	require.NoError(t, err)
	claimed[first] = struct{}{}

	// Neither file has been written to disk yet (consent, and so file
	// creation, happens after the whole Introduction is resolved), so a
	// plain Disambiguate would resolve both to the same not-yet-existing
	// path; DisambiguateBatch must consult claimed instead.
	second, err := DisambiguateBatch(dir, "report.pdf", claimed)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), first)
	assert.Equal(t, filepath.Join(dir, "1_report.pdf"), second)
}

func TestDisambiguateBatchThreeWayCollision(t *testing.T) {
	dir := t.TempDir()
	claimed := map[string]struct{}{}
	seen := map[string]bool{}

	for i := 0; i < 3; i++ {
		got, err := DisambiguateBatch(dir, "dup.txt", claimed)
		require.NoError(t, err)
		require.False(t, seen[got], "destination reused: %s", got)
		seen[got] = true
		claimed[got] = struct{}{}
	}
}

func TestStoreRootOverride(t *testing.T) {
	s := NewStore()
	dir := t.TempDir()
	s.Set(dir)
	assert.Equal(t, dir, s.Root())
}

func TestStoreRootFallsBackWhenCleared(t *testing.T) {
	s := NewStore()
	dir := t.TempDir()
	s.Set(dir)
	s.Set("")
	assert.NotEqual(t, dir, s.Root())
}

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrFetch_stableForSamePath(t *testing.T) {
	dir := t.TempDir()
	projectRoot := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))

	m, err := Open(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)

	id1, err := m.GenerateOrFetch(projectRoot)
	require.NoError(t, err)
	id2, err := m.GenerateOrFetch(projectRoot)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestGenerateOrFetch_derivesCollectionAndSpaceNames(t *testing.T) {
	dir := t.TempDir()
	projectRoot := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))

	m, err := Open(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)

	id, err := m.GenerateOrFetch(projectRoot)
	require.NoError(t, err)

	rec, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, "project-"+id, rec.CollectionName)
	assert.Equal(t, "project_"+id, rec.SpaceName)
}

func TestGenerateOrFetch_persistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	projectRoot := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))
	mappingPath := filepath.Join(dir, "mapping.json")

	m1, err := Open(mappingPath)
	require.NoError(t, err)
	id, err := m1.GenerateOrFetch(projectRoot)
	require.NoError(t, err)

	m2, err := Open(mappingPath)
	require.NoError(t, err)
	rec, ok := m2.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, deriveID(rec.Path))
}

func TestOpen_missingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	_, ok := m.Get("anything")
	assert.False(t, ok)
}

func TestDelete_removesMapping(t *testing.T) {
	dir := t.TempDir()
	projectRoot := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))

	m, err := Open(filepath.Join(dir, "mapping.json"))
	require.NoError(t, err)
	id, err := m.GenerateOrFetch(projectRoot)
	require.NoError(t, err)

	require.NoError(t, m.Delete(id))
	_, ok := m.Get(id)
	assert.False(t, ok)

	newID, err := m.GenerateOrFetch(projectRoot)
	require.NoError(t, err)
	assert.Equal(t, id, newID, "id derivation must remain stable for the same canonical path even after deletion")
}

func TestCanonicalize_resolvesRelativeToAbsolute(t *testing.T) {
	dir := t.TempDir()
	abs, err := Canonicalize(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
}

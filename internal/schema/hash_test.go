package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHash_StableUnderKeyReordering(t *testing.T) {
	a := []fieldJSON{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "name", Type: "STRING", Mode: "NULLABLE"},
	}
	b := []fieldJSON{
		{Name: "name", Type: "STRING", Mode: "NULLABLE"},
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
	}
	hashA, _, err := versionHash(a)
	require.NoError(t, err)
	hashB, _, err := versionHash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB, "field order must not affect the version hash")
}

func TestVersionHash_DiffersOnContentChange(t *testing.T) {
	a := []fieldJSON{{Name: "id", Type: "INTEGER", Mode: "REQUIRED"}}
	b := []fieldJSON{{Name: "id", Type: "STRING", Mode: "REQUIRED"}}
	hashA, _, err := versionHash(a)
	require.NoError(t, err)
	hashB, _, err := versionHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}

func TestVersionHash_Is16HexChars(t *testing.T) {
	hash, _, err := versionHash([]fieldJSON{{Name: "id", Type: "INTEGER", Mode: "REQUIRED"}})
	require.NoError(t, err)
	assert.Len(t, hash, 16)
	for _, c := range hash {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
	}
}

package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ReadAll opens path and returns its schema and the contents of every
// variable.
func ReadAll(t *testing.T, b grid.Backend, path string) (*grid.Schema, map[string]grid.Array) {
	t.Helper()

	r, err := b.Open(path)
	require.NoError(t, err, "opening %s", path)
	defer r.Close()

	schema := r.Schema()
	data := make(map[string]grid.Array, len(schema.Vars))
	for _, v := range schema.Vars {
		a, err := r.Read(v.Name)
		require.NoError(t, err, "reading %s from %s", v.Name, path)
		data[v.Name] = a
	}
	return schema, data
}

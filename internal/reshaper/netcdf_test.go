package reshaper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/netcdf"
	"github.com/specialistvlad/gridreshaper/internal/testutil"
)

func smallNetCDFSet(t *testing.T) (testutil.SliceSet, *netcdf.Backend) {
	t.Helper()
	set := testutil.DefaultSliceSet(filepath.Join(t.TempDir(), "slices"))
	set.NLat, set.NLon, set.NTime = 4, 6, 3
	set.Slices = set.Slices[:3]
	require.NoError(t, os.MkdirAll(set.Dir, 0o755))

	backend := netcdf.New(ctxlog.Discard())
	require.NoError(t, set.Write(backend))
	return set, backend
}

func TestConvert_NetCDFFiles(t *testing.T) {
	// --- Arrange ---
	set, backend := smallNetCDFSet(t)
	outDir := t.TempDir()
	prefix := filepath.Join(outDir, "series.")
	spec := scenarioSpec(t, backend, set, prefix)

	// --- Act ---
	res := runPool(t, spec, backend, 3, Options{})

	// --- Assert ---
	require.NoError(t, res.err)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, len(set.TSVars))

	for _, tsvar := range set.TSVars {
		schema, data := testutil.ReadAll(t, backend, prefix+tsvar+".nc")
		assert.Equal(t, set.Records(), schema.NumRecs)
		assert.True(t, set.Attrs.Equal(schema.Attrs), "global attributes of %s", tsvar)

		for _, name := range []string{tsvar, "time", "tvm1"} {
			want, err := set.Series(name)
			require.NoError(t, err)
			assert.Equal(t, want.Data, data[name].Data, "%s in %s", name, tsvar)
		}
		want, err := set.Values(0, "tim0")
		require.NoError(t, err)
		assert.Equal(t, want.Data, data["tim0"].Data)
	}
}

func TestConvert_NetCDFAppend(t *testing.T) {
	set, backend := smallNetCDFSet(t)
	prefix := filepath.Join(t.TempDir(), "series.")
	spec := scenarioSpec(t, backend, set, prefix)
	require.NoError(t, runPool(t, spec, backend, 2, Options{}).err)

	res := runPool(t, spec, backend, 2, Options{WriteMode: grid.ModeAppend})

	require.NoError(t, res.err)
	schema, data := testutil.ReadAll(t, backend, prefix+"tsvar0.nc")
	assert.Equal(t, 2*set.Records(), schema.NumRecs)
	series, err := set.Series("time")
	require.NoError(t, err)
	twice, err := grid.Concat(series, series)
	require.NoError(t, err)
	assert.Equal(t, twice.Data, data["time"].Data)
}

func TestConvert_NetCDFCorruptInput(t *testing.T) {
	set, backend := smallNetCDFSet(t)
	require.NoError(t, os.WriteFile(set.Paths()[1], []byte("not a grid file at all"), 0o644))
	outDir := t.TempDir()
	spec := scenarioSpec(t, backend, set, filepath.Join(outDir, "series."))

	res := runPool(t, spec, backend, 2, Options{})

	var inErr *InputIOError
	require.True(t, errors.As(res.err, &inErr), "got %v", res.err)
	assert.Equal(t, set.Paths()[1], inErr.Path)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no outputs are created")
}

func TestConvert_NetCDFUnwritableOutput(t *testing.T) {
	set, backend := smallNetCDFSet(t)
	outDir := t.TempDir()
	prefix := filepath.Join(outDir, "series.")
	// A directory in place of the output file cannot be opened for writing.
	require.NoError(t, os.Mkdir(prefix+"tsvar2.nc", 0o755))
	spec := scenarioSpec(t, backend, set, prefix)

	res := runPool(t, spec, backend, 2, Options{})

	var outErr *OutputIOError
	require.True(t, errors.As(res.err, &outErr), "got %v", res.err)
	assert.Equal(t, "tsvar2", outErr.Variable)
	for _, tsvar := range []string{"tsvar0", "tsvar1", "tsvar3"} {
		schema, _ := testutil.ReadAll(t, backend, prefix+tsvar+".nc")
		assert.Equal(t, set.Records(), schema.NumRecs, tsvar)
	}
}

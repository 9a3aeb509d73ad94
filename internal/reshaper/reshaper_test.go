package reshaper

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridreshaper/internal/classify"
	"github.com/specialistvlad/gridreshaper/internal/collective"
	"github.com/specialistvlad/gridreshaper/internal/config"
	"github.com/specialistvlad/gridreshaper/internal/ctxlog"
	"github.com/specialistvlad/gridreshaper/internal/diagnostics"
	"github.com/specialistvlad/gridreshaper/internal/executor"
	"github.com/specialistvlad/gridreshaper/internal/grid"
	"github.com/specialistvlad/gridreshaper/internal/testutil"
)

func outputPaths(prefix string, set testutil.SliceSet) []string {
	var out []string
	for _, v := range set.TSVars {
		out = append(out, prefix+v+".nc")
	}
	return out
}

func TestConvert_SeriesFiles(t *testing.T) {
	// --- Arrange ---
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "output.")

	// --- Act ---
	res := runPool(t, spec, store, 3, Options{})

	// --- Assert ---
	require.NoError(t, res.err)
	for _, err := range res.errs {
		assert.NoError(t, err)
	}
	assert.ElementsMatch(t, append(set.Paths(), outputPaths("output.", set)...), store.Paths(),
		"no files besides inputs and one output per series variable")

	for _, tsvar := range set.TSVars {
		path := "output." + tsvar + ".nc"
		t.Run(path, func(t *testing.T) {
			schema, data := testutil.ReadAll(t, store, path)

			assert.True(t, set.Attrs.Equal(schema.Attrs), "global attributes")
			assert.Equal(t, set.Records(), schema.NumRecs)
			timeDim, ok := schema.Dim("time")
			require.True(t, ok)
			assert.True(t, timeDim.Unlimited)
			assert.Equal(t, 50, timeDim.Len)
			lat, _ := schema.Dim("lat")
			lon, _ := schema.Dim("lon")
			assert.Equal(t, set.NLat, lat.Len)
			assert.Equal(t, set.NLon, lon.Len)

			want := []string{tsvar}
			want = append(want, set.Coordinates()...)
			want = append(want, set.Scalars...)
			want = append(want, set.TimVars...)
			want = append(want, set.TVMVars...)
			assert.ElementsMatch(t, want, schema.VarNames())

			for _, v := range schema.Vars {
				switch {
				case contains(set.Scalars, v.Name):
					assert.Empty(t, v.Dims, v.Name)
				case contains(set.Coordinates(), v.Name):
					assert.Equal(t, []string{v.Name}, v.Dims)
				case contains(set.TimVars, v.Name):
					assert.Equal(t, []string{"lat", "lon"}, v.Dims)
				default:
					assert.Equal(t, []string{"time", "lat", "lon"}, v.Dims, v.Name)
				}
			}

			for _, name := range append([]string{tsvar, "time"}, set.TVMVars...) {
				series, err := set.Series(name)
				require.NoError(t, err)
				assert.Equal(t, series, data[name], "records of %s in input order", name)
			}
			for _, name := range append(append([]string{"lat", "lon"}, set.Scalars...), set.TimVars...) {
				first, err := set.Values(0, name)
				require.NoError(t, err)
				assert.Equal(t, first, data[name], "%s copied from the first input", name)
			}
		})
	}
}

func TestConvert_SequentialMatchesParallel(t *testing.T) {
	set := testutil.DefaultSliceSet("")

	serialStore := seedStore(t, set)
	serial := runPool(t, scenarioSpec(t, serialStore, set, "out."), serialStore, 1, Options{})
	require.NoError(t, serial.err)

	parallelStore := seedStore(t, set)
	parallel := runPool(t, scenarioSpec(t, parallelStore, set, "out."), parallelStore, 3, Options{})
	require.NoError(t, parallel.err)

	require.Equal(t, serialStore.Paths(), parallelStore.Paths())
	for _, path := range outputPaths("out.", set) {
		s1, d1 := testutil.ReadAll(t, serialStore, path)
		s2, d2 := testutil.ReadAll(t, parallelStore, path)
		assert.Equal(t, s1, s2, path)
		assert.Equal(t, d1, d2, path)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	set.NLat, set.NLon = 3, 4

	var runs [2]map[string]map[string]grid.Array
	for i := range runs {
		store := seedStore(t, set)
		res := runPool(t, scenarioSpec(t, store, set, "out."), store, 2, Options{})
		require.NoError(t, res.err)
		runs[i] = map[string]map[string]grid.Array{}
		for _, path := range outputPaths("out.", set) {
			_, data := testutil.ReadAll(t, store, path)
			runs[i][path] = data
		}
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestConvert_MoreWorkersThanOutputs(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	set.TSVars = set.TSVars[:2]
	store := seedStore(t, set)

	res := runPool(t, scenarioSpec(t, store, set, "out."), store, 5, Options{})

	require.NoError(t, res.err)
	for rank, engine := range res.engines {
		report := engine.Report()
		require.NotNil(t, report, "rank %d", rank)
		assert.Len(t, report.Files, 2, "every rank sees the whole report")
		assert.Equal(t, 5, report.Workers)
	}
}

func TestConvert_InputUnreadable(t *testing.T) {
	// --- Arrange ---
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	store.FailOpen(set.Paths()[2], errors.New("permission denied"))

	// --- Act ---
	res := runPool(t, spec, store, 3, Options{})

	// --- Assert ---
	for rank, err := range res.errs {
		var inErr *InputIOError
		require.True(t, errors.As(err, &inErr), "rank %d: %v", rank, err)
		assert.Equal(t, set.Paths()[2], inErr.Path)
	}
	assert.Equal(t, set.Paths(), store.Paths(), "no outputs are created")
}

func TestConvert_InputReadFailsDuringAppend(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	store.FailRead(set.Paths()[3], errors.New("i/o error"))

	res := runPool(t, spec, store, 2, Options{})

	var inErr *InputIOError
	require.True(t, errors.As(res.err, &inErr), "got %v", res.err)
	assert.Equal(t, set.Paths()[3], inErr.Path)
	assert.Equal(t, res.errs[0], res.errs[1], "all workers report the same job error")
	assert.NotErrorIs(t, res.err, ErrOutputsFailed)
}

func TestConvert_OutputUnwritable(t *testing.T) {
	// --- Arrange ---
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	denied := errors.New("permission denied")
	store.FailCreate("out.tsvar1.nc", denied)

	// --- Act ---
	res := runPool(t, spec, store, 3, Options{})

	// --- Assert ---
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, ErrOutputsFailed)
	assert.ErrorIs(t, res.err, denied)
	var outErr *OutputIOError
	require.True(t, errors.As(res.err, &outErr))
	assert.Equal(t, "tsvar1", outErr.Variable)
	assert.Equal(t, "create", outErr.Op)

	report := res.engines[0].Report()
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "out.tsvar1.nc", failed[0].Path)

	for _, path := range outputPaths("out.", set) {
		if path == "out.tsvar1.nc" {
			assert.NotContains(t, store.Paths(), path)
			continue
		}
		schema, _ := testutil.ReadAll(t, store, path)
		assert.Equal(t, set.Records(), schema.NumRecs, path)
	}
}

func TestConvert_PartialWrite(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	store.FailAppend("out.tsvar2.nc", errors.New("disk full"))

	res := runPool(t, spec, store, 1, Options{})

	assert.ErrorIs(t, res.err, ErrOutputsFailed)
	var partial *PartialWriteError
	require.True(t, errors.As(res.err, &partial))
	assert.Equal(t, "tsvar2", partial.Variable)
	assert.Zero(t, partial.Records, "fails while appending the first input")
	assert.Contains(t, store.Paths(), "out.tsvar2.nc", "a partial output is left in place")

	report := res.engines[0].Report()
	require.Len(t, report.Files, len(set.TSVars))
	for _, f := range report.Files {
		if f.Variable == "tsvar2" {
			assert.Equal(t, diagnostics.StatusFailed, f.Status)
		} else {
			assert.Equal(t, diagnostics.StatusComplete, f.Status, f.Variable)
		}
	}
}

func TestConvert_SetupErrorsAreJobWide(t *testing.T) {
	t.Run("unknown metadata", func(t *testing.T) {
		set := testutil.DefaultSliceSet("")
		store := seedStore(t, set)
		spec := newSpec(t, store, config.Spec{InputFiles: set.Paths(), Metadata: []string{"ghost"}})

		res := runPool(t, spec, store, 3, Options{})

		for _, err := range res.errs {
			var classErr *classify.ClassificationError
			assert.True(t, errors.As(err, &classErr), "got %v", err)
		}
		assert.Equal(t, set.Paths(), store.Paths())
	})

	t.Run("schema mismatch", func(t *testing.T) {
		set := testutil.DefaultSliceSet("")
		store := seedStore(t, set)
		odd := set
		odd.TSVars = append(append([]string{}, set.TSVars...), "extra")
		oddSchema := odd.Schema()
		data := map[string]grid.Array{}
		for _, v := range oddSchema.Vars {
			a, err := odd.Values(4, v.Name)
			require.NoError(t, err)
			data[v.Name] = a
		}
		require.NoError(t, store.Put(set.Paths()[4], oddSchema, data))
		spec := scenarioSpec(t, store, set, "out.")

		res := runPool(t, spec, store, 2, Options{})

		var mismatch *classify.SchemaMismatchError
		require.True(t, errors.As(res.err, &mismatch), "got %v", res.err)
		assert.Equal(t, set.Paths()[4], mismatch.Path)
	})
}

func TestConvert_AutoMetadata(t *testing.T) {
	set := testutil.DefaultSliceSet("")

	t.Run("enabled", func(t *testing.T) {
		store := seedStore(t, set)
		spec := newSpec(t, store, config.Spec{
			InputFiles:   set.Paths(),
			Prefix:       "out.",
			Suffix:       ".nc",
			Metadata:     append(append([]string{}, set.TVMVars...), "time"),
			AutoMetadata: true,
		})

		res := runPool(t, spec, store, 2, Options{})

		require.NoError(t, res.err)
		assert.ElementsMatch(t, append(set.Paths(), outputPaths("out.", set)...), store.Paths())
		schema, _ := testutil.ReadAll(t, store, "out.tsvar0.nc")
		v, ok := schema.Var("tim0")
		require.True(t, ok)
		assert.Equal(t, []string{"lat", "lon"}, v.Dims)
	})

	t.Run("disabled", func(t *testing.T) {
		store := seedStore(t, set)
		spec := newSpec(t, store, config.Spec{
			InputFiles: set.Paths(),
			Prefix:     "out.",
			Suffix:     ".nc",
			Metadata:   set.TVMVars,
		})

		res := runPool(t, spec, store, 2, Options{})

		require.NoError(t, res.err)
		// Variables lacking the time dimension become their own outputs,
		// copied once from the first input.
		schema, data := testutil.ReadAll(t, store, "out.tim1.nc")
		assert.Equal(t, set.Records(), schema.NumRecs, "the record coordinate is still appended")
		want, err := set.Values(0, "tim1")
		require.NoError(t, err)
		assert.Equal(t, want, data["tim1"])
		_, ok := schema.Var("tim0")
		assert.False(t, ok, "other series variables are not replicated")
	})
}

func TestConvert_AppendMode(t *testing.T) {
	// --- Arrange ---
	set := testutil.DefaultSliceSet("")
	set.NLat, set.NLon = 4, 5
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	require.NoError(t, runPool(t, spec, store, 2, Options{}).err)

	// --- Act ---
	res := runPool(t, spec, store, 2, Options{WriteMode: grid.ModeAppend})

	// --- Assert ---
	require.NoError(t, res.err)
	schema, data := testutil.ReadAll(t, store, "out.tsvar3.nc")
	assert.Equal(t, 2*set.Records(), schema.NumRecs)
	series, err := set.Series("tsvar3")
	require.NoError(t, err)
	twice, err := grid.Concat(series, series)
	require.NoError(t, err)
	assert.Equal(t, twice, data["tsvar3"])
	first, err := set.Values(0, "tim0")
	require.NoError(t, err)
	assert.Equal(t, first, data["tim0"], "static variables are not rewritten")
	assert.Equal(t, len(set.TSVars)*set.Records(), res.engines[0].Report().Records)
}

func TestConvert_AppendConflict(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	set.NLat, set.NLon = 2, 2
	store := seedStore(t, set)
	require.NoError(t, runPool(t, scenarioSpec(t, store, set, "out."), store, 1, Options{}).err)

	// tvm1 becomes a series variable, so the existing outputs carry one
	// variable the new layout lacks.
	spec := newSpec(t, store, config.Spec{
		InputFiles: set.Paths(),
		Prefix:     "out.",
		Suffix:     ".nc",
		Metadata:   []string{"tvm0", "tim0", "tim1"},
		WriteMode:  grid.ModeAppend,
	})
	res := runPool(t, spec, store, 1, Options{})

	assert.ErrorIs(t, res.err, ErrOutputsFailed)
	assert.ErrorIs(t, res.err, ErrSchemaConflict)
	report := res.engines[0].Report()
	assert.Len(t, report.Failed(), len(set.TSVars))
	for _, f := range report.Files {
		if f.Variable == "tvm1" {
			assert.Equal(t, diagnostics.StatusComplete, f.Status, "a missing output is created fresh")
		}
	}
}

func TestNew_Validation(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")
	comms, err := collective.NewGroup(2)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		spec  *config.Spec
		comm  collective.Comm
		opts  Options
		field string
	}{
		{name: "nil spec", comm: collective.Serial(), field: "spec"},
		{name: "verbosity", spec: spec, opts: Options{Verbosity: 4}, field: "verbosity"},
		{name: "negative verbosity", spec: spec, opts: Options{Verbosity: -1}, field: "verbosity"},
		{name: "write mode", spec: spec, opts: Options{WriteMode: "truncate"}, field: "write_mode"},
		{name: "run mode", spec: spec, opts: Options{RunMode: "fork"}, field: "run_mode"},
		{name: "sequential with peers", spec: spec, comm: comms[0], opts: Options{RunMode: executor.Sequential}, field: "run_mode"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.Logger = ctxlog.Discard()
			_, err := New(tc.spec, tc.comm, tc.opts)

			var cfgErr *config.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}

	engine, err := New(spec, nil, Options{Backend: store, Logger: ctxlog.Discard()})
	require.NoError(t, err)
	assert.Nil(t, engine.Report())
	assert.ErrorIs(t, engine.PrintDiagnostics(&bytes.Buffer{}), ErrNotConverted)
}

func TestPrintDiagnostics(t *testing.T) {
	set := testutil.DefaultSliceSet("")
	store := seedStore(t, set)
	spec := scenarioSpec(t, store, set, "out.")

	res := runPool(t, spec, store, 2, Options{Verbosity: 2})
	require.NoError(t, res.err)

	var rank0, rank1 bytes.Buffer
	require.NoError(t, res.engines[0].PrintDiagnostics(&rank0))
	require.NoError(t, res.engines[1].PrintDiagnostics(&rank1))

	assert.Contains(t, rank0.String(), fmt.Sprintf("Converted %d of %d outputs with 2 workers", len(set.TSVars), len(set.TSVars)))
	assert.Contains(t, rank0.String(), "out.tsvar0.nc")
	assert.Contains(t, rank0.String(), diagnostics.PhaseWriteSeries)
	assert.Empty(t, rank1.String(), "only rank 0 prints")

	total, ok := res.engines[1].Report().Timer(diagnostics.PhaseTotal)
	assert.True(t, ok)
	assert.Positive(t, total)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "ERROR", LevelFor(0).String())
	assert.Equal(t, "WARN", LevelFor(1).String())
	assert.Equal(t, "INFO", LevelFor(2).String())
	assert.Equal(t, "DEBUG", LevelFor(3).String())
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

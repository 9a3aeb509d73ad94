package config

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions is the function table available in job files.
func functions() map[string]function.Function {
	return map[string]function.Function{
		"glob":   GlobFunc,
		"format": stdlib.FormatFunc,
		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
		"concat": stdlib.ConcatFunc,
		"join":   stdlib.JoinFunc,
		"range":  stdlib.RangeFunc,
	}
}

// GlobFunc expands a file pattern into a sorted list of paths. Relative
// patterns resolve against the working directory.
var GlobFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.List(cty.String)),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		matches, err := filepath.Glob(args[0].AsString())
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		if len(matches) == 0 {
			return cty.ListValEmpty(cty.String), nil
		}
		sort.Strings(matches)
		vals := make([]cty.Value, len(matches))
		for i, m := range matches {
			vals[i] = cty.StringVal(m)
		}
		return cty.ListVal(vals), nil
	},
})

// envValue turns KEY=VALUE pairs into a cty map.
func envValue(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	return cty.MapVal(vals)
}

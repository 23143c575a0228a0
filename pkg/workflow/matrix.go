package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Cell is one matrix combination produced by cross product of the
// configured axes
type Cell struct {
	// Values maps axis name to the value selected for this cell
	Values map[string]string

	// CacheKey is the rendered cache key prefix, empty when the
	// strategy declares none
	CacheKey string
}

// Suffix renders the instance name suffix, e.g. "(ubuntu, 3.11)".
// Axis order is alphabetical for determinism.
func (c Cell) Suffix() string {
	keys := sortedKeys(c.Values)
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, c.Values[k])
	}
	return "(" + strings.Join(vals, ", ") + ")"
}

// ExpandMatrix produces the cross product of the strategy's axes.
// A nil strategy or empty matrix yields a single empty cell so that
// plain jobs and matrix jobs share one planning path. Exactly one cell
// is produced per axis value combination.
func ExpandMatrix(strategy *model.Strategy) ([]Cell, error) {
	if strategy == nil || len(strategy.Matrix) == 0 {
		return []Cell{{}}, nil
	}

	axes := sortedKeys(strategy.Matrix)
	for _, axis := range axes {
		if len(strategy.Matrix[axis]) == 0 {
			return nil, goerr.Wrap(ErrEmptyMatrixAxis, "matrix axis has no values", goerr.V("axis", axis))
		}
	}

	cells := []Cell{{Values: map[string]string{}}}
	for _, axis := range axes {
		next := make([]Cell, 0, len(cells)*len(strategy.Matrix[axis]))
		for _, cell := range cells {
			for _, value := range strategy.Matrix[axis] {
				values := make(map[string]string, len(cell.Values)+1)
				for k, v := range cell.Values {
					values[k] = v
				}
				values[axis] = value
				next = append(next, Cell{Values: values})
			}
		}
		cells = next
	}

	if strategy.CacheKeyPrefix != "" {
		for i := range cells {
			key, err := renderCacheKey(strategy.CacheKeyPrefix, cells[i].Values)
			if err != nil {
				return nil, err
			}
			cells[i].CacheKey = key
		}
	}

	return cells, nil
}

// renderCacheKey substitutes {{ .axis }} placeholders with cell values
func renderCacheKey(tmpl string, values map[string]string) (string, error) {
	out := tmpl
	for axis, value := range values {
		out = strings.ReplaceAll(out, fmt.Sprintf("{{ .%s }}", axis), value)
		out = strings.ReplaceAll(out, fmt.Sprintf("{{.%s}}", axis), value)
	}
	if strings.Contains(out, "{{") {
		return "", goerr.New("cache key prefix references unknown axis", goerr.V("template", tmpl))
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

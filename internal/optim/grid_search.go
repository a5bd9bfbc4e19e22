package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Result is one evaluated grid point.
type Result struct {
	Params map[string]float64
	Value  float64
}

// Evaluator scores a grid point; lower is better.
type Evaluator func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d names for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %q", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Points enumerates the grid with the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	points := make([]map[string]float64, 0, g.Size())
	g.collect(0, map[string]float64{}, &points)
	return points
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.collect(depth+1, current, out)
	}
	delete(current, name)
}

// Search evaluates every grid point and returns all results in grid order
// along with the index of the minimum. NaN scores never win.
func (g *GridSearch) Search(ctx context.Context, eval Evaluator) ([]Result, int, error) {
	points := g.Points()
	results := make([]Result, 0, len(points))
	best := -1
	bestVal := math.Inf(1)

	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, -1, err
		}
		val, err := eval(ctx, p)
		if err != nil {
			return nil, -1, fmt.Errorf("grid point %s: %w", formatPoint(p), err)
		}
		results = append(results, Result{Params: p, Value: val})
		if val < bestVal {
			bestVal = val
			best = len(results) - 1
		}
	}
	return results, best, nil
}

func formatPoint(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", k, p[k])
	}
	return s
}

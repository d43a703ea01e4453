package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// GridSearch evaluates an objective at every point of a Cartesian grid of
// named values and keeps the lowest.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid: %d names for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid: no values for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// FromMap builds a grid with names in sorted order.
func FromMap(grid map[string][]float64) (*GridSearch, error) {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	ranges := make([][]float64, len(names))
	for i, name := range names {
		ranges[i] = grid[name]
	}
	return NewGridSearch(names, ranges)
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Objective scores one grid point. Errors skip the point.
type Objective func(ctx context.Context, point map[string]float64) (float64, error)

// Search returns the point with the lowest finite objective. It fails only
// when the context ends or no point could be scored.
func (g *GridSearch) Search(ctx context.Context, fn Objective) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	var lastErr error

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(point map[string]float64) error {
		val, err := fn(ctx, point)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			lastErr = err
			return nil
		}
		if val < best {
			best = val
			bestParams = make(map[string]float64, len(point))
			for k, v := range point {
				bestParams[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		if lastErr != nil {
			return nil, 0, fmt.Errorf("grid: no point could be scored: %w", lastErr)
		}
		return nil, 0, fmt.Errorf("grid: no finite objective")
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, visit); err != nil {
			return err
		}
	}
	delete(current, paramName)
	return nil
}

// Package topology orders string-labelled dependency graphs.
package topology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle indicates the digraph contains a cycle.
var ErrCycle = errors.New("cyclic dependency")

// Digraph maps each vertex to the set of vertices it depends on.
type Digraph map[string]map[string]struct{}

// Add records that vertex depends on each of upstream.
func (d Digraph) Add(vertex string, upstream ...string) {
	deps, ok := d[vertex]
	if !ok {
		deps = make(map[string]struct{})
		d[vertex] = deps
	}
	for _, u := range upstream {
		deps[u] = struct{}{}
	}
}

// CycleError lists the vertices that could not be ordered.
type CycleError struct {
	Remaining []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency among [%s]", strings.Join(e.Remaining, ", "))
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// Generations returns the vertices in dependency layers. Every vertex in a
// layer depends only on vertices in earlier layers. Each layer is sorted so
// the result is deterministic. Vertices that appear only as dependencies are
// included in the first layer they can occupy.
//
// A vertex that depends on itself is reported as a cycle.
func Generations(d Digraph) ([][]string, error) {
	inDegree := make(map[string]int, len(d))
	downstream := make(map[string][]string, len(d))
	for v, deps := range d {
		if _, ok := inDegree[v]; !ok {
			inDegree[v] = 0
		}
		for u := range deps {
			if _, ok := inDegree[u]; !ok {
				inDegree[u] = 0
			}
			inDegree[v]++
			downstream[u] = append(downstream[u], v)
		}
	}

	var layer []string
	for v, deg := range inDegree {
		if deg == 0 {
			layer = append(layer, v)
		}
	}

	var layers [][]string
	processed := 0
	for len(layer) > 0 {
		sort.Strings(layer)
		layers = append(layers, layer)
		processed += len(layer)

		var next []string
		for _, v := range layer {
			for _, w := range downstream[v] {
				inDegree[w]--
				if inDegree[w] == 0 {
					next = append(next, w)
				}
			}
		}
		layer = next
	}

	if processed != len(inDegree) {
		var remaining []string
		for v, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, v)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}
	return layers, nil
}

// Flatten returns a serial order consistent with the dependency layers.
func Flatten(d Digraph) ([]string, error) {
	layers, err := Generations(d)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, l := range layers {
		order = append(order, l...)
	}
	return order, nil
}

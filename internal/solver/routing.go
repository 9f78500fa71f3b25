package solver

import (
	"context"
	"encoding/json"
	"math"
)

type routingLocation struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type routingProblem struct {
	// Either euclidean coordinates...
	Locations []routingLocation `json:"locations,omitempty"`
	// ...or an explicit distance matrix with node names.
	Names          []string    `json:"names,omitempty"`
	DistanceMatrix [][]float64 `json:"distance_matrix,omitempty"`

	Start     string `json:"start,omitempty"`
	RoundTrip *bool  `json:"round_trip,omitempty"` // default true
}

// maxRoutingNodes caps the tour size; each 2-opt sweep is cubic in the
// node count with the apply-and-measure strategy.
const maxRoutingNodes = 400

type routingSolution struct {
	Status        string   `json:"status"`
	Route         []string `json:"route"`
	TotalDistance float64  `json:"total_distance"`
}

func parseRouting(payload json.RawMessage) (*routingProblem, error) {
	var p routingProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing routing problem: %v", err)
	}
	hasCoords := len(p.Locations) > 0
	hasMatrix := len(p.DistanceMatrix) > 0
	if hasCoords == hasMatrix {
		return nil, inputErrf("provide exactly one of 'locations' or 'distance_matrix'")
	}
	if hasMatrix {
		n := len(p.DistanceMatrix)
		if len(p.Names) != n {
			return nil, inputErrf("names must have %d entries to match the distance matrix, got %d", n, len(p.Names))
		}
		for i, row := range p.DistanceMatrix {
			if len(row) != n {
				return nil, inputErrf("distance matrix row %d must have %d entries, got %d", i, n, len(row))
			}
		}
	}
	if p.nodeCount() < 2 {
		return nil, inputErrf("at least two locations are required")
	}
	if p.nodeCount() > maxRoutingNodes {
		return nil, inputErrf("at most %d locations are supported, got %d", maxRoutingNodes, p.nodeCount())
	}
	if p.Start != "" {
		if p.startIndex() < 0 {
			return nil, inputErrf("start %q is not a known location", p.Start)
		}
	}
	return &p, nil
}

func (p *routingProblem) nodeCount() int {
	if len(p.Locations) > 0 {
		return len(p.Locations)
	}
	return len(p.DistanceMatrix)
}

func (p *routingProblem) nodeName(i int) string {
	if len(p.Locations) > 0 {
		return p.Locations[i].Name
	}
	return p.Names[i]
}

func (p *routingProblem) startIndex() int {
	if p.Start == "" {
		return 0
	}
	for i := 0; i < p.nodeCount(); i++ {
		if p.nodeName(i) == p.Start {
			return i
		}
	}
	return -1
}

func (p *routingProblem) distances() [][]float64 {
	if len(p.DistanceMatrix) > 0 {
		return p.DistanceMatrix
	}
	n := len(p.Locations)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = math.Hypot(p.Locations[i].X-p.Locations[j].X, p.Locations[i].Y-p.Locations[j].Y)
		}
	}
	return d
}

// SolveRouting builds a single-vehicle tour with nearest-neighbor
// construction refined by 2-opt. The result is a good tour, not a proven
// optimum, so its status is "feasible".
func SolveRouting(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseRouting(payload)
	if err != nil {
		return nil, err
	}

	d := p.distances()
	n := len(d)
	roundTrip := p.RoundTrip == nil || *p.RoundTrip

	// Nearest-neighbor construction.
	tour := make([]int, 0, n)
	visited := make([]bool, n)
	cur := p.startIndex()
	tour = append(tour, cur)
	visited[cur] = true
	for len(tour) < n {
		next, best := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !visited[j] && d[cur][j] < best {
				next, best = j, d[cur][j]
			}
		}
		tour = append(tour, next)
		visited[next] = true
		cur = next
	}

	length := func(t []int) float64 {
		total := 0.0
		for k := 1; k < len(t); k++ {
			total += d[t[k-1]][t[k]]
		}
		if roundTrip {
			total += d[t[len(t)-1]][t[0]]
		}
		return total
	}
	reverse := func(t []int, i, j int) {
		for a, b := i, j; a < b; a, b = a+1, b-1 {
			t[a], t[b] = t[b], t[a]
		}
	}

	// 2-opt improvement until a full sweep finds nothing better. Apply
	// and measure rather than edge deltas, which stays correct for
	// asymmetric distance matrices.
	best := length(tour)
	improved := true
	for improved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		improved = false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				reverse(tour, i, j)
				if l := length(tour); l < best-1e-9 {
					best = l
					improved = true
				} else {
					reverse(tour, i, j)
				}
			}
		}
	}

	route := make([]string, 0, n+1)
	for _, idx := range tour {
		route = append(route, p.nodeName(idx))
	}
	if roundTrip {
		route = append(route, p.nodeName(tour[0]))
	}

	return &routingSolution{Status: StatusFeasible, Route: route, TotalDistance: best}, nil
}

package force

import (
	"math"
	"math/rand/v2"
	"sort"
)

// body is the solver state of one node. x is pinned to time*XScale.
type body struct {
	x, y   float64
	vy     float64
	height float64
	parent int // index into Simulation.bodies, -1 if top-level
	link   bool
}

func jiggle(rng *rand.Rand) float64 {
	return (rng.Float64() - 0.5) * 1e-6
}

// columns groups a subset of bodies by x so pairwise forces only visit
// columns closer than their cutoff.
type columns struct {
	xs      []float64
	members [][]int
}

func newColumns(bs []body, subset []int) columns {
	byX := make(map[float64][]int)
	for _, i := range subset {
		byX[bs[i].x] = append(byX[bs[i].x], i)
	}
	var c columns
	for x := range byX {
		c.xs = append(c.xs, x)
	}
	sort.Float64s(c.xs)
	for _, x := range c.xs {
		c.members = append(c.members, byX[x])
	}
	return c
}

// pairs calls fn once for every unordered pair closer than cutoff along x.
// A non-positive cutoff visits every pair.
func (c columns) pairs(cutoff float64, fn func(i, j int)) {
	for a := range c.xs {
		col := c.members[a]
		for k, i := range col {
			for _, j := range col[k+1:] {
				fn(i, j)
			}
		}
		for b := a + 1; b < len(c.xs); b++ {
			if cutoff > 0 && c.xs[b]-c.xs[a] >= cutoff {
				break
			}
			for _, i := range col {
				for _, j := range c.members[b] {
					fn(i, j)
				}
			}
		}
	}
}

// edge is a link with resolved endpoints.
type edge struct {
	source, target int
	bias           float64
}

// linkForce pulls linked nodes toward a target distance. The correction is
// split by endpoint degree so hubs move less.
type linkForce struct {
	edges []edge
}

func newLinkForce(n int, pairs [][2]int) *linkForce {
	count := make([]int, n)
	for _, p := range pairs {
		count[p[0]]++
		count[p[1]]++
	}
	f := &linkForce{edges: make([]edge, len(pairs))}
	for i, p := range pairs {
		f.edges[i] = edge{
			source: p[0],
			target: p[1],
			bias:   float64(count[p[0]]) / float64(count[p[0]]+count[p[1]]),
		}
	}
	return f
}

func (f *linkForce) apply(bs []body, alpha, strength, distance float64, iterations int, rng *rand.Rand) {
	if strength == 0 {
		return
	}
	for range iterations {
		for _, e := range f.edges {
			s, t := &bs[e.source], &bs[e.target]
			dx := t.x - s.x
			dy := t.y + t.vy - s.y - s.vy
			if dx == 0 {
				dx = jiggle(rng)
			}
			if dy == 0 {
				dy = jiggle(rng)
			}
			l := math.Hypot(dx, dy)
			l = (l - distance) / l * alpha * strength
			dy *= l
			t.vy -= dy * e.bias
			s.vy += dy * (1 - e.bias)
		}
	}
}

// manyBody applies pairwise attraction or repulsion, each side weighted by
// the height of the other. Pairs at least maxDist apart are ignored.
type manyBody struct {
	cols columns
}

func (f *manyBody) apply(bs []body, alpha, strength, maxDist float64, rng *rand.Rand) {
	if strength == 0 {
		return
	}
	max2 := math.Inf(1)
	if maxDist > 0 {
		max2 = maxDist * maxDist
	}
	const min2 = 1.0
	f.cols.pairs(maxDist, func(i, j int) {
		a, o := &bs[i], &bs[j]
		dx := o.x - a.x
		dy := o.y - a.y
		l := dx*dx + dy*dy
		if l >= max2 {
			return
		}
		if dx == 0 {
			dx = jiggle(rng)
			l += dx * dx
		}
		if dy == 0 {
			dy = jiggle(rng)
			l += dy * dy
		}
		if l < min2 {
			l = math.Sqrt(min2 * l)
		}
		k := strength * alpha / l
		a.vy += dy * k * o.height
		o.vy -= dy * k * a.height
	})
}

// collide separates overlapping nodes, treating each as a circle of radius
// height/2 at its velocity-predicted position.
type collide struct {
	cols      columns
	maxHeight float64
}

func (f *collide) apply(bs []body, strength float64, rng *rand.Rand) {
	if strength == 0 || f.maxHeight <= 0 {
		return
	}
	f.cols.pairs(f.maxHeight, func(i, j int) {
		a, o := &bs[i], &bs[j]
		ri, rj := a.height/2, o.height/2
		r := ri + rj
		dx := a.x - o.x
		dy := a.y + a.vy - o.y - o.vy
		l := dx*dx + dy*dy
		if l >= r*r {
			return
		}
		if dx == 0 {
			dx = jiggle(rng)
			l += dx * dx
		}
		if dy == 0 {
			dy = jiggle(rng)
			l += dy * dy
		}
		l = math.Sqrt(l)
		l = (r - l) / l * strength
		dy *= l
		ri2, rj2 := ri*ri, rj*rj
		share := 0.5
		if ri2+rj2 > 0 {
			share = rj2 / (ri2 + rj2)
		}
		a.vy += dy * share
		o.vy -= dy * (1 - share)
	})
}

// pullY biases every node toward target.
func pullY(bs []body, alpha, strength, target float64) {
	if strength == 0 {
		return
	}
	for i := range bs {
		bs[i].vy += (target - bs[i].y) * strength * alpha
	}
}

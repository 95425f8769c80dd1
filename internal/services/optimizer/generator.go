package optimizer

import (
	"math"
	"math/rand"

	"MarketSweep/internal/domain/models"
)

// generator yields candidate parameter sets in a deterministic order for a
// given seed. Grid search enumerates the full cartesian product; random
// search samples uniformly; adaptive search starts uniform and then perturbs
// around the incumbent best with a shrinking radius.
type generator struct {
	req        Request
	rng        *rand.Rand
	exhaustive bool

	// grid state
	idx  []int
	done bool

	// adaptive state
	emitted int
	best    models.ParameterSet
}

func newGenerator(req Request, rng *rand.Rand) *generator {
	g := &generator{req: req, rng: rng}
	if req.Method == models.MethodGrid {
		g.exhaustive = true
		g.idx = make([]int, len(req.Space))
	}
	return g
}

func (g *generator) observeBest(ps models.ParameterSet) {
	g.best = ps
}

func (g *generator) next() (models.ParameterSet, bool) {
	switch g.req.Method {
	case models.MethodGrid:
		return g.nextGrid()
	case models.MethodAdaptive:
		return g.nextAdaptive(), true
	default:
		return g.sampleUniform(), true
	}
}

func (g *generator) nextGrid() (models.ParameterSet, bool) {
	if g.done {
		return nil, false
	}
	ps := g.base()
	for i, r := range g.req.Space {
		ps[r.Name] = gridValue(r, g.idx[i])
	}

	// advance odometer
	for i := len(g.idx) - 1; i >= 0; i-- {
		g.idx[i]++
		if g.idx[i] < gridPoints(g.req.Space[i]) {
			break
		}
		g.idx[i] = 0
		if i == 0 {
			g.done = true
		}
	}
	return ps, true
}

func (g *generator) nextAdaptive() models.ParameterSet {
	g.emitted++
	explore := g.req.MaxIterations / 3
	if explore < 10 {
		explore = 10
	}
	if g.best == nil || g.emitted <= explore {
		return g.sampleUniform()
	}

	// Perturbation radius shrinks linearly as the budget is consumed.
	frac := 1 - float64(g.emitted)/float64(g.req.MaxIterations)
	if frac < 0.05 {
		frac = 0.05
	}
	ps := g.base()
	for _, r := range g.req.Space {
		if r.Bool {
			v := g.best[r.Name]
			if g.rng.Float64() < 0.1*frac {
				v = 1 - v
			}
			ps[r.Name] = v
			continue
		}
		span := (r.Max - r.Min) * frac * 0.5
		v := g.best[r.Name] + g.rng.NormFloat64()*span
		ps[r.Name] = snap(r, v)
	}
	return ps
}

func (g *generator) sampleUniform() models.ParameterSet {
	ps := g.base()
	for _, r := range g.req.Space {
		if r.Bool {
			ps[r.Name] = float64(g.rng.Intn(2))
			continue
		}
		ps[r.Name] = snap(r, r.Min+g.rng.Float64()*(r.Max-r.Min))
	}
	return ps
}

func (g *generator) base() models.ParameterSet {
	if g.req.Base == nil {
		return models.ParameterSet{}
	}
	return g.req.Base.Clone()
}

// snap rounds to the range's step grid and clamps sampled values back inside
// the declared bounds. Only generated candidates are snapped; caller-supplied
// sets are validated, never adjusted.
func snap(r models.ParameterRange, v float64) float64 {
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	}
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	return v
}

func gridValue(r models.ParameterRange, i int) float64 {
	if r.Bool {
		return float64(i)
	}
	if r.Step <= 0 {
		return r.Min
	}
	v := r.Min + float64(i)*r.Step
	if v > r.Max {
		v = r.Max
	}
	return v
}

func gridPoints(r models.ParameterRange) int {
	if r.Bool {
		return 2
	}
	if r.Step <= 0 || r.Max <= r.Min {
		return 1
	}
	return int(math.Floor((r.Max-r.Min)/r.Step)) + 1
}

package domain

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"
)

// parallelThreshold is the number of timestamps above which node factors are
// evaluated in parallel.
const parallelThreshold = 4096

// EquilibriumEntry holds per-constituent results of an equilibrium computation.
type EquilibriumEntry struct {
	Name          string
	SpeedDegPerHr float64
	VAUDeg        float64   // Equilibrium argument at the reference epoch, [0, 360).
	NodeFactors   []float64 // F at each timestamp.
}

// EquilibriumTable maps constituent names to their speeds, reference
// equilibrium arguments and node factor series.
type EquilibriumTable struct {
	Reference time.Time
	Times     []time.Time
	Entries   []EquilibriumEntry
	index     map[string]int
}

// Entry returns the entry for name.
func (t *EquilibriumTable) Entry(name string) (EquilibriumEntry, bool) {
	i, ok := t.index[name]
	if !ok {
		return EquilibriumEntry{}, false
	}
	return t.Entries[i], true
}

// Names returns the constituent names in table order.
func (t *EquilibriumTable) Names() []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Name
	}
	return out
}

// formulaGraph evaluates arguments and node factors at one instant, memoizing
// every node so that shared references are computed once.
type formulaGraph struct {
	cat  *Catalog
	args *AstronomicalArguments
	vau  map[string]float64
	node map[string]float64
}

func newFormulaGraph(cat *Catalog, args *AstronomicalArguments) *formulaGraph {
	return &formulaGraph{
		cat:  cat,
		args: args,
		vau:  make(map[string]float64),
		node: make(map[string]float64),
	}
}

// equilibrium returns the unwrapped V+u of name.
func (g *formulaGraph) equilibrium(name string) float64 {
	if v, ok := g.vau[name]; ok {
		return v
	}
	k := g.cat.byName[name]
	v := k.Argument.linear(g.args)
	for _, t := range k.Argument.Terms {
		v += t.Mult * g.equilibrium(t.Name)
	}
	g.vau[name] = v
	return v
}

func (g *formulaGraph) nodeFactor(name string) float64 {
	if f, ok := g.node[name]; ok {
		return f
	}
	k := g.cat.byName[name]
	f := 1.0
	if k.NodeFactor.Eval != nil {
		f = k.NodeFactor.Eval(g.args)
	}
	for _, t := range k.NodeFactor.Terms {
		f *= math.Pow(g.nodeFactor(t.Name), t.Mult)
	}
	g.node[name] = f
	return f
}

// ComputeEquilibrium evaluates speeds, the equilibrium arguments at times[0]
// and node factors at every timestamp for the named constituents.
func ComputeEquilibrium(names []string, times []time.Time, eph Ephemeris) (*EquilibriumTable, error) {
	if len(times) == 0 {
		return nil, NewInputError("equilibrium", "no timestamps")
	}
	cat := DefaultCatalog()
	canon := make([]string, len(names))
	for i, name := range names {
		c, ok := cat.Canonical(name)
		if !ok {
			return nil, NewConfigurationError("constituent", name, "not in catalog")
		}
		canon[i] = c
	}

	table := &EquilibriumTable{
		Reference: times[0],
		Times:     times,
		Entries:   make([]EquilibriumEntry, len(canon)),
		index:     make(map[string]int, len(canon)),
	}

	refArgs := ComputeArguments(times[0], eph)
	g := newFormulaGraph(cat, &refArgs)
	for i, name := range canon {
		if _, dup := table.index[name]; dup {
			return nil, NewConfigurationError("constituent", name, "listed twice")
		}
		table.index[name] = i
		table.Entries[i] = EquilibriumEntry{
			Name:          name,
			SpeedDegPerHr: cat.byName[name].SpeedDegPerHr,
			VAUDeg:        fixAngle(g.equilibrium(name)),
			NodeFactors:   make([]float64, len(times)),
		}
	}

	fill := func(lo, hi int) {
		for j := lo; j < hi; j++ {
			args := ComputeArguments(times[j], eph)
			gj := newFormulaGraph(cat, &args)
			for i := range table.Entries {
				table.Entries[i].NodeFactors[j] = gj.nodeFactor(table.Entries[i].Name)
			}
		}
	}

	if len(times) < parallelThreshold {
		fill(0, len(times))
	} else {
		workers := runtime.GOMAXPROCS(0)
		chunk := (len(times) + workers - 1) / workers
		var wg sync.WaitGroup
		for lo := 0; lo < len(times); lo += chunk {
			hi := min(lo+chunk, len(times))
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				fill(lo, hi)
			}(lo, hi)
		}
		wg.Wait()
	}

	for _, e := range table.Entries {
		for j, f := range e.NodeFactors {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("node factor for %s at %s is not finite", e.Name, times[j].Format(time.RFC3339))
			}
		}
	}
	return table, nil
}

// EquilibriumAt returns V+u in [0, 360) for each name at t.
func EquilibriumAt(names []string, t time.Time, eph Ephemeris) (map[string]float64, error) {
	table, err := ComputeEquilibrium(names, []time.Time{t}, eph)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(table.Entries))
	for _, e := range table.Entries {
		out[e.Name] = e.VAUDeg
	}
	return out, nil
}

package domain

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Rates of the astronomical arguments in degrees per hour.
const (
	rateT  = 15.0
	rateS  = 0.5490165202
	rateH  = 0.0410686387
	rateP  = 0.0046418359
	rateP1 = 0.0000019610
)

// Term references another constituent's argument or node factor with a multiplier.
type Term struct {
	Name string
	Mult float64
}

// Argument describes an equilibrium argument V+u as a linear combination of the
// astronomical arguments plus a constant offset, optionally added to multiples
// of other constituents' arguments.
type Argument struct {
	T, S, H, P, P1 float64
	Xi, Nu         float64
	NuPrime        float64
	Nu2Prime       float64
	R, Q           float64
	Offset         float64
	Terms          []Term
}

func (a Argument) linear(x *AstronomicalArguments) float64 {
	return a.T*x.T + a.S*x.S + a.H*x.H + a.P*x.P + a.P1*x.P1 +
		a.Xi*x.Xi + a.Nu*x.Nu + a.NuPrime*x.NuPrime + a.Nu2Prime*x.Nu2Prime +
		a.R*x.R + a.Q*x.Q + a.Offset
}

func (a Argument) ownSpeed() float64 {
	return a.T*rateT + a.S*rateS + a.H*rateH + a.P*rateP + a.P1*rateP1
}

// NodeFactor describes F as an optional closed form multiplied by powers of
// other constituents' node factors.
type NodeFactor struct {
	Eval  func(x *AstronomicalArguments) float64
	Terms []Term
}

// Constituent is a catalog entry.
type Constituent struct {
	Name          string
	SpeedDegPerHr float64 // Angular speed in degrees per hour.
	MinSpanHours  float64 // Rayleigh tier: shortest record that resolves it.
	Argument      Argument
	NodeFactor    NodeFactor
}

// ConstituentParam holds the amplitude and phase for a specific location.
type ConstituentParam struct {
	Name          string
	AmplitudeM    float64 // Amplitude in meters.
	PhaseDeg      float64 // Greenwich phase lag in degrees.
	SpeedDegPerHr float64 // Angular speed in degrees per hour.
	VAUDeg        float64 // Equilibrium argument at the reference epoch.
	Inferred      bool
}

// Catalog is the immutable constituent table.
type Catalog struct {
	byName  map[string]*Constituent
	byUpper map[string]string
	names   []string
}

var (
	catalogOnce sync.Once
	catalog     *Catalog
)

// DefaultCatalog returns the process-wide catalog, built on first use.
func DefaultCatalog() *Catalog {
	catalogOnce.Do(func() {
		catalog = buildCatalog(constituentDefs())
	})
	return catalog
}

func buildCatalog(defs []Constituent) *Catalog {
	c := &Catalog{
		byName:  make(map[string]*Constituent, len(defs)),
		byUpper: make(map[string]string, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		c.byName[d.Name] = &d
		c.byUpper[strings.ToUpper(d.Name)] = d.Name
		c.names = append(c.names, d.Name)
	}
	sort.Strings(c.names)

	var speed func(name string) float64
	speed = func(name string) float64 {
		k := c.byName[name]
		if k.SpeedDegPerHr != 0 {
			return k.SpeedDegPerHr
		}
		s := k.Argument.ownSpeed()
		for _, t := range k.Argument.Terms {
			s += t.Mult * speed(t.Name)
		}
		k.SpeedDegPerHr = s
		return s
	}
	for _, name := range c.names {
		speed(name)
	}
	return c
}

// Lookup finds a constituent by name. Exact names win; otherwise the match is
// case-insensitive.
func (c *Catalog) Lookup(name string) (Constituent, bool) {
	if k, ok := c.byName[name]; ok {
		return *k, true
	}
	if canon, ok := c.byUpper[strings.ToUpper(name)]; ok {
		return *c.byName[canon], true
	}
	return Constituent{}, false
}

// Canonical returns the catalog spelling of name.
func (c *Catalog) Canonical(name string) (string, bool) {
	k, ok := c.Lookup(name)
	return k.Name, ok
}

// Names returns every constituent name in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// All returns every constituent sorted by name.
func (c *Catalog) All() []Constituent {
	out := make([]Constituent, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, *c.byName[name])
	}
	return out
}

// GetConstituentSpeed returns the angular speed for a given constituent name.
func GetConstituentSpeed(name string) (float64, bool) {
	k, ok := DefaultCatalog().Lookup(name)
	if !ok {
		return 0, false
	}
	return k.SpeedDegPerHr, true
}

// GetAllConstituents returns all catalog constituents.
func GetAllConstituents() []Constituent {
	return DefaultCatalog().All()
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// WrapPhase wraps degrees into [0, 360).
func WrapPhase(deg float64) float64 {
	return fixAngle(deg)
}

// NormalizeAmplitude returns a non-negative amplitude, moving the sign into
// the phase.
func NormalizeAmplitude(amplitude, phaseDeg float64) (float64, float64) {
	if amplitude < 0 {
		return -amplitude, fixAngle(phaseDeg + 180)
	}
	return amplitude, fixAngle(phaseDeg)
}

func unity(*AstronomicalArguments) float64 { return 1 }

func ref(name string) []Term { return []Term{{Name: name, Mult: 1}} }

func pow(name string, n float64) []Term { return []Term{{Name: name, Mult: n}} }

func nodeM2(x *AstronomicalArguments) float64 {
	return math.Pow(math.Cos(Deg2Rad(x.I)/2), 4) / 0.9154
}

func nodeK1(x *AstronomicalArguments) float64 {
	i := Deg2Rad(x.I)
	nu := Deg2Rad(x.Nu)
	s2i := math.Sin(2 * i)
	return math.Sqrt(0.8965*s2i*s2i + 0.6001*s2i*math.Cos(nu) + 0.1006)
}

func nodeM3(x *AstronomicalArguments) float64 {
	return math.Pow(math.Cos(Deg2Rad(x.I)/2), 6) / 0.8758
}

func nodeO1(x *AstronomicalArguments) float64 {
	i := Deg2Rad(x.I)
	c := math.Cos(i / 2)
	return math.Sin(i) * c * c / 0.3800
}

func nodeOO1(x *AstronomicalArguments) float64 {
	i := Deg2Rad(x.I)
	s := math.Sin(i / 2)
	return math.Sin(i) * s * s / 0.0164
}

func nodeJ1(x *AstronomicalArguments) float64 {
	return math.Sin(2*Deg2Rad(x.I)) / 0.7214
}

func nodeKJ2(x *AstronomicalArguments) float64 {
	s := math.Sin(Deg2Rad(x.I))
	return s * s / 0.1565
}

func nodeMm(x *AstronomicalArguments) float64 {
	s := math.Sin(Deg2Rad(x.I))
	return (2.0/3.0 - s*s) / 0.5021
}

func nodeMf(x *AstronomicalArguments) float64 {
	s := math.Sin(Deg2Rad(x.I))
	return s * s / 0.1578
}

func nodeK2(x *AstronomicalArguments) float64 {
	s := math.Sin(Deg2Rad(x.I))
	nu := Deg2Rad(x.Nu)
	return math.Sqrt(19.0444*s*s*s*s + 2.7702*s*s*math.Cos(2*nu) + 0.0981)
}

// nodeM1Term multiplies F(O1).
func nodeM1Term(x *AstronomicalArguments) float64 {
	return math.Sqrt(2.31 + 1.435*math.Cos(2*Deg2Rad(x.KappaP)))
}

// nodeL2Term multiplies F(M2).
func nodeL2Term(x *AstronomicalArguments) float64 {
	t := math.Tan(Deg2Rad(x.I) / 2)
	return math.Sqrt(1 - 12*t*t*math.Cos(2*Deg2Rad(x.KappaP)) + 36*t*t*t*t)
}

// constituentDefs lists the catalog. Offsets follow the noon-based hour angle T.
func constituentDefs() []Constituent {
	m2Arg := Argument{T: 2, S: -2, H: 2, Xi: 2, Nu: -2}
	return []Constituent{
		// Semidiurnal.
		{Name: "M2", MinSpanHours: 13, Argument: m2Arg, NodeFactor: NodeFactor{Eval: nodeM2}},
		{Name: "S2", MinSpanHours: 355, Argument: Argument{T: 2}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "N2", MinSpanHours: 662, Argument: Argument{T: 2, S: -3, H: 2, P: 1, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "K2", MinSpanHours: 4383, Argument: Argument{T: 2, H: 2, Nu2Prime: -1}, NodeFactor: NodeFactor{Eval: nodeK2}},
		{Name: "2N2", MinSpanHours: 4942, Argument: Argument{T: 2, S: -4, H: 2, P: 2, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "MU2", MinSpanHours: 764, Argument: Argument{T: 2, S: -4, H: 4, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "NU2", MinSpanHours: 4942, Argument: Argument{T: 2, S: -3, H: 4, P: -1, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "LAMBDA2", MinSpanHours: 4942, Argument: Argument{T: 2, S: -1, P: 1, Offset: 180, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "L2", MinSpanHours: 764, Argument: Argument{T: 2, S: -1, H: 2, P: -1, Offset: 180, Xi: 2, Nu: -2, R: -1}, NodeFactor: NodeFactor{Eval: nodeL2Term, Terms: ref("M2")}},
		{Name: "T2", MinSpanHours: 8767, Argument: Argument{T: 2, H: -1, P1: 1}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "R2", MinSpanHours: 8767, Argument: Argument{T: 2, H: 1, P1: -1, Offset: 180}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "KJ2", MinSpanHours: 662, Argument: Argument{T: 2, S: 1, H: 2, P: -1, Nu: -2}, NodeFactor: NodeFactor{Eval: nodeKJ2}},
		{Name: "2SM2", MinSpanHours: 355, Argument: Argument{T: 2, S: 2, H: -2, Xi: -2, Nu: 2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "MNS2", MinSpanHours: 764, Argument: Argument{T: 2, S: -5, H: 4, P: 1, Xi: 4, Nu: -4}, NodeFactor: NodeFactor{Terms: pow("M2", 2)}},
		{Name: "A54", MinSpanHours: 4383, Argument: Argument{T: 2, S: -2, H: 4, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("KJ2")}},
		{Name: "GAM2", MinSpanHours: 11326, Argument: Argument{T: 2, S: -2, P: 2, Offset: 180, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "H1", MinSpanHours: 77554, Argument: Argument{T: 2, S: -2, H: 1, P1: 1, Offset: 180, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "H2", MinSpanHours: 77554, Argument: Argument{T: 2, S: -2, H: 3, P1: -1, Xi: 2, Nu: -2}, NodeFactor: NodeFactor{Terms: ref("M2")}},

		// Diurnal.
		{Name: "K1", MinSpanHours: 24, Argument: Argument{T: 1, H: 1, Offset: -90, NuPrime: -1}, NodeFactor: NodeFactor{Eval: nodeK1}},
		{Name: "O1", MinSpanHours: 328, Argument: Argument{T: 1, S: -2, H: 1, Offset: 90, Xi: 2, Nu: -1}, NodeFactor: NodeFactor{Eval: nodeO1}},
		{Name: "P1", MinSpanHours: 4383, Argument: Argument{T: 1, H: -1, Offset: 90}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "Q1", MinSpanHours: 662, Argument: Argument{T: 1, S: -3, H: 1, P: 1, Offset: 90, Xi: 2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "2Q1", MinSpanHours: 662, Argument: Argument{T: 1, S: -4, H: 1, P: 2, Offset: 90, Xi: 2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "SIGMA1", MinSpanHours: 4942, Argument: Argument{T: 1, S: -4, H: 3, Offset: 90, Xi: 2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "RHO1", MinSpanHours: 4942, Argument: Argument{T: 1, S: -3, H: 3, P: -1, Offset: 90, Xi: 2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "J1", MinSpanHours: 662, Argument: Argument{T: 1, S: 1, H: 1, P: -1, Offset: -90, Nu: -1}, NodeFactor: NodeFactor{Eval: nodeJ1}},
		{Name: "OO1", MinSpanHours: 651, Argument: Argument{T: 1, S: 2, H: 1, Offset: -90, Xi: -2, Nu: -1}, NodeFactor: NodeFactor{Eval: nodeOO1}},
		{Name: "M1", MinSpanHours: 662, Argument: Argument{T: 1, S: -1, H: 1, P: 1, Offset: -90, Nu: -1, Q: -1}, NodeFactor: NodeFactor{Eval: nodeM1Term, Terms: ref("O1")}},
		{Name: "KQ1", MinSpanHours: 662, Argument: Argument{T: 1, S: 3, H: 1, P: -1, Offset: -90, Xi: -2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("KJ2")}},
		{Name: "SO1", MinSpanHours: 4383, Argument: Argument{T: 1, S: 2, H: -1, Offset: -90, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("J1")}},
		{Name: "MP1", MinSpanHours: 4383, Argument: Argument{T: 1, S: -2, H: 3, Offset: -90, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("J1")}},
		{Name: "A19", MinSpanHours: 4383, Argument: Argument{T: 1, S: -1, H: -1, P: 1, Offset: -90, Xi: -2, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "CHI1", MinSpanHours: 4942, Argument: Argument{T: 1, S: -1, H: 3, P: -1, Offset: -90, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("J1")}},
		{Name: "THETA1", MinSpanHours: 4942, Argument: Argument{T: 1, S: 1, H: -1, P: 1, Offset: -90, Nu: -1}, NodeFactor: NodeFactor{Terms: ref("J1")}},
		{Name: "PHI1", MinSpanHours: 4383, Argument: Argument{T: 1, H: 3, Offset: -90}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "PI1", MinSpanHours: 8767, Argument: Argument{T: 1, H: -2, P1: 1, Offset: 90}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "PSI1", MinSpanHours: 8767, Argument: Argument{T: 1, H: 2, P1: -1, Offset: -90}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "S1", MinSpanHours: 8767, Argument: Argument{T: 1}, NodeFactor: NodeFactor{Eval: unity}},

		// Terdiurnal and compound.
		{Name: "M3", MinSpanHours: 25, Argument: Argument{T: 3, S: -3, H: 3, Xi: 3, Nu: -3}, NodeFactor: NodeFactor{Eval: nodeM3}},
		{Name: "SK3", MinSpanHours: 355, Argument: Argument{Terms: []Term{{"S2", 1}, {"K1", 1}}}, NodeFactor: NodeFactor{Terms: ref("K1")}},
		{Name: "SO3", MinSpanHours: 4383, Argument: Argument{Terms: []Term{{"S2", 1}, {"O1", 1}}}, NodeFactor: NodeFactor{Terms: ref("O1")}},
		{Name: "MK3", MinSpanHours: 656, Argument: Argument{Terms: []Term{{"M2", 1}, {"K1", 1}}}, NodeFactor: NodeFactor{Terms: []Term{{"M2", 1}, {"K1", 1}}}},
		{Name: "2MK3", MinSpanHours: 656, Argument: Argument{Terms: []Term{{"M2", 2}, {"K1", -1}}}, NodeFactor: NodeFactor{Terms: []Term{{"M2", 2}, {"K1", 1}}}},
		{Name: "M4", MinSpanHours: 25, Argument: Argument{Terms: pow("M2", 2)}, NodeFactor: NodeFactor{Terms: pow("M2", 2)}},
		{Name: "MS4", MinSpanHours: 355, Argument: Argument{Terms: []Term{{"M2", 1}, {"S2", 1}}}, NodeFactor: NodeFactor{Terms: ref("M2")}},
		{Name: "MN4", MinSpanHours: 662, Argument: Argument{Terms: []Term{{"M2", 1}, {"N2", 1}}}, NodeFactor: NodeFactor{Terms: pow("M2", 2)}},
		{Name: "MK4", MinSpanHours: 4383, Argument: Argument{Terms: []Term{{"M2", 1}, {"K2", 1}}}, NodeFactor: NodeFactor{Terms: []Term{{"M2", 1}, {"K2", 1}}}},
		{Name: "S4", MinSpanHours: 355, Argument: Argument{Terms: pow("S2", 2)}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "M6", MinSpanHours: 26, Argument: Argument{Terms: pow("M2", 3)}, NodeFactor: NodeFactor{Terms: pow("M2", 3)}},
		{Name: "M8", MinSpanHours: 235, Argument: Argument{Terms: pow("M2", 4)}, NodeFactor: NodeFactor{Terms: pow("M2", 4)}},

		// Long period.
		{Name: "Mm", MinSpanHours: 764, Argument: Argument{S: 1, P: -1}, NodeFactor: NodeFactor{Eval: nodeMm}},
		{Name: "Mf", MinSpanHours: 4383, Argument: Argument{S: 2, Xi: -2}, NodeFactor: NodeFactor{Eval: nodeMf}},
		{Name: "MSf", MinSpanHours: 355, Argument: Argument{S: 2, H: -2}, NodeFactor: NodeFactor{Terms: ref("Mm")}},
		{Name: "A4", MinSpanHours: 4942, Argument: Argument{S: 1, H: -2, P: 1}, NodeFactor: NodeFactor{Terms: ref("Mm")}},
		{Name: "Ssa", MinSpanHours: 4383, Argument: Argument{H: 2}, NodeFactor: NodeFactor{Eval: unity}},
		{Name: "Sa", MinSpanHours: 8766, Argument: Argument{H: 1}, NodeFactor: NodeFactor{Eval: unity}},
	}
}

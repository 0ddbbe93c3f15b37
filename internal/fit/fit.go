// Package fit estimates tidal constituent amplitudes and phases from an
// elevation record with a damped Gauss-Newton (Levenberg-Marquardt) solver.
package fit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"go.ngs.io/tides-analysis/internal/domain"
)

const (
	defaultTolerance = 1.49012e-8
	lambdaInit       = 1e-3
	lambdaMax        = 1e16
)

// Options control the solver.
type Options struct {
	// Trend adds a linear slope term to the model.
	Trend bool
	// MaxIterations caps the number of model evaluations. Zero selects
	// 200*(parameters+1).
	MaxIterations int
	// Tolerance is the relative cost and step size at which the solve
	// stops. Zero selects 1.49012e-8.
	Tolerance float64
}

// Result is a fitted harmonic model plus solver diagnostics.
type Result struct {
	Reference    time.Time
	Z0           float64
	Slope        float64
	Constituents []domain.ConstituentParam
	Iterations   int
	ResidualRMS  float64
	Observations int
}

// Model converts the result into a synthesizable model.
func (r *Result) Model(eph domain.Ephemeris) domain.Model {
	params := make([]domain.ConstituentParam, len(r.Constituents))
	copy(params, r.Constituents)
	return domain.Model{
		Reference:    r.Reference,
		Z0:           r.Z0,
		Slope:        r.Slope,
		Constituents: params,
		Ephemeris:    eph,
	}
}

// problem holds the fixed inputs of one solve.
type problem struct {
	hours  []float64
	obs    []float64
	speeds []float64 // Radians per hour.
	nodes  [][]float64
	trend  bool
}

func (p *problem) nParams() int {
	n := 2*len(p.speeds) + 1
	if p.trend {
		n++
	}
	return n
}

// model evaluates Z0 [+ slope·t] + Σ H·F·cos(ωt − φ) at sample k.
func (p *problem) model(x []float64, k int) float64 {
	nc := len(p.speeds)
	t := p.hours[k]
	v := x[2*nc]
	if p.trend {
		v += x[2*nc+1] * t
	}
	for i := 0; i < nc; i++ {
		v += x[i] * p.nodes[i][k] * math.Cos(p.speeds[i]*t-x[nc+i])
	}
	return v
}

// residuals writes observed − model into r and returns Σr².
func (p *problem) residuals(x, r []float64) float64 {
	for k := range p.obs {
		r[k] = p.obs[k] - p.model(x, k)
	}
	return floats.Dot(r, r)
}

// jacobian fills the model derivatives with respect to each parameter.
func (p *problem) jacobian(x []float64, j *mat.Dense) {
	nc := len(p.speeds)
	for k, t := range p.hours {
		for i := 0; i < nc; i++ {
			f := p.nodes[i][k]
			s, c := math.Sincos(p.speeds[i]*t - x[nc+i])
			j.Set(k, i, f*c)
			j.Set(k, nc+i, x[i]*f*s)
		}
		j.Set(k, 2*nc, 1)
		if p.trend {
			j.Set(k, 2*nc+1, t)
		}
	}
}

// Fit solves for every constituent in table. The table's timestamps must be
// the series timestamps; elapsed time is measured from the first sample.
func Fit(ctx context.Context, series domain.TimeSeries, table *domain.EquilibriumTable, opts Options) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if table == nil || len(table.Times) != series.Len() {
		return nil, domain.NewInputError("fit", "equilibrium table does not match the series")
	}

	prob := &problem{
		hours: series.HoursSince(series.Times[0]),
		obs:   series.Values,
		trend: opts.Trend,
	}
	for _, e := range table.Entries {
		prob.speeds = append(prob.speeds, domain.Deg2Rad(e.SpeedDegPerHr))
		prob.nodes = append(prob.nodes, e.NodeFactors)
	}

	np := prob.nParams()
	m := series.Len()
	if m < np {
		return nil, domain.NewFitError("under-determined: %d observations for %d parameters", m, np)
	}

	x := make([]float64, np)
	nc := len(prob.speeds)
	for i := 0; i < nc; i++ {
		x[i] = 1
	}
	x[2*nc] = stat.Mean(series.Values, nil)

	iterations, cost, err := solve(ctx, prob, x, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Reference:    series.Times[0],
		Z0:           x[2*nc],
		Iterations:   iterations,
		ResidualRMS:  math.Sqrt(cost / float64(m)),
		Observations: m,
	}
	if prob.trend {
		res.Slope = x[2*nc+1]
	}
	for i, e := range table.Entries {
		amp, phase := domain.NormalizeAmplitude(x[i], domain.Rad2Deg(x[nc+i]))
		res.Constituents = append(res.Constituents, domain.ConstituentParam{
			Name:          e.Name,
			AmplitudeM:    amp,
			PhaseDeg:      domain.WrapPhase(phase + e.VAUDeg),
			SpeedDegPerHr: e.SpeedDegPerHr,
			VAUDeg:        e.VAUDeg,
		})
	}
	sort.Slice(res.Constituents, func(i, j int) bool {
		return res.Constituents[i].Name < res.Constituents[j].Name
	})
	return res, nil
}

// solve runs Levenberg-Marquardt in place on x and returns the number of
// model evaluations and the final cost.
func solve(ctx context.Context, p *problem, x []float64, opts Options) (int, float64, error) {
	np := len(x)
	m := len(p.obs)

	tol := opts.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 200 * (np + 1)
	}

	r := make([]float64, m)
	rTrial := make([]float64, m)
	trial := make([]float64, np)
	jac := mat.NewDense(m, np, nil)
	step := mat.NewVecDense(np, nil)
	jStep := mat.NewVecDense(m, nil)

	cost := p.residuals(x, r)
	evals := 1
	if !finite(cost) {
		return evals, cost, domain.NewFitError("initial residual is not finite")
	}
	if cost == 0 {
		return evals, cost, nil
	}

	lambda := lambdaInit
	for evals < maxIter {
		if err := ctx.Err(); err != nil {
			return evals, cost, fmt.Errorf("fit cancelled after %d evaluations: %w", evals, err)
		}

		p.jacobian(x, jac)
		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		maxDiag := 0.0
		for i := 0; i < np; i++ {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		floor := 1e-12 * math.Max(maxDiag, 1)

		for {
			damped := mat.NewSymDense(np, nil)
			damped.CopySym(&jtj)
			for i := 0; i < np; i++ {
				d := math.Max(jtj.At(i, i), floor)
				damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(damped); !ok {
				lambda *= 10
				if lambda > lambdaMax {
					return evals, cost, domain.NewFitError("normal equations are singular")
				}
				continue
			}
			if err := chol.SolveVecTo(step, &grad); err != nil && !isConditionWarning(err) {
				return evals, cost, &domain.FitError{Msg: "solving damped normal equations", Err: err}
			}

			for i := range x {
				trial[i] = x[i] + step.AtVec(i)
			}
			trialCost := p.residuals(trial, rTrial)
			evals++
			if !finite(trialCost) {
				return evals, cost, domain.NewFitError("residual became non-finite after %d evaluations", evals)
			}

			stepNorm := mat.Norm(step, 2)
			xNorm := floats.Norm(x, 2)
			small := stepNorm <= tol*(xNorm+tol)

			if trialCost < cost {
				jStep.MulVec(jac, step)
				predicted := 2*mat.Dot(step, &grad) - mat.Dot(jStep, jStep)
				actualRel := (cost - trialCost) / cost
				predictedRel := predicted / cost

				copy(x, trial)
				copy(r, rTrial)
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-15)

				if cost == 0 || small || (actualRel <= tol && predictedRel <= tol) {
					return evals, cost, nil
				}
				break
			}

			// Rejected step: no descent possible at this resolution.
			if small || lambda > lambdaMax {
				return evals, cost, nil
			}
			lambda *= 10
			if evals >= maxIter {
				break
			}
		}
	}
	return evals, cost, domain.NewFitError("no convergence after %d evaluations (cost %.6g)", evals, cost)
}

func isConditionWarning(err error) bool {
	_, ok := err.(mat.Condition)
	return ok
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

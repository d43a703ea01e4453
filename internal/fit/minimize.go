// Package fit finds least-squares point estimates with a derivative-free
// Nelder-Mead simplex search.
//
// Bounded parameters are searched in transformed coordinates (see
// params.ToInternal) so every trial point respects its bounds. Running out
// of evaluations is not an error: the best point seen is returned with
// Result.Success set to false.
package fit

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/decayfit/internal/params"
	"gonum.org/v1/gonum/optimize"
)

// ResidualFunc returns model-minus-data for a parameter set.
type ResidualFunc func(p *params.Parameters) []float64

type Result struct {
	Params     *params.Parameters
	InitValues map[string]float64
	Residual   []float64

	Success bool
	Status  string
	Message string

	Nfev   int
	Ndata  int
	Nvarys int
	Nfree  int
	Chisqr float64
	Redchi float64
	AIC    float64
	BIC    float64
}

// objective evaluates the sum of squares at internal coordinates and keeps
// the best finite point seen, so a failed or truncated search still has a
// usable answer.
type objective struct {
	fn     ResidualFunc
	tmpl   *params.Parameters
	policy NanPolicy

	nfev   int
	raised error
	bestU  []float64
	bestF  float64
}

func (o *objective) eval(u []float64) float64 {
	o.nfev++

	p, err := o.tmpl.WithFreeInternal(u)
	if err != nil {
		o.raised = err
		return math.Inf(1)
	}

	f, err := sumSquares(o.fn(p), o.policy)
	if err != nil {
		if o.raised == nil {
			o.raised = err
		}
		return math.Inf(1)
	}

	if !math.IsNaN(f) && f < o.bestF {
		o.bestF = f
		o.bestU = append(o.bestU[:0], u...)
	}
	return f
}

func sumSquares(r []float64, policy NanPolicy) (float64, error) {
	sum := 0.0
	kept := 0
	for _, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			switch policy {
			case NanRaise:
				return 0, ErrNonFinite
			case NanOmit:
				continue
			}
		}
		sum += v * v
		kept++
	}
	if kept == 0 && len(r) > 0 {
		return math.Inf(1), nil
	}
	return sum, nil
}

// recorder aborts the search on context cancellation or a raised NaN.
type recorder struct {
	ctx context.Context
	obj *objective
}

func (r *recorder) Init() error { return r.ctx.Err() }

func (r *recorder) Record(_ *optimize.Location, _ optimize.Operation, _ *optimize.Stats) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	return r.obj.raised
}

// Minimize refines the free parameters of p to minimize the sum of squared
// residuals. The input set is not modified.
func Minimize(ctx context.Context, fn ResidualFunc, p *params.Parameters, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	nvarys := len(p.Free())
	if nvarys == 0 {
		return nil, ErrNoFreeParams
	}
	maxFev := opts.MaxFev
	if maxFev <= 0 {
		maxFev = 2000 * (nvarys + 1)
	}

	obj := &objective{
		fn:     fn,
		tmpl:   p,
		policy: opts.NanPolicy,
		bestF:  math.Inf(1),
	}

	start := p.FreeInternal()
	status := optimize.NotTerminated
	var searchErr error

	for round := 0; round <= opts.Restarts; round++ {
		before := obj.bestF
		budget := maxFev - obj.nfev
		if budget <= nvarys+1 {
			status = optimize.FunctionEvaluationLimit
			break
		}

		status, searchErr = obj.search(ctx, start, budget, opts.SimplexScale)
		if obj.raised != nil {
			return nil, obj.raised
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if searchErr != nil {
			opts.Logger.Warn("nelder-mead stopped early", "round", round, "status", status.String(), "err", searchErr)
			break
		}
		if obj.bestU != nil {
			start = append(start[:0], obj.bestU...)
		}

		opts.Logger.Debug("nelder-mead round", "round", round, "chisqr", obj.bestF, "nfev", obj.nfev, "status", status.String())

		if round > 0 && before-obj.bestF <= opts.FTol*math.Max(math.Abs(before), 1e-300) {
			break
		}
	}

	if obj.bestU == nil {
		obj.bestU = p.FreeInternal()
	}
	best, err := p.WithFreeInternal(obj.bestU)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Params:     best,
		InitValues: p.ValueMap(),
		Residual:   fn(best),
		Status:     status.String(),
		Nfev:       obj.nfev,
		Nvarys:     nvarys,
	}
	res.Success = searchErr == nil && converged(status)
	switch {
	case searchErr != nil:
		res.Message = searchErr.Error()
	case res.Success:
		res.Message = "optimization terminated successfully"
	default:
		res.Message = fmt.Sprintf("optimization stopped: %s", status)
	}
	res.computeStats(opts.NanPolicy)

	if !res.Success {
		opts.Logger.Warn("fit did not converge; returning best point", "status", res.Status, "nfev", res.Nfev)
	}
	return res, nil
}

func (o *objective) search(ctx context.Context, start []float64, budget int, scale float64) (optimize.Status, error) {
	dim := len(start)
	vertices := make([][]float64, dim+1)
	values := make([]float64, dim+1)

	for i := range vertices {
		v := make([]float64, dim)
		copy(v, start)
		if i > 0 {
			k := i - 1
			if v[k] != 0 {
				v[k] *= 1 + scale
			} else {
				v[k] = 0.00025
			}
		}
		vertices[i] = v
		values[i] = o.eval(v)
	}
	if o.raised != nil {
		return optimize.Failure, o.raised
	}

	problem := optimize.Problem{Func: o.eval}
	settings := &optimize.Settings{
		FuncEvaluations: budget - (dim + 1),
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 50 * dim,
		},
		Recorder: &recorder{ctx: ctx, obj: o},
	}
	// Classic coefficients. gonum's dimension-adaptive defaults contract
	// the double exponential into its t1 -> 0 basin, where one term
	// vanishes on the grid.
	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
		Reflection:      1,
		Expansion:       2,
		Contraction:     0.5,
		Shrink:          0.5,
	}

	result, err := optimize.Minimize(problem, start, settings, method)
	if result == nil {
		return optimize.Failure, err
	}
	return result.Status, err
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
		return true
	}
	return false
}

func (r *Result) computeStats(policy NanPolicy) {
	chisqr := 0.0
	n := 0
	for _, v := range r.Residual {
		if policy == NanOmit && (math.IsNaN(v) || math.IsInf(v, 0)) {
			continue
		}
		chisqr += v * v
		n++
	}

	r.Ndata = n
	r.Chisqr = chisqr
	r.Nfree = n - r.Nvarys
	r.Redchi = chisqr / float64(max(r.Nfree, 1))

	if n == 0 {
		r.AIC, r.BIC = math.NaN(), math.NaN()
		return
	}
	nd := float64(n)
	lnL := nd * math.Log(math.Max(chisqr, 1e-250)/nd)
	r.AIC = lnL + 2*float64(r.Nvarys)
	r.BIC = lnL + math.Log(nd)*float64(r.Nvarys)
}

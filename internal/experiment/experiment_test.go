package experiment_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/decayfit/internal/experiment"
	"github.com/san-kum/decayfit/internal/mcmc"
	"github.com/san-kum/decayfit/internal/model"
	"github.com/san-kum/decayfit/internal/params"
)

func quickConfig(seed uint64) experiment.Config {
	cfg := experiment.DefaultConfig()
	cfg.Seed = seed
	cfg.Noise = 0.01
	cfg.NoiseParam.Value = 0.01
	cfg.Sampler = mcmc.Options{Walkers: 32, Steps: 300, Burn: 100, Thin: 10, Workers: 4}
	return cfg
}

func setup(cfg experiment.Config) *experiment.Experiment {
	m, err := experiment.NewRegistry().GetModel(cfg.Model)
	Expect(err).NotTo(HaveOccurred())
	exp := experiment.New(cfg, nil)
	Expect(exp.Setup(m)).To(Succeed())
	return exp
}

func within(got, want, rel float64) bool {
	return math.Abs(got-want) <= rel*math.Abs(want)
}

var _ = Describe("Registry", func() {
	It("lists the built-in models", func() {
		Expect(experiment.NewRegistry().ListModels()).To(Equal([]string{"double_exp", "single_exp"}))
	})

	It("registers additional models", func() {
		r := experiment.NewRegistry()
		r.Register("decay", func() model.Model { return model.NewSingleExp() })
		Expect(r.ListModels()).To(Equal([]string{"decay", "double_exp", "single_exp"}))

		m, err := r.GetModel("decay")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.ParamNames()).To(Equal([]string{"a", "t"}))
	})

	It("rejects unknown models", func() {
		_, err := experiment.NewRegistry().GetModel("triple_exp")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Experiment", func() {
	ctx := context.Background()

	It("refuses to run before setup", func() {
		_, err := experiment.New(quickConfig(1), nil).Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("not setup")))
	})

	It("requires starting and true values for every model parameter", func() {
		cfg := quickConfig(1)
		cfg.Params = cfg.Params[:3]
		m, _ := experiment.NewRegistry().GetModel("double_exp")
		Expect(experiment.New(cfg, nil).Setup(m)).NotTo(Succeed())

		cfg = quickConfig(1)
		delete(cfg.Truth, "t2")
		Expect(experiment.New(cfg, nil).Setup(m)).NotTo(Succeed())
	})

	It("picks a seed when none is given", func() {
		cfg := quickConfig(0)
		Expect(experiment.New(cfg, nil).Seed()).NotTo(BeZero())
		Expect(experiment.New(quickConfig(7), nil).Seed()).To(Equal(uint64(7)))
	})

	It("generates 250 points on [1, 10]", func() {
		data, err := setup(quickConfig(3)).Generate()
		Expect(err).NotTo(HaveOccurred())
		Expect(data.Len()).To(Equal(250))
		Expect(data.X[0]).To(Equal(1.0))
		Expect(data.X[249]).To(Equal(10.0))
		Expect(data.Y).To(HaveLen(250))
	})

	It("recovers the generating parameters from the standard starting point", func() {
		exp := setup(quickConfig(11))
		data, err := exp.Generate()
		Expect(err).NotTo(HaveOccurred())

		res, err := exp.Fit(ctx, data)
		Expect(err).NotTo(HaveOccurred())

		got := res.Params.ValueMap()
		direct := within(got["a1"], 3, 0.1) && within(got["a2"], -5, 0.1) &&
			within(got["t1"], 2, 0.1) && within(got["t2"], 10, 0.1)
		swapped := within(got["a1"], -5, 0.1) && within(got["a2"], 3, 0.1) &&
			within(got["t1"], 10, 0.1) && within(got["t2"], 2, 0.1)
		Expect(direct || swapped).To(BeTrue(), "fitted %v", got)
	})

	It("samples the posterior around the fit", func() {
		res, err := setup(quickConfig(5)).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Chain.Names).To(Equal([]string{"a1", "a2", "t1", "t2", "noise"}))
		steps, walkers, dim := res.Chain.Shape()
		Expect(steps).To(Equal(20))
		Expect(walkers).To(Equal(32))
		Expect(dim).To(Equal(5))

		noise, ok := res.Summary.Marginal("noise")
		Expect(ok).To(BeTrue())
		Expect(noise.Median).To(BeNumerically("~", 0.01, 0.003))

		Expect(res.Posterior.Value("noise")).To(Equal(noise.Median))
		Expect(res.MaxProb.InBounds()).To(BeTrue())
		Expect(res.Seed).To(Equal(uint64(5)))
	})

	It("centers the default-noise posterior on the generating values", func() {
		cfg := experiment.DefaultConfig()
		cfg.Seed = 21
		cfg.Sampler = mcmc.Options{Walkers: 32, Steps: 1000, Burn: 400, Thin: 10, Workers: 4}
		exp := setup(cfg)

		res, err := exp.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		truth := params.New()
		for _, name := range exp.Model().ParamNames() {
			Expect(truth.Add(name, cfg.Truth[name])).To(Succeed())
		}
		atTruth := 0.0
		for _, r := range model.Residual(exp.Model(), truth, res.Data) {
			atTruth += r * r
		}
		Expect(res.Fit.Chisqr).To(BeNumerically("<=", atTruth*1.001), "fit %v", res.Fit.Params.ValueMap())

		// With sigma 0.1 the marginals are wide, so closeness is judged
		// against the 2-sigma spread of each parameter.
		near := func(name string, want float64) bool {
			m, ok := res.Summary.Marginal(name)
			Expect(ok).To(BeTrue())
			return math.Abs(m.Median-want) <= 1.5*m.Spread2
		}
		direct := near("a1", 3) && near("a2", -5) && near("t1", 2) && near("t2", 10)
		swapped := near("a1", -5*math.Exp(0.1/10)) && near("a2", 3*math.Exp(-0.1/2)) && near("t1", 10) && near("t2", 2)
		Expect(direct || swapped).To(BeTrue(), "posterior %v", res.Posterior.ValueMap())

		t1, _ := res.Summary.Marginal("t1")
		t2, _ := res.Summary.Marginal("t2")
		Expect(math.Min(t1.Median, t2.Median)).To(BeNumerically(">", 0.5))

		noise, _ := res.Summary.Marginal("noise")
		Expect(noise.Median).To(BeNumerically("~", 0.1, 0.015))
	})

	It("reproduces the chain summary for a fixed seed", func() {
		a, err := setup(quickConfig(42)).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		b, err := setup(quickConfig(42)).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Data.Y).To(Equal(a.Data.Y))
		Expect(b.Summary.Marginals).To(Equal(a.Summary.Marginals))
		Expect(b.Summary.Correl).To(Equal(a.Summary.Correl))
		Expect(b.Summary.MaxProb).To(Equal(a.Summary.MaxProb))
	})

	It("gives different data for different seeds", func() {
		a, err := setup(quickConfig(1)).Generate()
		Expect(err).NotTo(HaveOccurred())
		b, err := setup(quickConfig(2)).Generate()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Y).NotTo(Equal(b.Y))
	})

	It("fits the single exponential model", func() {
		cfg := quickConfig(9)
		cfg.Model = "single_exp"
		cfg.Truth = map[string]float64{"a": 2, "t": 3}
		cfg.Params = []experiment.ParamSpec{experiment.Free("a", 1), experiment.Free("t", 1)}

		exp := setup(cfg)
		data, err := exp.Generate()
		Expect(err).NotTo(HaveOccurred())
		res, err := exp.Fit(ctx, data)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Params.Value("a")).To(BeNumerically("~", 2, 0.1))
		Expect(res.Params.Value("t")).To(BeNumerically("~", 3, 0.1))
	})

	It("stops when the context is canceled", func() {
		c, cancel := context.WithCancel(ctx)
		cancel()
		_, err := setup(quickConfig(1)).Run(c)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one member per seed and measures interval coverage", func() {
		cfg := quickConfig(0)
		cfg.Sampler.Steps = 200
		cfg.Sampler.Burn = 100

		results, err := experiment.NewEnsemble(cfg, experiment.NewRegistry(), 3, 100, 2, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for i, res := range results {
			Expect(res.Seed).To(Equal(uint64(100 + i)))
		}
		Expect(results[0].Data.Y).NotTo(Equal(results[1].Data.Y))

		truth := map[string]float64{"noise": 0.01, "unused": 1}
		cov := experiment.Coverage(results, truth, 0.0)
		Expect(cov).To(HaveKey("noise"))
		Expect(cov).NotTo(HaveKey("unused"))
		Expect(cov["noise"]).To(BeNumerically(">=", 0))
		Expect(cov["noise"]).To(BeNumerically("<=", 1))
	})

	It("fails when the model is unknown", func() {
		cfg := quickConfig(1)
		cfg.Model = "nope"
		_, err := experiment.NewEnsemble(cfg, experiment.NewRegistry(), 2, 1, 2, nil).Run(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FitFrom", func() {
	It("overrides starting values", func() {
		exp := setup(quickConfig(4))
		data, err := exp.Generate()
		Expect(err).NotTo(HaveOccurred())

		res, err := exp.FitFrom(context.Background(), data, map[string]float64{"t1": 1.5, "t2": 8})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.InitValues["t1"]).To(Equal(1.5))

		_, err = exp.FitFrom(context.Background(), data, map[string]float64{"zz": 1})
		Expect(err).To(HaveOccurred())
	})
})

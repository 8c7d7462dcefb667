package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/sim"
)

// failedFitness poisons a sample whose rollout could not even start, so a
// broken vector is discarded instead of aborting the whole search.
const failedFitness = 1e9

// Evaluator scores a parameter vector by rolling out a policy across a fixed
// seed set. Fitness is the negated mean episode return, so the minimizer
// searches for the highest-return shaping.
type Evaluator struct {
	Params   *ParamVector
	Base     *config.Config
	Policy   string
	Seeds    []int64
	MaxTicks int64

	mu       sync.Mutex
	evals    int
	bestFit  float64
	bestX    []float64
	lastMean float64
}

func NewEvaluator(params *ParamVector, base *config.Config, policy string, seeds []int64, maxTicks int64) *Evaluator {
	return &Evaluator{
		Params:   params,
		Base:     base,
		Policy:   policy,
		Seeds:    seeds,
		MaxTicks: maxTicks,
		bestFit:  math.Inf(1),
	}
}

// Evaluate is the optimize.Problem objective. It takes a normalized vector,
// applies it to a copy of the base config and runs every seed in parallel.
func (e *Evaluator) Evaluate(norm []float64) float64 {
	x := e.Params.Clamp(e.Params.Denormalize(norm))
	cfg := *e.Base
	if err := e.Params.ApplyToConfig(&cfg, x); err != nil {
		return failedFitness
	}

	returns := make([]float64, len(e.Seeds))
	errs := make([]error, len(e.Seeds))
	var wg sync.WaitGroup
	for i, seed := range e.Seeds {
		wg.Add(1)
		go func(i int, seed int64) {
			defer wg.Done()
			returns[i], errs[i] = sim.EvaluateReturn(&cfg, e.Policy, []int64{seed}, e.MaxTicks)
		}(i, seed)
	}
	wg.Wait()

	var sum float64
	for i, r := range returns {
		if errs[i] != nil {
			return failedFitness
		}
		sum += r
	}
	mean := sum / float64(len(e.Seeds))
	fitness := -mean

	e.mu.Lock()
	defer e.mu.Unlock()
	e.evals++
	e.lastMean = mean
	if fitness < e.bestFit {
		e.bestFit = fitness
		e.bestX = append([]float64(nil), x...)
	}
	return fitness
}

// Evals returns the number of completed evaluations.
func (e *Evaluator) Evals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evals
}

// LastMean returns the mean episode return of the most recent evaluation.
func (e *Evaluator) LastMean() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMean
}

// Best returns the lowest fitness seen and its denormalized vector.
func (e *Evaluator) Best() (float64, []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestFit, e.bestX
}

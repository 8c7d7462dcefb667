// Command tune searches the reward shaping coefficients with CMA-ES.
//
// The objective rolls out the heuristic chaser across a fixed seed set and
// scores each vector by its mean episode return. The search writes an eval
// log CSV and a best_config.yaml ready to pass back via --config.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/hopper/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config overlay applied before tuning")
		policyName = flag.String("policy", "chaser", "policy to evaluate (chaser, random, idle)")
		seedCount  = flag.Int("seeds", 4, "rollout seeds per evaluation")
		maxTicks   = flag.Int64("max-ticks", 6000, "ticks simulated per seed")
		maxEvals   = flag.Int("max-evals", 300, "maximum function evaluations")
		population = flag.Int("population", 0, "CMA-ES population size (0 = auto)")
		outDir     = flag.String("out", "tuning", "directory for the eval log and best config")
	)
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("loading config: %v", err)
	}
	base := config.Cfg()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}

	// Fixed seeds keep evaluations comparable across the whole search.
	seeds := make([]int64, *seedCount)
	for i := range seeds {
		seeds[i] = int64(i)*1000 + 42
	}

	params := NewParamVector()
	ev := NewEvaluator(params, base, *policyName, seeds, *maxTicks)

	logPath := filepath.Join(*outDir, "evals.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("creating eval log: %v", err)
	}
	defer logFile.Close()
	evalLog := csv.NewWriter(logFile)
	header := []string{"eval", "fitness", "mean_return"}
	for _, s := range params.Specs {
		header = append(header, s.Name)
	}
	evalLog.Write(header)
	evalLog.Flush()

	popSize := *population
	if popSize == 0 {
		// Standard CMA-ES sizing for the dimension.
		popSize = 4 + int(3*math.Log(float64(params.Dim())))
	}

	fmt.Printf("tuning %d params with %s over %d seeds x %d ticks, %d evals max, population %d\n",
		params.Dim(), *policyName, len(seeds), *maxTicks, *maxEvals, popSize)

	start := time.Now()
	problem := optimize.Problem{Func: ev.Evaluate}
	baseFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fit := baseFunc(x)
		n := ev.Evals()
		row := []string{strconv.Itoa(n), formatFloat(fit), formatFloat(ev.LastMean())}
		for _, v := range params.Clamp(params.Denormalize(x)) {
			row = append(row, formatFloat(v))
		}
		evalLog.Write(row)
		evalLog.Flush()

		bestFit, _ := ev.Best()
		if fit <= bestFit {
			fmt.Printf("[%d/%d] return %.3f (new best)\n", n, *maxEvals, -fit)
		} else if n%10 == 0 {
			elapsed := time.Since(start)
			eta := elapsed / time.Duration(n) * time.Duration(*maxEvals-n)
			fmt.Printf("[%d/%d] return %.3f best %.3f elapsed %s eta %s\n",
				n, *maxEvals, -fit, -bestFit, formatDuration(elapsed), formatDuration(eta))
		}
		return fit
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	x0 := params.Normalize(params.DefaultVector())
	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil {
		fmt.Printf("optimization stopped: %v\n", err)
	}
	if result != nil {
		fmt.Printf("status %v after %d evaluations in %s\n",
			result.Status, result.Stats.FuncEvaluations, formatDuration(time.Since(start)))
	}

	bestFit, bestX := ev.Best()
	if bestX == nil {
		log.Fatal("no successful evaluations")
	}
	fmt.Printf("\nbest mean return %.3f\n", -bestFit)
	for i, s := range params.Specs {
		fmt.Printf("  %-22s %9.4f (default %g)\n", s.Name, bestX[i], s.Default)
	}

	bestCfg := *base
	if err := params.ApplyToConfig(&bestCfg, bestX); err != nil {
		log.Fatalf("applying best params: %v", err)
	}
	bestPath := filepath.Join(*outDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(bestPath); err != nil {
		log.Fatalf("writing best config: %v", err)
	}
	evalLog.Flush()
	if err := evalLog.Error(); err != nil {
		log.Fatalf("writing eval log: %v", err)
	}
	fmt.Printf("wrote %s and %s\n", bestPath, logPath)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

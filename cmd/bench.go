package cmd

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/hawkes/hph"
)

var (
	benchDimension  int   // Spatial dimension of the synthetic events
	benchEvents     int   // Number of synthetic events
	benchSeed       int64 // Seed for the synthetic events
	benchIterations int   // Evaluations per engine variant
	benchThreads    int   // Worker threads for parallel variants
	benchWidth      int   // Vector width, 0 detects from the CPU
)

// BenchVariant is one engine configuration measured by the bench command.
type BenchVariant struct {
	Name       string
	Engine     EngineConfig
	Likelihood time.Duration // mean per evaluation
	Gradient   time.Duration // mean per evaluation
	LogLik     float64
}

func benchVariants(threads, width int) []BenchVariant {
	return []BenchVariant{
		{Name: "sequential", Engine: EngineConfig{VectorWidth: width}},
		{Name: "parallel", Engine: EngineConfig{Parallel: true, Threads: threads, VectorWidth: width}},
		{Name: "sequential+cache", Engine: EngineConfig{PairCache: true, VectorWidth: width}},
		{Name: "parallel+cache", Engine: EngineConfig{Parallel: true, PairCache: true, Threads: threads, VectorWidth: width}},
	}
}

// runBench times likelihood and gradient evaluations for every variant over
// the same synthetic events. Evaluations are also recorded into reg.
func runBench(dim, n int, seed int64, iterations, threads, width int, reg prometheus.Registerer) ([]BenchVariant, error) {
	metrics := hph.NewMetrics(reg)
	variants := benchVariants(threads, width)
	grad := make([]float64, hph.ParameterCount)

	for v := range variants {
		sc := syntheticScenario(dim, n, seed, variants[v].Engine)
		e, _, err := buildEngine(sc, hph.WithMetrics(metrics))
		if err != nil {
			return nil, err
		}

		start := time.Now()
		for i := 0; i < iterations; i++ {
			if variants[v].LogLik, err = e.SumOfLikContribs(); err != nil {
				e.Close()
				return nil, err
			}
		}
		variants[v].Likelihood = time.Since(start) / time.Duration(iterations)

		start = time.Now()
		for i := 0; i < iterations; i++ {
			if err := e.LogLikelihoodGradient(grad); err != nil {
				e.Close()
				return nil, err
			}
		}
		variants[v].Gradient = time.Since(start) / time.Duration(iterations)
		e.Close()

		logrus.WithFields(logrus.Fields{
			"variant":    variants[v].Name,
			"likelihood": variants[v].Likelihood,
			"gradient":   variants[v].Gradient,
		}).Debug("variant measured")
	}
	return variants, nil
}

// printBench writes a table of timings and the largest log-likelihood
// deviation from the sequential variant.
func printBench(w io.Writer, dim, n int, variants []BenchVariant) {
	fmt.Fprintf(w, "=== Hawkes benchmark: N=%d, D=%d ===\n", n, dim)
	fmt.Fprintf(w, "%-18s %14s %14s %22s\n", "variant", "likelihood/op", "gradient/op", "log-likelihood")
	var maxDev float64
	for _, v := range variants {
		fmt.Fprintf(w, "%-18s %14v %14v %22.12f\n", v.Name, v.Likelihood, v.Gradient, v.LogLik)
		maxDev = math.Max(maxDev, math.Abs(v.LogLik-variants[0].LogLik))
	}
	fmt.Fprintf(w, "max deviation from sequential: %.3g\n", maxDev)
}

// printEvaluationCounts writes the evaluation counters gathered from g.
func printEvaluationCounts(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if mf.GetName() != "hawkes_evaluations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(w, "evaluations%s: %.0f\n", labels, m.GetCounter().GetValue())
		}
	}
	return nil
}

// benchCmd compares reduction strategies and the pairwise cache
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time likelihood and gradient evaluation across engine variants",
	Run: func(cmd *cobra.Command, args []string) {
		if benchIterations < 1 {
			logrus.Fatalf("--iterations must be >= 1, got %d", benchIterations)
		}
		reg := prometheus.NewRegistry()
		variants, err := runBench(benchDimension, benchEvents, benchSeed, benchIterations, benchThreads, benchWidth, reg)
		if err != nil {
			logrus.Fatalf("Benchmark failed: %v", err)
		}
		printBench(cmd.OutOrStdout(), benchDimension, benchEvents, variants)
		if err := printEvaluationCounts(cmd.OutOrStdout(), reg); err != nil {
			logrus.Fatalf("Failed to gather metrics: %v", err)
		}
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchDimension, "dimension", 2, "Spatial dimension of the synthetic events")
	benchCmd.Flags().IntVar(&benchEvents, "events", 1000, "Number of synthetic events")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "Seed for synthetic event generation")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 10, "Evaluations per engine variant")
	benchCmd.Flags().IntVar(&benchThreads, "threads", 0, "Worker threads for parallel variants (0 = hardware default)")
	benchCmd.Flags().IntVar(&benchWidth, "width", 0, "Vector width 1, 2, 4 or 8 (0 = detect)")
}

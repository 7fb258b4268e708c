package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// trackedBenchmarks lists the root package benchmarks guarded against
// regression and the units compared for each.
var trackedBenchmarks = map[string][]string{
	"BenchmarkValidateAccess":                {"ns/op", "allocs/op"},
	"BenchmarkValidateAccessMemoryBlacklist": {"ns/op", "allocs/op"},
	"BenchmarkRefresh":                       {"ns/op"},
	"BenchmarkLogin":                         {"ns/op"},
}

type sampleSet map[string]map[string][]float64

var benchCompareFlags struct {
	threshold float64
}

var benchCompareCmd = &cobra.Command{
	Use:   "bench-compare <baseline> <candidate>",
	Short: "Fail when `go test -bench` output regresses against a baseline",
	Long: `Compare the medians of the tracked benchmarks in two files produced by
go test -bench (run with -count for stable medians). The command fails when
any metric grows by more than --threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchCompareFlags.threshold < 0 {
			return fmt.Errorf("--threshold must be >= 0")
		}
		baseline, err := parseBenchmarkFile(args[0])
		if err != nil {
			return fmt.Errorf("parse baseline: %w", err)
		}
		candidate, err := parseBenchmarkFile(args[1])
		if err != nil {
			return fmt.Errorf("parse candidate: %w", err)
		}

		failures := compareBenchmarks(cmd.OutOrStdout(), baseline, candidate, benchCompareFlags.threshold)
		if len(failures) > 0 {
			return fmt.Errorf("performance regression threshold exceeded:\n  - %s", strings.Join(failures, "\n  - "))
		}
		return nil
	},
}

func init() {
	benchCompareCmd.Flags().Float64Var(&benchCompareFlags.threshold, "threshold", 0.30, "maximum allowed regression ratio (0.30 = +30%)")
	rootCmd.AddCommand(benchCompareCmd)
}

func compareBenchmarks(out io.Writer, baseline, candidate sampleSet, threshold float64) []string {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(out, "benchmark metric baseline candidate delta")
	for _, name := range names {
		for _, unit := range trackedBenchmarks[name] {
			base := baseline[name][unit]
			cand := candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian, candMedian := median(base), median(cand)
			if baseMedian <= 0 {
				failures = append(failures, fmt.Sprintf("invalid baseline median for %s %s", name, unit))
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", name, unit, baseMedian, candMedian, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchmarks(file)
}

func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_ExtremeOutlier(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10, 1000}

	s := Summarize(values)

	assert.Equal(t, 10.0, s.Mean)
	assert.Equal(t, 10.0, s.Median)
	assert.Equal(t, 0.0, s.Stddev)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 1000.0, s.Max, "max must come from unfiltered values")
	assert.Equal(t, 7, s.Runs)
	assert.Equal(t, 10.0, s.CI95Lower)
	assert.Equal(t, 10.0, s.CI95Upper)
}

func TestSummarize_SmallSampleNotFiltered(t *testing.T) {
	values := []float64{1, 2, 3, 4, 500, 6}

	s := Summarize(values)

	assert.Equal(t, 6, s.Runs)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 500.0, s.Max)
	// mean of all six values: 516 / 6
	assert.Equal(t, 86.0, s.Mean)
	// even count: average of the two middle values (3, 4)
	assert.Equal(t, 4.0, s.Median)
}

func TestSummarize_MedianEvenCount(t *testing.T) {
	s := SummarizeFloat([]float64{0.1, 0.2, 0.3, 0.4})
	assert.Equal(t, 0.25, s.Median)
}

func TestSummarize_PopulationStddev(t *testing.T) {
	// population stddev of {2,4,4,4,5,5,7,9} is exactly 2
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 2.0, s.Stddev)
	assert.Equal(t, 5.0, s.Mean)
	// margin = 1.96 * 2 / sqrt(8) = 1.386
	assert.Equal(t, 4.0, s.CI95Lower)
	assert.Equal(t, 6.0, s.CI95Upper)
}

func TestSummarize_BimodalKeepsEverything(t *testing.T) {
	values := []float64{1, 1, 1, 1, 100, 100, 100, 100}
	// q1 = 1, q3 = 100: neither cluster is treated as outliers
	assert.Equal(t, values, removeOutliers(values))

	s := Summarize(values)
	assert.Equal(t, 8, s.Runs)
	assert.Equal(t, 51.0, s.Mean)
}

func TestRemoveOutliers_ClusteredMinority(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5, 90, 95}
	filtered := removeOutliers(values)
	assert.Len(t, filtered, 7)
	assert.NotContains(t, filtered, 90.0)
}

func TestSummarize_RunsAlwaysInputLength(t *testing.T) {
	inputs := [][]float64{
		{},
		{42},
		{1, 2},
		{3, 3, 3, 3, 3, 3, 3, 3, 3, 9000},
	}
	for _, in := range inputs {
		assert.Equal(t, len(in), Summarize(in).Runs)
		assert.Equal(t, len(in), SummarizeFloat(in).Runs)
	}
}

func TestSummarize_CIBracketsMean(t *testing.T) {
	inputs := [][]float64{
		{1},
		{1200, 1350, 1100, 1600, 1280},
		{0.01, 0.2, 0.031, 0.0, 0.15, 0.09, 0.12},
		{10, 12, 11, 13, 900, 10, 12, 14, 11, 10},
	}
	for _, in := range inputs {
		for _, s := range []StatisticalSummary{Summarize(in), SummarizeFloat(in)} {
			assert.LessOrEqual(t, s.CI95Lower, s.Mean)
			assert.LessOrEqual(t, s.Mean, s.CI95Upper)
		}
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	values := []float64{140, 152, 133, 990, 141, 150, 147, 138}
	original := append([]float64(nil), values...)

	a := Summarize(values)
	b := Summarize(values)

	assert.Equal(t, a, b)
	assert.Equal(t, original, values, "input must not be reordered")
}

func TestSummarizeFloat_Precision(t *testing.T) {
	s := SummarizeFloat([]float64{0.12345, 0.12345})
	assert.Equal(t, 0.123, s.Mean)
	assert.Equal(t, 0.123, s.Max)

	i := Summarize([]float64{100.4, 100.4})
	assert.Equal(t, 100.0, i.Mean)
}

func TestSummarize_FractionalExtremesKept(t *testing.T) {
	s := Summarize([]float64{12.4, 87.6, 40.2})
	assert.Equal(t, 12.4, s.Min, "min 为真实最小值")
	assert.Equal(t, 87.6, s.Max, "max 为真实最大值")
	assert.Equal(t, 40.0, s.Median)
	assert.Equal(t, 47.0, s.Mean)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, StatisticalSummary{}, Summarize(nil))
}

package main

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// ===============================
// 统计计算
// ===============================

const (
	// 少于该样本数时四分位估计不可靠，不做离群值过滤
	minOutlierSamples = 7
	iqrFactor         = 1.5
	z95               = 1.96
)

// precision 各统计量保留的小数位
type precision struct {
	value  int // mean / median / CI
	stddev int
	// 整数变体的 min / max 取原始值，不做取整
	roundExtremes bool
}

var (
	// 字节数、毫秒耗时
	integerPrecision = precision{value: 0, stddev: 1}
	// CLS 等小数值指标
	floatPrecision = precision{value: 3, stddev: 3, roundExtremes: true}
)

// Summarize 整数精度汇总（字节数与毫秒耗时）
func Summarize(values []float64) StatisticalSummary {
	return summarize(values, integerPrecision)
}

// SummarizeFloat 三位小数精度汇总（CLS）
func SummarizeFloat(values []float64) StatisticalSummary {
	return summarize(values, floatPrecision)
}

func summarize(values []float64, p precision) StatisticalSummary {
	summary := StatisticalSummary{Runs: len(values)}
	if len(values) == 0 {
		return summary
	}

	cleaned := removeOutliers(values)
	n := float64(len(cleaned))

	// 输入非空时 stats 不会返回错误
	mean, _ := stats.Mean(cleaned)
	median, _ := stats.Median(cleaned)
	stddev, _ := stats.StandardDeviationPopulation(cleaned)
	minV, _ := stats.Min(values)
	maxV, _ := stats.Max(values)

	margin := z95 * stddev / math.Sqrt(n)

	summary.Mean = round(mean, p.value)
	summary.Median = round(median, p.value)
	summary.Stddev = round(stddev, p.stddev)
	summary.Min, summary.Max = minV, maxV
	if p.roundExtremes {
		summary.Min = round(minV, p.value)
		summary.Max = round(maxV, p.value)
	}
	summary.CI95Lower = round(mean-margin, p.value)
	summary.CI95Upper = round(mean+margin, p.value)
	return summary
}

// removeOutliers IQR 规则过滤离群值。
// 若过滤后剩余不足一半，则放弃过滤，返回原始数据。
func removeOutliers(values []float64) []float64 {
	if len(values) < minOutlierSamples {
		return values
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := sorted[int(math.Floor(float64(len(sorted))*0.25))]
	q3 := sorted[int(math.Floor(float64(len(sorted))*0.75))]
	iqr := q3 - q1
	lower := q1 - iqrFactor*iqr
	upper := q3 + iqrFactor*iqr

	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			filtered = append(filtered, v)
		}
	}

	if float64(len(filtered)) < float64(len(values))/2 {
		return values
	}
	return filtered
}

func round(v float64, places int) float64 {
	r, err := stats.Round(v, places)
	if err != nil {
		return v
	}
	return r
}

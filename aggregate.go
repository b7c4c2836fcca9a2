package main

import (
	"math"
	"time"
)

// ===============================
// 单元聚合
// ===============================

// BuildCellStats 把一个单元的原始样本归约为报告中的一行
func BuildCellStats(target MeasurementTarget, mode CacheMode, samples []RawRunSample) AggregatedCellStats {
	pick := func(f func(RawRunSample) float64) []float64 {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = f(s)
		}
		return values
	}

	cell := AggregatedCellStats{
		Framework:         target.FrameworkName,
		Page:              target.PageKind,
		CacheMode:         mode,
		JSTransferred:     Summarize(pick(func(s RawRunSample) float64 { return s.JSTransferred })),
		JSUncompressed:    Summarize(pick(func(s RawRunSample) float64 { return s.JSUncompressed })),
		CSSTransferred:    Summarize(pick(func(s RawRunSample) float64 { return s.CSSTransferred })),
		CSSUncompressed:   Summarize(pick(func(s RawRunSample) float64 { return s.CSSUncompressed })),
		TotalTransferred:  Summarize(pick(func(s RawRunSample) float64 { return s.TotalTransferred })),
		TotalUncompressed: Summarize(pick(func(s RawRunSample) float64 { return s.TotalUncompressed })),
		FCP:               Summarize(pick(func(s RawRunSample) float64 { return s.WebVitals.FCP })),
		LCP:               Summarize(pick(func(s RawRunSample) float64 { return s.WebVitals.LCP })),
		CLS:               SummarizeFloat(pick(func(s RawRunSample) float64 { return s.WebVitals.CLS })),
		TTFB:              Summarize(pick(func(s RawRunSample) float64 { return s.WebVitals.TTFB })),
		ScriptEvalTime:    Summarize(pick(func(s RawRunSample) float64 { return s.ScriptEvaluation.TotalScriptEvalTime })),
		JSParseTime:       Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.JSParseTime })),
		JSCompileTime:     Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.JSCompileTime })),
		JSExecutionTime:   Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.JSExecutionTime })),
		CSSParseTime:      Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.CSSParseTime })),
		StyleRecalcTime:   Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.StyleRecalcTime })),
		ParseCompileTotal: Summarize(pick(func(s RawRunSample) float64 { return s.ParseCompile.Total })),
		ResourceCount:     Summarize(pick(func(s RawRunSample) float64 { return float64(s.ResourceCount) })),
		PerformanceScore:  Summarize(pick(func(s RawRunSample) float64 { return PerformanceScore(s.WebVitals) })),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}

	cell.JSToTotalRatio = percentOf(cell.JSTransferred.Median, cell.TotalTransferred.Median)
	if cell.JSUncompressed.Median > 0 {
		cell.CompressionRatio = clampPercent(math.Round((1 - cell.JSTransferred.Median/cell.JSUncompressed.Median) * 100))
	}
	return cell
}

// percentOf part/whole 的整数百分比，whole 为 0 时返回 0
func percentOf(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return clampPercent(math.Round(part / whole * 100))
}

func clampPercent(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v)
}

// ===============================
// 性能得分
// ===============================

// 与 Lighthouse 相同的对数正态评分常数
const inverseErfcOneFifth = 0.9061938024368232

type scoreCurve struct {
	p10    float64
	median float64
	weight float64
}

var (
	fcpCurve = scoreCurve{p10: 1800, median: 3000, weight: 10}
	lcpCurve = scoreCurve{p10: 2500, median: 4000, weight: 25}
	clsCurve = scoreCurve{p10: 0.1, median: 0.25, weight: 25}
)

// PerformanceScore 单次运行的加权得分（0..100）。
// 只覆盖实验室能测到的 FCP / LCP / CLS，权重按 Lighthouse 比例重新归一化。
func PerformanceScore(v WebVitals) float64 {
	curves := []struct {
		c     scoreCurve
		value float64
	}{
		{fcpCurve, v.FCP},
		{lcpCurve, v.LCP},
		{clsCurve, v.CLS},
	}

	var weighted, total float64
	for _, m := range curves {
		weighted += m.c.weight * logNormalScore(m.c, m.value)
		total += m.c.weight
	}
	return math.Round(weighted / total * 100)
}

// logNormalScore value 等于 p10 时得 0.9，等于 median 时得 0.5
func logNormalScore(c scoreCurve, value float64) float64 {
	if value <= 0 {
		return 1
	}
	xLogRatio := math.Log(value / c.median)
	p10LogRatio := -math.Log(c.p10 / c.median)
	standardized := xLogRatio * inverseErfcOneFifth / p10LogRatio
	score := math.Erfc(standardized) / 2
	return math.Min(1, math.Max(0, score))
}

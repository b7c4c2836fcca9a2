package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartScale(t *testing.T) {
	assert.Equal(t, 1.0, chartScale(), "无数据时至少为 1")
	assert.Equal(t, 1.0, chartScale(0, 0))
	assert.InDelta(t, 110.0, chartScale(100), 1e-9, "不取整，避免浮点误差把 110 抬到 111")
	assert.InDelta(t, 2200.0, chartScale(1000, 2000), 1e-9)
	assert.InDelta(t, 11.55, chartScale(10.5), 1e-9)
	assert.InDelta(t, 0.33, chartScale(0.3), 1e-9)
}

func TestBundleComparisonChart_Geometry(t *testing.T) {
	cells := []AggregatedCellStats{
		testCell("solid", PageBoard, CacheCold, 1000, 2000, 99),
	}

	svg, err := BundleComparisonChart(cells, "Bundle", "sub")
	require.NoError(t, err)
	out := string(svg)

	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, `viewBox="0 0 800 500"`)
	// 上限 2200，绘图区高 320：原始 2000 -> 290.91，压缩后 1000 -> 145.45
	assert.Contains(t, out, `height="290.91"`)
	assert.Contains(t, out, `height="145.45"`)
	// 单组宽 650，柱宽上限 24
	assert.Contains(t, out, `width="24.00"`)
	assert.Equal(t, 6, strings.Count(out, "<line "), "5 条网格线加 0 刻度")
	assert.Contains(t, out, ">Compressed<")
	assert.Contains(t, out, ">Raw<")
	assert.Contains(t, out, "rotate(-45, 325.00, 335.00)")
}

func TestBundleComparisonChart_EscapesNames(t *testing.T) {
	cells := []AggregatedCellStats{
		testCell("<b>&co", PageBoard, CacheCold, 1000, 2000, 99),
	}

	svg, err := BundleComparisonChart(cells, "A & B", "")
	require.NoError(t, err)

	assert.Contains(t, string(svg), "&lt;b&gt;&amp;co")
	assert.Contains(t, string(svg), "A &amp; B")
	assert.NotContains(t, string(svg), "<b>")
}

func TestBundleComparisonChart_Empty(t *testing.T) {
	_, err := BundleComparisonChart(nil, "Bundle", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMetricBarChart(t *testing.T) {
	cells := []AggregatedCellStats{
		testCell("react", PageBoard, CacheCold, 60000, 200000, 70),
		testCell("vue", PageBoard, CacheCold, 40000, 120000, 85),
	}

	svg, err := MetricBarChart(cells, "LCP", "ms", func(c AggregatedCellStats) float64 { return c.LCP.Median })
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	_, err = MetricBarChart(nil, "LCP", "ms", func(c AggregatedCellStats) float64 { return 0 })
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

package main

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCell(framework string, page PageKind, mode CacheMode, jsT, jsU, score float64) AggregatedCellStats {
	return AggregatedCellStats{
		Framework:        framework,
		Page:             page,
		CacheMode:        mode,
		JSTransferred:    StatisticalSummary{Median: jsT, Runs: 10},
		JSUncompressed:   StatisticalSummary{Median: jsU, Runs: 10},
		CompressionRatio: clampPercent(math.Round((1 - jsT/jsU) * 100)),
		FCP:              StatisticalSummary{Median: 800, Runs: 10},
		LCP:              StatisticalSummary{Median: 1000 + jsT/100, Runs: 10},
		CLS:              StatisticalSummary{Median: 0.012, Runs: 10},
		ResourceCount:    StatisticalSummary{Median: 6, Runs: 10},
		PerformanceScore: StatisticalSummary{Median: score, Runs: 10},
	}
}

func testCells() []AggregatedCellStats {
	return []AggregatedCellStats{
		testCell("react", PageBoard, CacheCold, 60000, 200000, 70),
		testCell("svelte", PageBoard, CacheCold, 20000, 60000, 95),
		testCell("vue", PageBoard, CacheCold, 40000, 120000, 85),
		testCell("react", PageBoard, CacheWarm, 1000, 200000, 90),
		testCell("react", PageHome, CacheCold, 50000, 180000, 75),
		testCell("svelte", PageHome, CacheCold, 15000, 50000, 96),
	}
}

func testMetas() []ReportMetadata {
	return []ReportMetadata{
		{FrameworkName: "react", URL: "http://localhost:3000", RunsPerPage: 10, ConnectionType: "cellular4g", CPUThrottling: "1x", MeasurementType: measurementType, Tool: toolName},
		{FrameworkName: "svelte", URL: "http://localhost:3001", RunsPerPage: 10, ConnectionType: "cellular4g", CPUThrottling: "1x", MeasurementType: measurementType, Tool: toolName},
		{FrameworkName: "vue", URL: "http://localhost:3002", RunsPerPage: 10, ConnectionType: "cellular4g", CPUThrottling: "1x", MeasurementType: measurementType, Tool: toolName},
	}
}

var reportTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// section 截取某个二级标题下的内容
func section(t *testing.T, markdown, title string) string {
	t.Helper()
	start := strings.Index(markdown, "## "+title)
	require.GreaterOrEqual(t, start, 0, "缺少章节 %s", title)
	rest := markdown[start+3:]
	if end := strings.Index(rest, "\n## "); end >= 0 {
		return rest[:end]
	}
	return rest
}

func assertOrder(t *testing.T, text string, names ...string) {
	t.Helper()
	last := -1
	for _, n := range names {
		idx := strings.Index(text, n)
		require.GreaterOrEqual(t, idx, 0, "缺少 %s", n)
		assert.Greater(t, idx, last, "%s 顺序错误", n)
		last = idx
	}
}

func TestBuildReport_JSON(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	var report AggregateReport
	require.NoError(t, json.Unmarshal(artifacts.JSON, &report))

	assert.Equal(t, "2026-03-01T12:00:00Z", report.Metadata.Timestamp)
	assert.Equal(t, 3, report.Metadata.FrameworkCount)
	assert.Equal(t, 10, report.Metadata.RunsPerPage)
	assert.Equal(t, "cold-warm", report.Metadata.MeasurementType)
	assert.Equal(t, "chromedp", report.Metadata.Tool)
	assert.Len(t, report.Results, 6)
	assert.Len(t, report.Frameworks, 3)
}

func TestBuildReport_EmptyInput(t *testing.T) {
	artifacts, err := BuildReport(nil, nil, reportTime)
	require.NoError(t, err)

	assert.Empty(t, artifacts.Charts, "没有 board/cold 数据时不生成图表")
	assert.Contains(t, string(artifacts.JSON), `"results": []`)
	assert.Contains(t, string(artifacts.Markdown), "# Framework Performance Comparison")
}

func TestBuildReport_BundleTableSortedAscending(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	md := string(artifacts.Markdown)
	board := section(t, md, "Board Page Bundle Size (cold-load)")
	assertOrder(t, board, "svelte", "vue", "react")
	assert.Contains(t, board, "Compressed (kB)")
	assert.Contains(t, board, "58.6 ±0.0", "react 压缩后 60000 B = 58.6 kB")
	assert.Contains(t, board, "70%", "react 压缩率")

	home := section(t, md, "Home Page Bundle Size (cold-load)")
	assertOrder(t, home, "svelte", "react")
	assert.NotContains(t, home, "vue")
}

func TestMarkdownTable_KeepsHeaderAndEscapesPipes(t *testing.T) {
	out := markdownTable(
		[]string{"Framework", "FCP (ms)"},
		[][]string{{"solid|start", "812 ±4"}},
	)

	assert.Contains(t, out, "Framework")
	assert.Contains(t, out, "FCP (ms)")
	assert.NotContains(t, out, "FRAMEWORK", "表头保持原样")
	assert.Contains(t, out, `solid\|start`)
	var header, row string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Framework"):
			header = line
		case strings.Contains(line, "solid"):
			row = line
		}
	}
	assert.Equal(t, strings.Count(header, "|")+1, strings.Count(row, "|"), "转义后的竖线不新增列")
}

func TestBuildReport_FrameworkDetailsEscapesURL(t *testing.T) {
	metas := testMetas()
	metas[0].URL = "http://localhost:3000/?a=1|2"

	artifacts, err := BuildReport(testCells(), metas, reportTime)
	require.NoError(t, err)

	details := section(t, string(artifacts.Markdown), "Framework Details")
	assert.Contains(t, details, `http://localhost:3000/?a=1\|2`)
}

func TestBuildReport_SectionOrder(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	assertOrder(t, string(artifacts.Markdown),
		"## Methodology",
		"## Board Page Bundle Size (cold-load)",
		"## Board Page Bundle Size (warm-load)",
		"## Home Page Bundle Size (cold-load)",
		"## Board Page Core Web Vitals (cold-load)",
		"## Framework Details",
	)
	assert.NotContains(t, string(artifacts.Markdown), "Home Page Bundle Size (warm-load)", "空表不输出")
}

func TestBuildReport_VitalsSortedByScore(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	vitals := section(t, string(artifacts.Markdown), "Board Page Core Web Vitals (cold-load)")
	assertOrder(t, vitals, "svelte", "vue", "react")
	assert.Contains(t, vitals, "0.012", "CLS 保留三位小数")
}

func TestBuildReport_Charts(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	require.Contains(t, artifacts.Charts, bundleChartFile)
	require.Contains(t, artifacts.Charts, lcpChartFile)

	bundle := string(artifacts.Charts[bundleChartFile])
	assert.Equal(t, 3, strings.Count(bundle, "rotate(-45,"), "每个 board/cold 框架一个标签")
	assertOrder(t, bundle, ">svelte<", ">vue<", ">react<")
	assert.Contains(t, string(artifacts.Charts[lcpChartFile]), "<svg")
}

func TestBuildReport_BundleSummary(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	var summary bundleSummary
	require.NoError(t, json.Unmarshal(artifacts.BundleSummary, &summary))

	require.Len(t, summary.BoardPage, 3)
	assert.Equal(t, "svelte", summary.BoardPage[0].Framework)
	assert.Equal(t, 20000.0, summary.BoardPage[0].JSTransferred)
	assert.Equal(t, 67, summary.BoardPage[0].CompressionRatio)
	assert.Equal(t, 6.0, summary.BoardPage[0].Requests)
	require.Len(t, summary.HomePage, 2)
}

func TestBuildReport_HTML(t *testing.T) {
	artifacts, err := BuildReport(testCells(), testMetas(), reportTime)
	require.NoError(t, err)

	html := string(artifacts.HTML)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "rotate(-45,", "SVG 直接嵌入")
	assert.Contains(t, html, `id="board-page-bundle-size-cold-load"`)
	assert.Contains(t, html, "http://localhost:3002")
}

func TestSortByBundle_DoesNotMutateInput(t *testing.T) {
	cells := testCells()[:3]
	sorted := sortByBundle(cells)

	assert.Equal(t, "react", cells[0].Framework)
	assert.Equal(t, "svelte", sorted[0].Framework)
}

func TestPrintSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	printSummaryTable(&buf, testCells()[:1])

	out := buf.String()
	assert.Contains(t, out, "react")
	assert.Contains(t, out, "58.6")
	assert.Contains(t, out, "195.3")
}

func TestPrintProbeTable(t *testing.T) {
	var buf bytes.Buffer
	printProbeTable(&buf, []ProbeSummary{{
		Framework: "react", Page: PageHome, Protocol: "HTTP/2",
		TotalTests: 5, SuccessCount: 4, FailCount: 1,
		TTFB: StatisticalSummary{Mean: 12, Median: 11}, TTFBP90: 20.5,
	}})

	out := buf.String()
	assert.Contains(t, out, "HTTP/2")
	assert.Contains(t, out, "4/5")
	assert.Contains(t, out, "20.50")
}

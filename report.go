package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// ===============================
// 报告生成
// ===============================

// 聚合产物文件名
const (
	finalJSONFile     = "final-measurements.json"
	finalMarkdownFile = "final-measurements.md"
	finalHTMLFile     = "final-measurements.html"
	bundleSummaryFile = "bundle-summary.json"
	bundleChartFile   = "bundle-size-comparison.svg"
	lcpChartFile      = "lcp-comparison.svg"
)

// AggregateMetadata 聚合报告元数据
type AggregateMetadata struct {
	Timestamp       string `json:"timestamp"`
	FrameworkCount  int    `json:"frameworkCount"`
	RunsPerPage     int    `json:"runsPerPage"`
	MeasurementType string `json:"measurementType"`
	ConnectionType  string `json:"connectionType"`
	CPUThrottling   string `json:"cpuThrottling"`
	Tool            string `json:"tool"`
}

// AggregateReport final-measurements.json 的结构
type AggregateReport struct {
	Metadata   AggregateMetadata     `json:"metadata"`
	Frameworks []ReportMetadata      `json:"frameworks"`
	Results    []AggregatedCellStats `json:"results"`
}

// Artifacts 报告产物，由调用方负责写入
type Artifacts struct {
	JSON          []byte
	Markdown      []byte
	BundleSummary []byte
	HTML          []byte
	Charts        map[string][]byte
}

// BuildReport 把所有单元汇总为 JSON / Markdown / SVG / HTML。
// 纯转换，不做任何 I/O。
func BuildReport(cells []AggregatedCellStats, frameworks []ReportMetadata, now time.Time) (*Artifacts, error) {
	report := AggregateReport{
		Metadata:   aggregateMetadata(frameworks, now),
		Frameworks: frameworks,
		Results:    cells,
	}
	if report.Frameworks == nil {
		report.Frameworks = []ReportMetadata{}
	}
	if report.Results == nil {
		report.Results = []AggregatedCellStats{}
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSON 序列化失败: %w", err)
	}

	summary, err := json.MarshalIndent(buildBundleSummary(cells, now), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSON 序列化失败: %w", err)
	}

	charts, err := buildCharts(cells)
	if err != nil {
		return nil, err
	}

	markdown := buildMarkdown(report)

	html, err := renderHTML(report, markdownSections(cells), charts)
	if err != nil {
		return nil, err
	}

	return &Artifacts{
		JSON:          jsonData,
		Markdown:      []byte(markdown),
		BundleSummary: summary,
		HTML:          html,
		Charts:        charts,
	}, nil
}

func aggregateMetadata(frameworks []ReportMetadata, now time.Time) AggregateMetadata {
	meta := AggregateMetadata{
		Timestamp:       now.UTC().Format(time.RFC3339),
		FrameworkCount:  len(frameworks),
		RunsPerPage:     10,
		MeasurementType: measurementType,
		ConnectionType:  DefaultNetwork,
		CPUThrottling:   "1x",
		Tool:            toolName,
	}
	if len(frameworks) > 0 {
		first := frameworks[0]
		meta.RunsPerPage = first.RunsPerPage
		if first.MeasurementType != "" {
			meta.MeasurementType = first.MeasurementType
		}
		if first.ConnectionType != "" {
			meta.ConnectionType = first.ConnectionType
		}
		if first.CPUThrottling != "" {
			meta.CPUThrottling = first.CPUThrottling
		}
	}
	return meta
}

// ---------- 选择与排序 ----------

func cellsFor(cells []AggregatedCellStats, page PageKind, mode CacheMode) []AggregatedCellStats {
	out := make([]AggregatedCellStats, 0, len(cells))
	for _, c := range cells {
		if c.Page == page && c.CacheMode == mode {
			out = append(out, c)
		}
	}
	return out
}

// sortByBundle 按压缩后 JS 体积升序
func sortByBundle(cells []AggregatedCellStats) []AggregatedCellStats {
	sorted := append([]AggregatedCellStats(nil), cells...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].JSTransferred.Median != sorted[j].JSTransferred.Median {
			return sorted[i].JSTransferred.Median < sorted[j].JSTransferred.Median
		}
		return sorted[i].Framework < sorted[j].Framework
	})
	return sorted
}

// sortByScore 按性能得分降序
func sortByScore(cells []AggregatedCellStats) []AggregatedCellStats {
	sorted := append([]AggregatedCellStats(nil), cells...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PerformanceScore.Median != sorted[j].PerformanceScore.Median {
			return sorted[i].PerformanceScore.Median > sorted[j].PerformanceScore.Median
		}
		return sorted[i].Framework < sorted[j].Framework
	})
	return sorted
}

// ---------- Markdown ----------

var (
	reportPages = []PageKind{PageBoard, PageHome}
	reportModes = []CacheMode{CacheCold, CacheWarm}
)

func pageTitle(page PageKind) string {
	if page == PageHome {
		return "Home Page"
	}
	return "Board Page"
}

func formatKB(bytes float64) string {
	return fmt.Sprintf("%.1f", bytes/1024)
}

func medianPM(s StatisticalSummary, decimals int) string {
	return fmt.Sprintf("%.*f ±%.*f", decimals, s.Median, decimals, s.Stddev)
}

// markdownTable 以 markdown 渲染器输出表格
// WithHeader 会立即格式化表头，所以关闭自动格式化必须排在它前面
func markdownTable(header []string, rows [][]string) string {
	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithHeader(header),
	)
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = escapeMarkdownCell(c)
		}
		table.Append(cells)
	}
	table.Render()
	return buf.String()
}

// escapeMarkdownCell 转义单元格中的竖线，避免框架名或 URL 打乱列
func escapeMarkdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// reportSection 报告中的一个表格
type reportSection struct {
	Title  string
	Header []string
	Rows   [][]string
}

func bundleSection(cells []AggregatedCellStats, page PageKind, mode CacheMode) reportSection {
	s := reportSection{
		Title:  fmt.Sprintf("%s Bundle Size (%s-load)", pageTitle(page), mode),
		Header: []string{"Framework", "Compressed (kB)", "Raw (kB)", "Compression", "Perf Score", "FCP (ms)", "LCP (ms)"},
	}
	for _, r := range sortByBundle(cellsFor(cells, page, mode)) {
		s.Rows = append(s.Rows, []string{
			r.Framework,
			fmt.Sprintf("%s ±%s", formatKB(r.JSTransferred.Median), formatKB(r.JSTransferred.Stddev)),
			fmt.Sprintf("%s ±%s", formatKB(r.JSUncompressed.Median), formatKB(r.JSUncompressed.Stddev)),
			fmt.Sprintf("%d%%", r.CompressionRatio),
			medianPM(r.PerformanceScore, 0),
			medianPM(r.FCP, 0),
			medianPM(r.LCP, 0),
		})
	}
	return s
}

func vitalsSection(cells []AggregatedCellStats, page PageKind, mode CacheMode) reportSection {
	s := reportSection{
		Title:  fmt.Sprintf("%s Core Web Vitals (%s-load)", pageTitle(page), mode),
		Header: []string{"Framework", "Perf Score", "FCP (ms)", "LCP (ms)", "CLS", "TTFB (ms)", "Script Eval (ms)"},
	}
	for _, r := range sortByScore(cellsFor(cells, page, mode)) {
		s.Rows = append(s.Rows, []string{
			r.Framework,
			medianPM(r.PerformanceScore, 0),
			medianPM(r.FCP, 0),
			medianPM(r.LCP, 0),
			medianPM(r.CLS, 3),
			medianPM(r.TTFB, 0),
			medianPM(r.ScriptEvalTime, 0),
		})
	}
	return s
}

func parseCompileSection(cells []AggregatedCellStats, page PageKind) reportSection {
	s := reportSection{
		Title:  fmt.Sprintf("%s Parse / Compile (cold-load, best-effort)", pageTitle(page)),
		Header: []string{"Framework", "JS Parse", "JS Compile", "JS Execute", "CSS Parse", "Style Recalc", "Total"},
	}
	for _, r := range sortByBundle(cellsFor(cells, page, CacheCold)) {
		s.Rows = append(s.Rows, []string{
			r.Framework,
			fmt.Sprintf("%.0f", r.JSParseTime.Median),
			fmt.Sprintf("%.0f", r.JSCompileTime.Median),
			fmt.Sprintf("%.0f", r.JSExecutionTime.Median),
			fmt.Sprintf("%.0f", r.CSSParseTime.Median),
			fmt.Sprintf("%.0f", r.StyleRecalcTime.Median),
			fmt.Sprintf("%.0f", r.ParseCompileTotal.Median),
		})
	}
	return s
}

// markdownSections 所有非空表格，顺序即报告顺序
func markdownSections(cells []AggregatedCellStats) []reportSection {
	var sections []reportSection
	for _, page := range reportPages {
		for _, mode := range reportModes {
			if s := bundleSection(cells, page, mode); len(s.Rows) > 0 {
				sections = append(sections, s)
			}
		}
	}
	for _, page := range reportPages {
		for _, mode := range reportModes {
			if s := vitalsSection(cells, page, mode); len(s.Rows) > 0 {
				sections = append(sections, s)
			}
		}
	}
	for _, page := range reportPages {
		if s := parseCompileSection(cells, page); len(s.Rows) > 0 {
			sections = append(sections, s)
		}
	}
	return sections
}

func buildMarkdown(report AggregateReport) string {
	meta := report.Metadata
	var b strings.Builder

	b.WriteString("# Framework Performance Comparison\n\n")
	fmt.Fprintf(&b, "*Generated: %s*\n\n", meta.Timestamp)
	b.WriteString("## Methodology\n\n")
	fmt.Fprintf(&b, "- **Frameworks measured**: %d\n", meta.FrameworkCount)
	fmt.Fprintf(&b, "- **Runs per page**: %d (cold-load: fresh context + cleared cache per run; warm-load: one context, cache kept)\n", meta.RunsPerPage)
	fmt.Fprintf(&b, "- **Measurement type**: %s\n", meta.MeasurementType)
	fmt.Fprintf(&b, "- **Device**: Mobile (%s emulation)\n", MobileDevice.Name)
	fmt.Fprintf(&b, "- **Network**: %s\n", meta.ConnectionType)
	fmt.Fprintf(&b, "- **CPU**: %s\n", meta.CPUThrottling)
	b.WriteString("- **Statistics**: median ±std dev; IQR outlier filter applied when n >= 7; min/max keep unfiltered values\n")
	b.WriteString("- **Parse/compile**: best-effort heuristic from performance measure names, not an engine-certified metric\n\n")

	for _, s := range markdownSections(report.Results) {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		b.WriteString(markdownTable(s.Header, s.Rows))
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("**Explanation:**\n")
	b.WriteString("- **Compressed**: Bytes transferred over network (what users actually download)\n")
	b.WriteString("- **Raw**: Uncompressed bundle size (actual code volume after decompression)\n")
	b.WriteString("- **Compression**: Percentage saved by compression (higher = better compression)\n\n")

	if len(report.Frameworks) > 0 {
		b.WriteString("## Framework Details\n\n")
		rows := make([][]string, 0, len(report.Frameworks))
		for _, m := range report.Frameworks {
			rows = append(rows, []string{m.FrameworkName, m.URL, m.ConnectionType, m.CPUThrottling, m.Timestamp})
		}
		b.WriteString(markdownTable([]string{"Framework", "URL", "Network", "CPU", "Last Measured"}, rows))
		b.WriteString("\n")
	}

	return b.String()
}

// ---------- bundle-summary.json ----------

type bundleSummaryEntry struct {
	Framework        string  `json:"framework"`
	JSUncompressed   float64 `json:"jsUncompressed"`
	JSTransferred    float64 `json:"jsTransferred"`
	CompressionRatio int     `json:"compressionRatio"`
	Requests         float64 `json:"requests"`
}

type bundleSummary struct {
	Timestamp string               `json:"timestamp"`
	Note      string               `json:"note"`
	BoardPage []bundleSummaryEntry `json:"boardPage"`
	HomePage  []bundleSummaryEntry `json:"homePage"`
}

func buildBundleSummary(cells []AggregatedCellStats, now time.Time) bundleSummary {
	entries := func(page PageKind) []bundleSummaryEntry {
		out := []bundleSummaryEntry{}
		for _, c := range sortByBundle(cellsFor(cells, page, CacheCold)) {
			out = append(out, bundleSummaryEntry{
				Framework:        c.Framework,
				JSUncompressed:   c.JSUncompressed.Median,
				JSTransferred:    c.JSTransferred.Median,
				CompressionRatio: c.CompressionRatio,
				Requests:         c.ResourceCount.Median,
			})
		}
		return out
	}

	return bundleSummary{
		Timestamp: now.UTC().Format(time.RFC3339),
		Note:      "Bundle sizes use compressed (transferred) as primary metric; cold-load medians",
		BoardPage: entries(PageBoard),
		HomePage:  entries(PageHome),
	}
}

// ---------- 图表 ----------

// buildCharts board 页面 cold-load 的对比图，没有数据时返回空集合
func buildCharts(cells []AggregatedCellStats) (map[string][]byte, error) {
	charts := make(map[string][]byte)
	board := sortByBundle(cellsFor(cells, PageBoard, CacheCold))
	if len(board) == 0 {
		return charts, nil
	}

	bundle, err := BundleComparisonChart(board, "JavaScript Bundle Size Comparison", "Board page • Compressed vs Raw • Smaller is better")
	if err != nil {
		return nil, err
	}
	charts[bundleChartFile] = bundle

	lcp, err := MetricBarChart(board, "Largest Contentful Paint (board, cold)", "ms", func(c AggregatedCellStats) float64 {
		return c.LCP.Median
	})
	if err != nil {
		return nil, err
	}
	charts[lcpChartFile] = lcp
	return charts, nil
}

// ===============================
// 控制台输出
// ===============================

// printSummaryTable 打印测量汇总表格
func printSummaryTable(w io.Writer, cells []AggregatedCellStats) {
	fmt.Fprintln(w, "\n📈 汇总统计:")

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{
			"框架", "页面", "缓存", "次数",
			"JS压缩(kB)", "JS原始(kB)", "压缩率", "JS占比",
			"FCP", "LCP", "CLS", "TTFB", "得分",
		}),
	)

	for _, c := range cells {
		table.Append([]string{
			c.Framework,
			string(c.Page),
			string(c.CacheMode),
			fmt.Sprintf("%d", c.JSTransferred.Runs),
			formatKB(c.JSTransferred.Median),
			formatKB(c.JSUncompressed.Median),
			fmt.Sprintf("%d%%", c.CompressionRatio),
			fmt.Sprintf("%d%%", c.JSToTotalRatio),
			fmt.Sprintf("%.0f", c.FCP.Median),
			fmt.Sprintf("%.0f", c.LCP.Median),
			fmt.Sprintf("%.3f", c.CLS.Median),
			fmt.Sprintf("%.0f", c.TTFB.Median),
			fmt.Sprintf("%.0f", c.PerformanceScore.Median),
		})
	}

	table.Render()
	fmt.Fprintln(w, "\n💡 说明: 时间单位为毫秒(ms)，数值为中位数")
	fmt.Fprintln(w, "   - JS占比: JS 传输量占 JS+CSS 传输量的百分比")
	fmt.Fprintln(w, "   - 压缩率: 1 - 压缩后/原始")
}

// printProbeTable 打印预检汇总表格
func printProbeTable(w io.Writer, summaries []ProbeSummary) {
	fmt.Fprintln(w, "\n📈 预检汇总:")

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{
			"框架", "页面", "协议", "成功/总数",
			"TTFB均值", "TTFB-P50", "TTFB-P90", "TTFB-P99", "TTFB最小", "TTFB最大",
		}),
	)

	for _, s := range summaries {
		table.Append([]string{
			s.Framework,
			string(s.Page),
			s.Protocol,
			fmt.Sprintf("%d/%d", s.SuccessCount, s.TotalTests),
			fmt.Sprintf("%.0f", s.TTFB.Mean),
			fmt.Sprintf("%.0f", s.TTFB.Median),
			fmt.Sprintf("%.2f", s.TTFBP90),
			fmt.Sprintf("%.2f", s.TTFBP99),
			fmt.Sprintf("%.0f", s.TTFB.Min),
			fmt.Sprintf("%.0f", s.TTFB.Max),
		})
	}

	table.Render()
	fmt.Fprintln(w, "\n💡 说明: TTFB 单位为毫秒(ms)，只统计成功的请求")
}

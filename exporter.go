package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ===============================
// 报告导出模块
// ===============================

const (
	measurementType  = "cold-warm"
	toolName         = "chromedp"
	reportFileSuffix = "-playwright"
)

// NewFrameworkReport 组装单框架报告
func NewFrameworkReport(cfg *Config, cells []AggregatedCellStats, now time.Time) FrameworkReport {
	return FrameworkReport{
		Metadata: ReportMetadata{
			FrameworkName:   cfg.Name,
			URL:             cfg.URL,
			Timestamp:       now.UTC().Format(time.RFC3339),
			RunsPerPage:     cfg.Runs,
			MeasurementType: measurementType,
			ConnectionType:  cfg.Network,
			CPUThrottling:   cfg.CPU,
			Tool:            toolName,
			RunID:           uuid.NewString(),
		},
		Results: cells,
	}
}

// frameworkReportPath <dir>/<name>-playwright[_suffix].json
func frameworkReportPath(dir, name, network string) string {
	return filepath.Join(dir, name+reportFileSuffix+NetworkSuffix(network)+".json")
}

// SaveFrameworkReport 持久化单框架报告，返回文件路径
func SaveFrameworkReport(dir string, report FrameworkReport, network string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("JSON 序列化失败: %w", err)
	}

	filePath := frameworkReportPath(dir, report.Metadata.FrameworkName, network)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("写入 JSON 文件失败: %w", err)
	}
	return filePath, nil
}

// errNoReports 聚合目录里没有可用的单框架报告
var errNoReports = errors.New("no framework reports found")

// isAggregateOutput 聚合步骤自己生成的文件不作为输入
func isAggregateOutput(name string) bool {
	return name == finalJSONFile || name == bundleSummaryFile
}

// LoadFrameworkReports 读取目录下所有单框架报告。
// 无法读取或结构不符的文件只记录警告并跳过。
func LoadFrameworkReports(dir string, logger *Logger) ([]FrameworkReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取输出目录失败: %w", err)
	}

	var reports []FrameworkReport
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || isAggregateOutput(name) {
			continue
		}

		report, err := loadFrameworkReport(filepath.Join(dir, name))
		if err != nil {
			logger.Warnf("⚠️ 跳过 %s: %v", name, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func loadFrameworkReport(path string) (FrameworkReport, error) {
	var report FrameworkReport

	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := validateJSON(frameworkReportSchema, data); err != nil {
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	return report, nil
}

// CollectResults 把多份报告展开为单元列表与元数据列表，保持读取顺序
func CollectResults(reports []FrameworkReport) ([]AggregatedCellStats, []ReportMetadata) {
	var cells []AggregatedCellStats
	metas := make([]ReportMetadata, 0, len(reports))
	for _, r := range reports {
		metas = append(metas, r.Metadata)
		cells = append(cells, r.Results...)
	}
	return cells, metas
}

// WriteArtifacts 把报告产物写入目录，返回写入的文件路径
func WriteArtifacts(dir string, a *Artifacts, enableHTML bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	files := map[string][]byte{
		finalJSONFile:     a.JSON,
		finalMarkdownFile: a.Markdown,
		bundleSummaryFile: a.BundleSummary,
	}
	for name, svg := range a.Charts {
		files[name] = svg
	}
	if enableHTML && len(a.HTML) > 0 {
		files[finalHTMLFile] = a.HTML
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0644); err != nil {
			return written, fmt.Errorf("写入 %s 失败: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ===============================
// 预检报告
// ===============================

// ProbeReport 预检报告
type ProbeReport struct {
	StartTime time.Time                  `json:"start_time"`
	EndTime   time.Time                  `json:"end_time"`
	Duration  time.Duration              `json:"duration"`
	URL       string                     `json:"url"`
	Protocol  string                     `json:"protocol"`
	Count     int                        `json:"count"`
	Results   map[PageKind][]ProbeResult `json:"results"`
	Summaries []ProbeSummary             `json:"summaries"`
}

// Finalize 完成报告
func (r *ProbeReport) Finalize(summaries []ProbeSummary, results map[PageKind][]ProbeResult) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Summaries = summaries
	r.Results = results
}

// ExportProbeJSON 导出 JSON 格式预检报告到 <dir>/reports/
func ExportProbeJSON(report *ProbeReport, outputDir string) (string, error) {
	reportDir := filepath.Join(outputDir, "reports")
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	timestamp := report.StartTime.Format("2006-01-02_15-04-05")
	filePath := filepath.Join(reportDir, fmt.Sprintf("probe-%s.json", timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("JSON 序列化失败: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("写入 JSON 文件失败: %w", err)
	}
	return filePath, nil
}

// ===============================
// HTML 报告
// ===============================

type htmlChart struct {
	Name string
	SVG  template.HTML
}

type htmlReportData struct {
	Report   AggregateReport
	Device   string
	Scores   []AggregatedCellStats
	Sections []reportSection
	Charts   []htmlChart
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

var htmlFuncs = template.FuncMap{
	// 根据性能得分返回颜色类
	"scoreClass": func(score float64) string {
		if score >= 90 {
			return "perf-excellent"
		} else if score >= 75 {
			return "perf-good"
		} else if score >= 50 {
			return "perf-fair"
		}
		return "perf-poor"
	},
	// 生成安全的 HTML ID（替换特殊字符）
	"safeID": func(s string) string {
		return strings.Trim(unsafeIDChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
	},
}

var htmlReportTmpl = template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate))

// renderHTML 渲染 HTML 仪表板。SVG 由本程序生成，框架名已转义，可直接嵌入。
func renderHTML(report AggregateReport, sections []reportSection, charts map[string][]byte) ([]byte, error) {
	data := htmlReportData{
		Report:   report,
		Device:   MobileDevice.Name,
		Scores:   sortByScore(cellsFor(report.Results, PageBoard, CacheCold)),
		Sections: sections,
	}

	names := make([]string, 0, len(charts))
	for name := range charts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data.Charts = append(data.Charts, htmlChart{Name: name, SVG: template.HTML(charts[name])})
	}

	var buf bytes.Buffer
	if err := htmlReportTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("渲染 HTML 模板失败: %w", err)
	}
	return buf.Bytes(), nil
}

// HTML 模板
const htmlTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>框架性能对比报告 - {{.Report.Metadata.Timestamp}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: linear-gradient(135deg, #0f0f1a 0%, #1a1a2e 50%, #16213e 100%);
            color: #e8e8e8;
            min-height: 100vh;
            padding: 20px;
        }
        .container { max-width: 1400px; margin: 0 auto; }
        h1 {
            text-align: center;
            font-size: 2.5em;
            margin-bottom: 10px;
            background: linear-gradient(90deg, #00d4ff, #7b2fff, #ff6b6b);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
            background-clip: text;
        }
        .subtitle { text-align: center; color: #888; margin-bottom: 30px; }
        .card {
            background: rgba(255, 255, 255, 0.03);
            border-radius: 16px;
            padding: 24px;
            margin-bottom: 24px;
            border: 1px solid rgba(255, 255, 255, 0.08);
        }
        .card h2 { font-size: 1.3em; margin-bottom: 16px; color: #00d4ff; }
        .config-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 16px;
        }
        .config-item { padding: 12px; background: rgba(0, 0, 0, 0.3); border-radius: 8px; }
        .config-item label { display: block; font-size: 0.85em; color: #888; margin-bottom: 4px; }
        .config-item span { font-size: 1.1em; font-weight: 600; color: #fff; }

        .chart-row { display: flex; align-items: center; margin-bottom: 12px; }
        .chart-name { width: 200px; flex-shrink: 0; font-weight: 600; color: #fff; }
        .chart-bar-container { flex: 1; display: flex; align-items: center; gap: 12px; }
        .chart-bar { height: 28px; border-radius: 4px; min-width: 4px; }
        .chart-value { font-family: 'SF Mono', 'Monaco', 'Consolas', monospace; font-weight: 600; color: #fff; }
        .perf-excellent.chart-bar { background: linear-gradient(90deg, #10b981, #34d399); }
        .perf-good.chart-bar { background: linear-gradient(90deg, #22c55e, #4ade80); }
        .perf-fair.chart-bar { background: linear-gradient(90deg, #f59e0b, #fbbf24); }
        .perf-poor.chart-bar { background: linear-gradient(90deg, #ef4444, #f87171); }
        .svg-chart { background: #fff; border-radius: 8px; padding: 8px; margin-top: 12px; }
        .svg-chart svg { width: 100%; height: auto; }

        table { width: 100%; border-collapse: collapse; margin-top: 12px; }
        th, td { padding: 12px 8px; text-align: left; border-bottom: 1px solid rgba(255, 255, 255, 0.08); }
        th {
            background: rgba(0, 212, 255, 0.1);
            color: #00d4ff;
            font-weight: 600;
            font-size: 0.8em;
            text-transform: uppercase;
        }
        td { font-family: 'SF Mono', 'Monaco', 'Consolas', monospace; font-size: 0.9em; }
        tr:hover { background: rgba(255, 255, 255, 0.02); }

        .collapsible { background: rgba(0, 0, 0, 0.2); border-radius: 12px; margin-top: 16px; overflow: hidden; }
        .collapsible-header { display: flex; justify-content: space-between; padding: 16px 20px; cursor: pointer; }
        .collapsible-header h3 { font-size: 1em; color: #7b2fff; }
        .collapsible-content { max-height: 0; overflow: hidden; transition: max-height 0.3s ease-out; }
        .collapsible.open .collapsible-content { max-height: 5000px; }
        .collapsible-inner { padding: 0 20px 20px; }

        .footer { text-align: center; padding: 20px; color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="container">
        <h1>⚡ 框架性能对比报告</h1>
        <p class="subtitle">生成时间: {{.Report.Metadata.Timestamp}} | 工具: {{.Report.Metadata.Tool}}</p>

        <div class="card">
            <h2>📋 测量方法</h2>
            <div class="config-grid">
                <div class="config-item"><label>框架数</label><span>{{.Report.Metadata.FrameworkCount}}</span></div>
                <div class="config-item"><label>每页运行次数</label><span>{{.Report.Metadata.RunsPerPage}}</span></div>
                <div class="config-item"><label>测量类型</label><span>{{.Report.Metadata.MeasurementType}}</span></div>
                <div class="config-item"><label>网络</label><span>{{.Report.Metadata.ConnectionType}}</span></div>
                <div class="config-item"><label>CPU</label><span>{{.Report.Metadata.CPUThrottling}}</span></div>
                <div class="config-item"><label>设备</label><span>{{.Device}}</span></div>
            </div>
        </div>

        {{if .Scores}}
        <div class="card">
            <h2>🏁 性能得分（board 页面，cold-load）</h2>
            {{range .Scores}}
            <div class="chart-row">
                <span class="chart-name">{{.Framework}}</span>
                <div class="chart-bar-container">
                    <div class="chart-bar {{scoreClass .PerformanceScore.Median}}" style="width: {{printf "%.0f" .PerformanceScore.Median}}%;"></div>
                    <span class="chart-value">{{printf "%.0f" .PerformanceScore.Median}}</span>
                </div>
            </div>
            {{end}}
        </div>
        {{end}}

        {{range .Charts}}
        <div class="card">
            <h2>📊 {{.Name}}</h2>
            <div class="svg-chart">{{.SVG}}</div>
        </div>
        {{end}}

        {{range .Sections}}
        <div class="collapsible open" id="{{safeID .Title}}" onclick="this.classList.toggle('open')">
            <div class="collapsible-header">
                <h3>🔍 {{.Title}} ({{len .Rows}} 个框架)</h3>
            </div>
            <div class="collapsible-content">
                <div class="collapsible-inner">
                    <table>
                        <thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
                        <tbody>
                            {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
                            {{end}}
                        </tbody>
                    </table>
                </div>
            </div>
        </div>
        {{end}}

        {{if .Report.Frameworks}}
        <div class="card" style="margin-top: 24px;">
            <h2>🧩 框架详情</h2>
            <table>
                <thead><tr><th>框架</th><th>URL</th><th>网络</th><th>CPU</th><th>测量时间</th></tr></thead>
                <tbody>
                    {{range .Report.Frameworks}}
                    <tr><td>{{.FrameworkName}}</td><td>{{.URL}}</td><td>{{.ConnectionType}}</td><td>{{.CPUThrottling}}</td><td>{{.Timestamp}}</td></tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="footer">
            <p>💡 数值为中位数 ±标准差 | 压缩率 = 1 - 压缩后/原始 | 解析/编译耗时为启发式估算</p>
            <p>由 framework-bench 生成</p>
        </div>
    </div>
</body>
</html>`

package main

import (
	"bytes"
	"fmt"
	"math"
	"text/template"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ===============================
// SVG 图表
// ===============================

const (
	chartWidth      = 800
	chartHeight     = 500
	chartGridLines  = 5
	compressedColor = "#3b82f6"
	rawColor        = "#8b5cf6"
)

var chartMargin = struct{ Top, Right, Bottom, Left float64 }{Top: 60, Right: 50, Bottom: 120, Left: 100}

// chartScale 坐标轴上限：数据最大值的 1.1 倍
func chartScale(values ...float64) float64 {
	maxValue := 0.0
	for _, v := range values {
		maxValue = math.Max(maxValue, v)
	}
	if maxValue <= 0 {
		return 1
	}
	return maxValue * 1.1
}

type gridLine struct {
	Y     float64
	Label string
}

type bar struct {
	X, Y, Height   float64
	LabelX, LabelY float64
	KB             float64
}

type barGroup struct {
	Framework  string
	CenterX    float64
	LabelY     float64
	BarWidth   float64
	Compressed bar
	Raw        bar
}

type groupedChartData struct {
	Width, Height     int
	TitleX            float64
	Title, Subtitle   string
	Left, Top         float64
	PlotWidth         float64
	LegendX, LegendTX float64
	CompressedColor   string
	RawColor          string
	Grid              []gridLine
	Groups            []barGroup
}

var groupedChartTmpl = template.Must(template.New("grouped").Parse(
	`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 {{.Width}} {{.Height}}" font-family="system-ui, -apple-system, sans-serif">
  <rect width="{{.Width}}" height="{{.Height}}" fill="#ffffff"/>
  <text x="{{printf "%.0f" .TitleX}}" y="30" text-anchor="middle" font-size="20" font-weight="600" fill="#1f2937">{{.Title}}</text>
  <text x="{{printf "%.0f" .TitleX}}" y="48" text-anchor="middle" font-size="12" fill="#6b7280">{{.Subtitle}}</text>
  <rect x="{{.LegendX}}" y="60" width="15" height="15" fill="{{.CompressedColor}}" rx="2"/>
  <text x="{{.LegendTX}}" y="72" font-size="11" fill="#374151">Compressed</text>
  <rect x="{{.LegendX}}" y="80" width="15" height="15" fill="{{.RawColor}}" rx="2"/>
  <text x="{{.LegendTX}}" y="92" font-size="11" fill="#374151">Raw</text>
  <g transform="translate({{.Left}}, {{.Top}})">
{{- range .Grid}}
    <line x1="0" y1="{{printf "%.2f" .Y}}" x2="{{printf "%.2f" $.PlotWidth}}" y2="{{printf "%.2f" .Y}}" stroke="#e5e7eb" stroke-width="1" stroke-dasharray="4,4"/>
    <text x="-10" y="{{printf "%.2f" .Y}}" text-anchor="end" dominant-baseline="middle" font-size="11" fill="#6b7280">{{.Label}}</text>
{{- end}}
{{- range .Groups}}
    <rect x="{{printf "%.2f" .Compressed.X}}" y="{{printf "%.2f" .Compressed.Y}}" width="{{printf "%.2f" .BarWidth}}" height="{{printf "%.2f" .Compressed.Height}}" fill="{{$.CompressedColor}}" opacity="0.8" rx="3"/>
    <text x="{{printf "%.2f" .Compressed.LabelX}}" y="{{printf "%.2f" .Compressed.LabelY}}" text-anchor="middle" font-size="10" font-weight="600" fill="#1f2937">{{printf "%.1f" .Compressed.KB}}</text>
    <rect x="{{printf "%.2f" .Raw.X}}" y="{{printf "%.2f" .Raw.Y}}" width="{{printf "%.2f" .BarWidth}}" height="{{printf "%.2f" .Raw.Height}}" fill="{{$.RawColor}}" opacity="0.8" rx="3"/>
    <text x="{{printf "%.2f" .Raw.LabelX}}" y="{{printf "%.2f" .Raw.LabelY}}" text-anchor="middle" font-size="10" font-weight="600" fill="#1f2937">{{printf "%.1f" .Raw.KB}}</text>
    <text x="{{printf "%.2f" .CenterX}}" y="{{printf "%.2f" .LabelY}}" text-anchor="end" font-size="11" fill="#374151" transform="rotate(-45, {{printf "%.2f" .CenterX}}, {{printf "%.2f" .LabelY}})">{{.Framework}}</text>
{{- end}}
  </g>
</svg>
`))

// BundleComparisonChart 压缩后 / 原始 JS 体积的分组柱状图。
// cells 需已按展示顺序排序。
func BundleComparisonChart(cells []AggregatedCellStats, title, subtitle string) ([]byte, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: no data for chart %q", ErrInvalidArgument, title)
	}

	plotW := chartWidth - chartMargin.Left - chartMargin.Right
	plotH := chartHeight - chartMargin.Top - chartMargin.Bottom

	values := make([]float64, 0, len(cells)*2)
	for _, c := range cells {
		values = append(values, c.JSTransferred.Median, c.JSUncompressed.Median)
	}
	maxScale := chartScale(values...)

	data := groupedChartData{
		Width:           chartWidth,
		Height:          chartHeight,
		TitleX:          chartWidth / 2,
		Title:           template.HTMLEscapeString(title),
		Subtitle:        template.HTMLEscapeString(subtitle),
		Left:            chartMargin.Left,
		Top:             chartMargin.Top,
		PlotWidth:       plotW,
		LegendX:         chartWidth - 200,
		LegendTX:        chartWidth - 180,
		CompressedColor: compressedColor,
		RawColor:        rawColor,
	}

	for i := 0; i <= chartGridLines; i++ {
		data.Grid = append(data.Grid, gridLine{
			Y:     plotH - plotH/chartGridLines*float64(i),
			Label: fmt.Sprintf("%.0f kB", math.Round(maxScale/chartGridLines*float64(i)/1024)),
		})
	}

	groupWidth := plotW / float64(len(cells))
	barWidth := math.Min(24, groupWidth/2.5)
	for i, c := range cells {
		centerX := float64(i)*groupWidth + groupWidth/2
		data.Groups = append(data.Groups, barGroup{
			Framework:  template.HTMLEscapeString(c.Framework),
			CenterX:    centerX,
			LabelY:     plotH + 15,
			BarWidth:   barWidth,
			Compressed: scaledBar(c.JSTransferred.Median, centerX-barWidth-2, barWidth, maxScale, plotH),
			Raw:        scaledBar(c.JSUncompressed.Median, centerX+2, barWidth, maxScale, plotH),
		})
	}

	var buf bytes.Buffer
	if err := groupedChartTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("渲染图表失败: %w", err)
	}
	return buf.Bytes(), nil
}

// scaledBar 柱高与数值成正比，数值标签位于柱顶上方
func scaledBar(value, x, width, maxScale, plotH float64) bar {
	h := value / maxScale * plotH
	return bar{
		X:      x,
		Y:      plotH - h,
		Height: h,
		LabelX: x + width/2,
		LabelY: plotH - h - 8,
		KB:     value / 1024,
	}
}

// MetricBarChart 单指标柱状图（例如 LCP 中位数）
func MetricBarChart(cells []AggregatedCellStats, title, unit string, value func(AggregatedCellStats) float64) ([]byte, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: no data for chart %q", ErrInvalidArgument, title)
	}

	bars := make([]chart.Value, 0, len(cells))
	values := make([]float64, 0, len(cells))
	for i, c := range cells {
		v := value(c)
		values = append(values, v)
		bars = append(bars, chart.Value{
			Label: c.Framework,
			Value: v,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(chartPalette[i%len(chartPalette)]),
				StrokeColor: drawing.ColorFromHex(chartPalette[i%len(chartPalette)]),
			},
		})
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: int(chartMargin.Top), Right: int(chartMargin.Right), Bottom: int(chartMargin.Bottom), Left: 20},
		},
		BarWidth: 40,
		XAxis:    chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: chartScale(values...)},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f %s", f, unit)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("渲染图表失败: %w", err)
	}
	return buf.Bytes(), nil
}

var chartPalette = []string{
	"3b82f6", "8b5cf6", "ec4899", "10b981", "f59e0b",
	"ef4444", "06b6d4", "6366f1", "84cc16", "f97316",
}

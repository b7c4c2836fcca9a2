package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ===============================
// 指标采集
// ===============================
//
// 每个采集器都是对页面 performance timeline 的只读查询，在网络空闲后调用。
// 页面侧只导出原始条目，计算规则在 Go 侧完成。

// LCP / layout-shift 条目不会出现在 getEntriesByType 中，需要 buffered observer 读取
const webVitalsExpr = `new Promise((resolve) => {
  const observe = (type) => new Promise((done) => {
    let settled = false;
    const finish = (entries) => { if (!settled) { settled = true; done(entries); } };
    try {
      const obs = new PerformanceObserver((list) => { obs.disconnect(); finish(list.getEntries()); });
      obs.observe({ type, buffered: true });
      setTimeout(() => { obs.disconnect(); finish(performance.getEntriesByType(type)); }, 100);
    } catch (e) {
      finish([]);
    }
  });
  Promise.all([observe("largest-contentful-paint"), observe("layout-shift")]).then(([lcp, shifts]) => {
    const nav = performance.getEntriesByType("navigation")[0];
    resolve({
      paints: performance.getEntriesByType("paint").map((e) => ({ name: e.name, startTime: e.startTime })),
      lcp: lcp.map((e) => e.startTime),
      layoutShifts: shifts.map((e) => ({ value: e.value || 0, hadRecentInput: !!e.hadRecentInput })),
      responseStart: nav && nav.responseStart ? nav.responseStart : 0,
    });
  });
})`

const resourcesExpr = `performance.getEntriesByType("resource").map((e) => ({
  name: e.name,
  initiatorType: e.initiatorType || "",
  transferSize: e.transferSize || 0,
  decodedBodySize: e.decodedBodySize || 0,
  duration: e.duration || 0,
}))`

const measuresExpr = `({
  measures: performance.getEntriesByType("measure").map((e) => ({ name: e.name, duration: e.duration || 0 })),
  scriptTags: document.querySelectorAll("script[src]").length,
})`

// ---------- Web Vitals ----------

type paintEntry struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
}

type layoutShiftEntry struct {
	Value          float64 `json:"value"`
	HadRecentInput bool    `json:"hadRecentInput"`
}

type vitalsPayload struct {
	Paints        []paintEntry       `json:"paints"`
	LCP           []float64          `json:"lcp"`
	LayoutShifts  []layoutShiftEntry `json:"layoutShifts"`
	ResponseStart float64            `json:"responseStart"`
}

// CollectWebVitals 读取 FCP / LCP / CLS / TTFB；缺失的条目记为 0
func CollectWebVitals(ctx context.Context, page Page) (WebVitals, error) {
	var p vitalsPayload
	if err := evaluateInto(ctx, page, webVitalsExpr, vitalsSchema, &p); err != nil {
		return WebVitals{}, fmt.Errorf("采集 Web Vitals 失败: %w", err)
	}
	return computeWebVitals(p), nil
}

func computeWebVitals(p vitalsPayload) WebVitals {
	var v WebVitals
	for _, e := range p.Paints {
		if e.Name == "first-contentful-paint" {
			v.FCP = e.StartTime
			break
		}
	}
	if len(p.LCP) > 0 {
		v.LCP = p.LCP[len(p.LCP)-1]
	}
	var cls float64
	for _, s := range p.LayoutShifts {
		if !s.HadRecentInput {
			cls += s.Value
		}
	}
	v.TTFB = p.ResponseStart

	return WebVitals{
		FCP:  nonNegative(round(v.FCP, 0)),
		LCP:  nonNegative(round(v.LCP, 0)),
		CLS:  nonNegative(round(cls, 3)),
		TTFB: nonNegative(round(v.TTFB, 0)),
	}
}

// ---------- 资源 ----------

type resourceEntry struct {
	Name            string  `json:"name"`
	InitiatorType   string  `json:"initiatorType"`
	TransferSize    float64 `json:"transferSize"`
	DecodedBodySize float64 `json:"decodedBodySize"`
	Duration        float64 `json:"duration"`
}

// ResourceTotals 按类别汇总的资源大小
type ResourceTotals struct {
	JSTransferred     float64
	JSUncompressed    float64
	CSSTransferred    float64
	CSSUncompressed   float64
	OtherTransferred  float64
	OtherUncompressed float64
	JSFiles           []ResourceMetrics
	CSSFiles          []ResourceMetrics
	ResourceCount     int
}

// CollectResources 读取 resource timing 条目并按类别汇总
func CollectResources(ctx context.Context, page Page) (ResourceTotals, error) {
	var entries []resourceEntry
	if err := evaluateInto(ctx, page, resourcesExpr, resourcesSchema, &entries); err != nil {
		return ResourceTotals{}, fmt.Errorf("采集资源指标失败: %w", err)
	}
	return sumResources(entries), nil
}

func sumResources(entries []resourceEntry) ResourceTotals {
	totals := ResourceTotals{
		JSFiles:       []ResourceMetrics{},
		CSSFiles:      []ResourceMetrics{},
		ResourceCount: len(entries),
	}
	for _, e := range entries {
		kind := classifyResource(e.InitiatorType, e.Name)
		m := ResourceMetrics{
			Name:            e.Name,
			Type:            kind,
			TransferSize:    e.TransferSize,
			DecodedBodySize: e.DecodedBodySize,
			Duration:        e.Duration,
		}
		switch kind {
		case "script":
			totals.JSTransferred += e.TransferSize
			totals.JSUncompressed += e.DecodedBodySize
			totals.JSFiles = append(totals.JSFiles, m)
		case "stylesheet":
			totals.CSSTransferred += e.TransferSize
			totals.CSSUncompressed += e.DecodedBodySize
			totals.CSSFiles = append(totals.CSSFiles, m)
		default:
			totals.OtherTransferred += e.TransferSize
			totals.OtherUncompressed += e.DecodedBodySize
		}
	}
	return totals
}

// classifyResource 将资源归类为 script / stylesheet / other
func classifyResource(initiatorType, name string) string {
	path := strings.ToLower(resourcePath(name))
	switch {
	case initiatorType == "script" || strings.HasSuffix(path, ".js"):
		return "script"
	case initiatorType == "link" && strings.Contains(path, ".css"):
		return "stylesheet"
	default:
		return "other"
	}
}

// resourcePath 去掉查询串与片段，解析失败时返回原值
func resourcePath(name string) string {
	u, err := url.Parse(name)
	if err != nil || u.Path == "" {
		return name
	}
	return u.Path
}

// ---------- 脚本执行 / 解析编译 ----------

type measureEntry struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

type measuresPayload struct {
	Measures   []measureEntry `json:"measures"`
	ScriptTags int            `json:"scriptTags"`
}

// CollectScriptEvaluation 汇总名称包含 "script" 的 measure 条目耗时
func CollectScriptEvaluation(ctx context.Context, page Page) (ScriptEvaluation, error) {
	var p measuresPayload
	if err := evaluateInto(ctx, page, measuresExpr, measuresSchema, &p); err != nil {
		return ScriptEvaluation{}, fmt.Errorf("采集脚本执行指标失败: %w", err)
	}
	return computeScriptEvaluation(p), nil
}

func computeScriptEvaluation(p measuresPayload) ScriptEvaluation {
	var total float64
	for _, m := range p.Measures {
		if strings.Contains(m.Name, "script") {
			total += m.Duration
		}
	}
	se := ScriptEvaluation{
		TotalScriptEvalTime: round(total, 0),
		ScriptCount:         p.ScriptTags,
	}
	if p.ScriptTags > 0 {
		se.AverageScriptEvalTime = round(total/float64(p.ScriptTags), 0)
	}
	return se
}

// CollectParseCompile 按 measure 名称的子串粗略分桶。
// 这是依赖引擎命名的启发式规则，结果仅供诊断参考。
func CollectParseCompile(ctx context.Context, page Page) (ParseCompileBreakdown, error) {
	var p measuresPayload
	if err := evaluateInto(ctx, page, measuresExpr, measuresSchema, &p); err != nil {
		return ParseCompileBreakdown{}, fmt.Errorf("采集解析/编译指标失败: %w", err)
	}
	return computeParseCompile(p.Measures), nil
}

func computeParseCompile(measures []measureEntry) ParseCompileBreakdown {
	var b ParseCompileBreakdown
	for _, m := range measures {
		name := strings.ToLower(m.Name)
		has := func(s string) bool { return strings.Contains(name, s) }
		switch {
		case has("parse") && has("script"):
			b.JSParseTime += m.Duration
		case has("compile") && has("script"):
			b.JSCompileTime += m.Duration
		case has("evaluate") || has("execute"):
			b.JSExecutionTime += m.Duration
		case has("parse") && has("css"):
			b.CSSParseTime += m.Duration
		case has("style") || has("recalc"):
			b.StyleRecalcTime += m.Duration
		}
	}
	b.JSParseTime = round(b.JSParseTime, 0)
	b.JSCompileTime = round(b.JSCompileTime, 0)
	b.JSExecutionTime = round(b.JSExecutionTime, 0)
	b.CSSParseTime = round(b.CSSParseTime, 0)
	b.StyleRecalcTime = round(b.StyleRecalcTime, 0)
	b.Total = b.JSParseTime + b.JSCompileTime + b.JSExecutionTime + b.CSSParseTime + b.StyleRecalcTime
	return b
}

// ---------- 公共 ----------

// evaluateInto 执行表达式，校验 JSON 结构后解码到 out
func evaluateInto(ctx context.Context, page Page, expr, schema string, out interface{}) error {
	raw, err := page.Evaluate(ctx, expr)
	if err != nil {
		return err
	}
	if err := validateJSON(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("解析页面返回值失败: %w", err)
	}
	return nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

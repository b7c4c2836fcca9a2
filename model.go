package main

import (
	"fmt"
	"strings"
)

// ===============================
// 数据模型
// ===============================

// PageKind 被测页面类型
type PageKind string

const (
	PageHome  PageKind = "home"
	PageBoard PageKind = "board"
)

// CacheMode 缓存模式
type CacheMode string

const (
	CacheCold CacheMode = "cold" // 每次运行新建上下文并清空缓存
	CacheWarm CacheMode = "warm" // 单一上下文，保留缓存
)

// MeasurementTarget 一个待测量的目标（框架 + 页面）
type MeasurementTarget struct {
	FrameworkName string   `json:"frameworkName"`
	BaseURL       string   `json:"baseUrl"`
	PageKind      PageKind `json:"pageKind"`
	PageURL       string   `json:"pageUrl"`
}

// NewTargets 根据基础URL生成 home 与 board 两个目标
func NewTargets(frameworkName, baseURL, boardID string) []MeasurementTarget {
	base := strings.TrimRight(baseURL, "/")
	return []MeasurementTarget{
		{FrameworkName: frameworkName, BaseURL: base, PageKind: PageHome, PageURL: base + "/"},
		{FrameworkName: frameworkName, BaseURL: base, PageKind: PageBoard, PageURL: fmt.Sprintf("%s/board/%s", base, boardID)},
	}
}

// ResourceMetrics 单个资源的传输信息
type ResourceMetrics struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"` // script | stylesheet | other
	TransferSize    float64 `json:"transferSize"`
	DecodedBodySize float64 `json:"decodedBodySize"`
	Duration        float64 `json:"duration"`
}

// WebVitals 核心 Web 指标（毫秒，CLS 无单位）
type WebVitals struct {
	FCP  float64 `json:"fcp"`
	LCP  float64 `json:"lcp"`
	CLS  float64 `json:"cls"`
	TTFB float64 `json:"ttfb"`
}

// ScriptEvaluation 脚本执行耗时
type ScriptEvaluation struct {
	TotalScriptEvalTime   float64 `json:"totalScriptEvalTime"`
	ScriptCount           int     `json:"scriptCount"`
	AverageScriptEvalTime float64 `json:"averageScriptEvalTime"`
}

// ParseCompileBreakdown 解析/编译耗时拆分。
// 基于 measure 条目名称的子串匹配，只是尽力而为的诊断值，不是精确指标。
type ParseCompileBreakdown struct {
	JSParseTime     float64 `json:"jsParseTime"`
	JSCompileTime   float64 `json:"jsCompileTime"`
	JSExecutionTime float64 `json:"jsExecutionTime"`
	CSSParseTime    float64 `json:"cssParseTime"`
	StyleRecalcTime float64 `json:"styleRecalcTime"`
	Total           float64 `json:"total"`
}

// RawRunSample 单次导航的原始测量结果
type RawRunSample struct {
	RunID             string                `json:"runId"`
	JSTransferred     float64               `json:"jsTransferred"`
	JSUncompressed    float64               `json:"jsUncompressed"`
	CSSTransferred    float64               `json:"cssTransferred"`
	CSSUncompressed   float64               `json:"cssUncompressed"`
	OtherTransferred  float64               `json:"otherTransferred"`
	OtherUncompressed float64               `json:"otherUncompressed"`
	TotalTransferred  float64               `json:"totalTransferred"`
	TotalUncompressed float64               `json:"totalUncompressed"`
	JSFiles           []ResourceMetrics     `json:"jsFiles"`
	CSSFiles          []ResourceMetrics     `json:"cssFiles"`
	WebVitals         WebVitals             `json:"webVitals"`
	ScriptEvaluation  ScriptEvaluation      `json:"scriptEvaluation"`
	ParseCompile      ParseCompileBreakdown `json:"parseCompile"`
	ResourceCount     int                   `json:"resourceCount"`
	Timestamp         string                `json:"timestamp"`
}

// StatisticalSummary 单个指标在多次运行上的统计汇总
type StatisticalSummary struct {
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	Stddev    float64 `json:"stddev"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Runs      int     `json:"runs"`
	CI95Lower float64 `json:"ci95Lower"`
	CI95Upper float64 `json:"ci95Upper"`
}

// AggregatedCellStats 报告中的一行：(框架, 页面, 缓存模式)
type AggregatedCellStats struct {
	Framework         string             `json:"framework"`
	Page              PageKind           `json:"page"`
	CacheMode         CacheMode          `json:"cacheMode"`
	JSTransferred     StatisticalSummary `json:"jsTransferred"`
	JSUncompressed    StatisticalSummary `json:"jsUncompressed"`
	CSSTransferred    StatisticalSummary `json:"cssTransferred"`
	CSSUncompressed   StatisticalSummary `json:"cssUncompressed"`
	TotalTransferred  StatisticalSummary `json:"totalTransferred"`
	TotalUncompressed StatisticalSummary `json:"totalUncompressed"`
	JSToTotalRatio    int                `json:"jsToTotalRatio"`
	CompressionRatio  int                `json:"compressionRatio"`
	FCP               StatisticalSummary `json:"fcp"`
	LCP               StatisticalSummary `json:"lcp"`
	CLS               StatisticalSummary `json:"cls"`
	TTFB              StatisticalSummary `json:"ttfb"`
	ScriptEvalTime    StatisticalSummary `json:"scriptEvalTime"`
	JSParseTime       StatisticalSummary `json:"jsParseTime"`
	JSCompileTime     StatisticalSummary `json:"jsCompileTime"`
	JSExecutionTime   StatisticalSummary `json:"jsExecutionTime"`
	CSSParseTime      StatisticalSummary `json:"cssParseTime"`
	StyleRecalcTime   StatisticalSummary `json:"styleRecalcTime"`
	ParseCompileTotal StatisticalSummary `json:"parseCompileTotal"`
	ResourceCount     StatisticalSummary `json:"resourceCount"`
	PerformanceScore  StatisticalSummary `json:"performanceScore"`
	Timestamp         string             `json:"timestamp"`
}

// ReportMetadata 单框架报告的元数据
type ReportMetadata struct {
	FrameworkName   string `json:"frameworkName"`
	URL             string `json:"url"`
	Timestamp       string `json:"timestamp"`
	RunsPerPage     int    `json:"runsPerPage"`
	MeasurementType string `json:"measurementType"`
	ConnectionType  string `json:"connectionType"`
	CPUThrottling   string `json:"cpuThrottling"`
	Tool            string `json:"tool"`
	RunID           string `json:"runId"`
}

// FrameworkReport 单框架的持久化报告
type FrameworkReport struct {
	Metadata ReportMetadata        `json:"metadata"`
	Results  []AggregatedCellStats `json:"results"`
}

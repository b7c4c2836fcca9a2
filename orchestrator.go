package main

import (
	"context"
	"fmt"
	"time"
)

// ===============================
// 测量编排
// ===============================

// 每次计时运行之后的固定等待，减少尾随网络请求与 GC 对下一次运行的干扰
const settleDelay = time.Second

// Orchestrator 针对一个 (目标, 缓存模式) 单元重复执行测量
type Orchestrator struct {
	browser  Browser
	executor *Executor
	logger   *Logger
	metrics  *HarnessMetrics

	sleep func(time.Duration)
}

// NewOrchestrator 创建编排器
func NewOrchestrator(browser Browser, executor *Executor, logger *Logger, metrics *HarnessMetrics) *Orchestrator {
	return &Orchestrator{
		browser:  browser,
		executor: executor,
		logger:   logger,
		metrics:  metrics,
		sleep:    time.Sleep,
	}
}

// RunCell 执行 runCount 次计时运行，按顺序返回全部样本，不做聚合。
// 任意一次计时运行失败即放弃整个单元。
func (o *Orchestrator) RunCell(ctx context.Context, target MeasurementTarget, profile EmulationProfile, mode CacheMode, runCount int) ([]RawRunSample, error) {
	if runCount < 1 {
		return nil, fmt.Errorf("%w: runCount must be >= 1, got %d", ErrInvalidArgument, runCount)
	}

	switch mode {
	case CacheCold:
		return o.runCold(ctx, target, profile, runCount)
	case CacheWarm:
		return o.runWarm(ctx, target, profile, runCount)
	default:
		return nil, fmt.Errorf("%w: unknown cache mode %q", ErrInvalidArgument, mode)
	}
}

// runCold 每次运行都新建上下文并清空缓存，仅第一次运行前预热
func (o *Orchestrator) runCold(ctx context.Context, target MeasurementTarget, profile EmulationProfile, runCount int) ([]RawRunSample, error) {
	samples := make([]RawRunSample, 0, runCount)
	for i := 1; i <= runCount; i++ {
		sample, err := o.coldRun(ctx, target, profile, i, runCount)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (o *Orchestrator) coldRun(ctx context.Context, target MeasurementTarget, profile EmulationProfile, i, runCount int) (sample RawRunSample, err error) {
	bctx, err := o.newContext(ctx)
	if err != nil {
		return RawRunSample{}, err
	}
	defer closeContext(bctx, &err)

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return RawRunSample{}, fmt.Errorf("创建页面失败: %w", err)
	}

	if i == 1 {
		o.warmup(ctx, page, target, CacheCold)
	}

	sample, err = o.timedRun(ctx, page, target, profile, CacheCold, i, runCount)
	if err != nil {
		return RawRunSample{}, err
	}
	o.sleep(settleDelay)
	return sample, nil
}

// runWarm 整个单元只使用一个上下文：预热一次，然后原地重复导航，不清缓存
func (o *Orchestrator) runWarm(ctx context.Context, target MeasurementTarget, profile EmulationProfile, runCount int) (samples []RawRunSample, err error) {
	bctx, err := o.newContext(ctx)
	if err != nil {
		return nil, err
	}
	defer closeContext(bctx, &err)

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	o.warmup(ctx, page, target, CacheWarm)

	samples = make([]RawRunSample, 0, runCount)
	for i := 1; i <= runCount; i++ {
		sample, err := o.timedRun(ctx, page, target, profile, CacheWarm, i, runCount)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
		o.sleep(settleDelay)
	}
	return samples, nil
}

func (o *Orchestrator) newContext(ctx context.Context) (BrowsingContext, error) {
	bctx, err := o.browser.NewContext(ctx)
	if err != nil {
		o.metrics.RecordFailure("context")
		return nil, err
	}
	o.metrics.RecordContext()
	return bctx, nil
}

// warmup 不计时的预热导航，吸收首次访问时服务端编译等开销。失败只记警告。
func (o *Orchestrator) warmup(ctx context.Context, page Page, target MeasurementTarget, mode CacheMode) {
	o.logger.Infof("🔥 预热 %s (%s)", target.PageURL, mode)
	o.metrics.RecordNavigation(mode, "warmup")
	if err := page.Navigate(ctx, target.PageURL); err != nil {
		o.metrics.RecordFailure("warmup")
		o.logger.Warnf("⚠️  预热失败，继续测量: %v", err)
		return
	}
	o.sleep(settleDelay)
}

func (o *Orchestrator) timedRun(ctx context.Context, page Page, target MeasurementTarget, profile EmulationProfile, mode CacheMode, i, runCount int) (RawRunSample, error) {
	o.logger.Infof("   Run %d/%d (%s)", i, runCount, mode)
	o.metrics.RecordNavigation(mode, "timed")

	start := time.Now()
	sample, err := o.executor.Execute(ctx, page, target, profile, mode == CacheCold)
	if err != nil {
		o.metrics.RecordFailure("run")
		return RawRunSample{}, fmt.Errorf("%s %s %s 第 %d/%d 次运行失败: %w", target.FrameworkName, target.PageKind, mode, i, runCount, err)
	}
	o.metrics.RecordRun(mode, time.Since(start))
	return sample, nil
}

// closeContext 关闭上下文，关闭错误只在没有更早错误时返回
func closeContext(bctx BrowsingContext, err *error) {
	if cerr := bctx.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("关闭浏览上下文失败: %w", cerr)
	}
}

// ===============================
// 单框架完整测量
// ===============================

// MeasureFramework 依次测量 board / home 两个页面的 cold / warm 两种模式
func (o *Orchestrator) MeasureFramework(ctx context.Context, name, baseURL, boardID string, profile EmulationProfile, runs int) ([]AggregatedCellStats, error) {
	targets := NewTargets(name, baseURL, boardID)
	// board 页面是主要对比对象，先测
	ordered := []MeasurementTarget{targets[1], targets[0]}

	results := make([]AggregatedCellStats, 0, len(ordered)*2)
	for _, target := range ordered {
		for _, mode := range []CacheMode{CacheCold, CacheWarm} {
			o.logger.Infof("📊 测量 %s %s 页面 (%s, %d 次)", target.FrameworkName, target.PageKind, mode, runs)

			samples, err := o.RunCell(ctx, target, profile, mode, runs)
			if err != nil {
				return nil, err
			}

			cell := BuildCellStats(target, mode, samples)
			o.metrics.RecordCell(target.FrameworkName, target.PageKind, mode)
			o.logger.Infof("✅ %s/%s: JS %.1f KB (压缩后) / %.1f KB (原始), LCP %.0fms, 得分 %.0f",
				target.PageKind, mode,
				cell.JSTransferred.Median/1024, cell.JSUncompressed.Median/1024,
				cell.LCP.Median, cell.PerformanceScore.Median,
			)
			results = append(results, cell)
		}
	}
	return results, nil
}

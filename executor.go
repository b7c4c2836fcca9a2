package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ===============================
// 单次测量
// ===============================

// Executor 负责一次导航的完整生命周期
type Executor struct {
	// Device 非空时施加移动设备仿真
	Device *DeviceDescriptor
	// now 便于测试替换
	now func() time.Time
}

// NewExecutor 创建执行器，mobile 为 true 时使用移动设备仿真
func NewExecutor(mobile bool) *Executor {
	e := &Executor{now: time.Now}
	if mobile {
		d := MobileDevice
		e.Device = &d
	}
	return e
}

// Execute 施加仿真条件、（可选）清空缓存、导航并采集指标。
// 任何错误直接返回，不做重试。
func (e *Executor) Execute(ctx context.Context, page Page, target MeasurementTarget, profile EmulationProfile, clearCache bool) (sample RawRunSample, err error) {
	session, err := page.Attach(ctx)
	if err != nil {
		return RawRunSample{}, err
	}
	defer func() {
		if derr := session.Detach(ctx); derr != nil && err == nil {
			err = fmt.Errorf("释放调试会话失败: %w", derr)
		}
	}()

	// 导航之前施加条件
	if err := session.EmulateNetwork(ctx, profile); err != nil {
		return RawRunSample{}, fmt.Errorf("设置网络条件失败: %w", err)
	}
	if err := session.SetCPUThrottling(ctx, profile.CPUMultiplier); err != nil {
		return RawRunSample{}, fmt.Errorf("设置 CPU 降速失败: %w", err)
	}
	if e.Device != nil {
		if err := session.EmulateDevice(ctx, *e.Device); err != nil {
			return RawRunSample{}, fmt.Errorf("设置设备仿真失败: %w", err)
		}
	}
	if clearCache {
		if err := session.ClearBrowserCache(ctx); err != nil {
			return RawRunSample{}, fmt.Errorf("清空缓存失败: %w", err)
		}
	}

	if err := page.Navigate(ctx, target.PageURL); err != nil {
		return RawRunSample{}, err
	}

	vitals, err := CollectWebVitals(ctx, page)
	if err != nil {
		return RawRunSample{}, err
	}
	resources, err := CollectResources(ctx, page)
	if err != nil {
		return RawRunSample{}, err
	}
	scriptEval, err := CollectScriptEvaluation(ctx, page)
	if err != nil {
		return RawRunSample{}, err
	}
	parseCompile, err := CollectParseCompile(ctx, page)
	if err != nil {
		return RawRunSample{}, err
	}

	return RawRunSample{
		RunID:             uuid.NewString(),
		JSTransferred:     resources.JSTransferred,
		JSUncompressed:    resources.JSUncompressed,
		CSSTransferred:    resources.CSSTransferred,
		CSSUncompressed:   resources.CSSUncompressed,
		OtherTransferred:  resources.OtherTransferred,
		OtherUncompressed: resources.OtherUncompressed,
		TotalTransferred:  resources.JSTransferred + resources.CSSTransferred,
		TotalUncompressed: resources.JSUncompressed + resources.CSSUncompressed,
		JSFiles:           resources.JSFiles,
		CSSFiles:          resources.CSSFiles,
		WebVitals:         vitals,
		ScriptEvaluation:  scriptEval,
		ParseCompile:      parseCompile,
		ResourceCount:     resources.ResourceCount,
		Timestamp:         e.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

package main

import "context"

// ===============================
// 浏览器抽象
// ===============================

// Browser 浏览器进程，可创建相互隔离的浏览上下文
type Browser interface {
	NewContext(ctx context.Context) (BrowsingContext, error)
	Close() error
}

// BrowsingContext 隔离的浏览上下文（独立的 cookie / 缓存 / service worker）
type BrowsingContext interface {
	ID() string
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page 浏览器标签页
type Page interface {
	// Attach 建立远程调试会话
	Attach(ctx context.Context) (Session, error)
	// Navigate 导航到 url，阻塞直到网络空闲
	Navigate(ctx context.Context, url string) error
	// Evaluate 在页面中执行表达式（Promise 会被等待），返回 JSON 结果
	Evaluate(ctx context.Context, expression string) ([]byte, error)
}

// Session 远程调试会话，用于施加仿真条件
type Session interface {
	EmulateNetwork(ctx context.Context, profile EmulationProfile) error
	SetCPUThrottling(ctx context.Context, rate float64) error
	EmulateDevice(ctx context.Context, device DeviceDescriptor) error
	ClearBrowserCache(ctx context.Context) error
	// Detach 恢复中性条件并结束会话
	Detach(ctx context.Context) error
}

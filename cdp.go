package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// ===============================
// 基于 chromedp 的 CDP 实现
// ===============================

// ErrNavigation 导航失败或等待网络空闲超时
var ErrNavigation = errors.New("navigation failed")

// BrowserOptions 浏览器启动参数
type BrowserOptions struct {
	ExecPath          string
	Headless          bool
	Flags             []string
	NavigationTimeout time.Duration
}

type cdpBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	navTimeout    time.Duration
}

// LaunchBrowser 启动一个 Chrome 进程
func LaunchBrowser(ctx context.Context, opts BrowserOptions) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	for _, f := range opts.Flags {
		name, value, found := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if found {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// 首次 Run 时才真正启动浏览器
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	navTimeout := opts.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	return &cdpBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		navTimeout:    navTimeout,
	}, nil
}

func (b *cdpBrowser) NewContext(ctx context.Context) (BrowsingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("创建浏览上下文失败: %w", err)
	}

	c := &cdpContext{
		id:     uuid.NewString(),
		ctx:    tabCtx,
		cancel: cancel,
	}
	c.page = &cdpPage{owner: c, navTimeout: b.navTimeout}
	return c, nil
}

func (b *cdpBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	return err
}

// cdpContext 独立的 browser context，内含一个标签页
type cdpContext struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	page   *cdpPage
}

func (c *cdpContext) ID() string { return c.id }

func (c *cdpContext) NewPage(ctx context.Context) (Page, error) {
	return c.page, ctx.Err()
}

func (c *cdpContext) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	return err
}

// run 在调用方的 ctx 上执行 CDP 动作
func (c *cdpContext) run(ctx context.Context, actions ...chromedp.Action) error {
	t := chromedp.FromContext(c.ctx).Target
	if t == nil {
		return errors.New("标签页尚未初始化")
	}
	ectx := cdp.WithExecutor(ctx, t)
	for _, a := range actions {
		if err := a.Do(ectx); err != nil {
			return err
		}
	}
	return nil
}

type cdpPage struct {
	owner      *cdpContext
	navTimeout time.Duration
}

func (p *cdpPage) Attach(ctx context.Context) (Session, error) {
	if err := p.owner.run(ctx, network.Enable()); err != nil {
		return nil, fmt.Errorf("建立调试会话失败: %w", err)
	}
	return &cdpSession{owner: p.owner}, nil
}

// Navigate 导航并等待主文档的 networkIdle 生命周期事件
func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	// 导航返回前就可能收到事件，先缓冲起来
	idle := make(chan cdp.LoaderID, idleEventBuffer)

	lctx, cancel := context.WithCancel(p.owner.ctx)
	defer cancel()
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || e.Name != "networkIdle" {
			return
		}
		select {
		case idle <- e.LoaderID:
		default:
		}
	})

	navCtx, navCancel := context.WithTimeout(ctx, p.navTimeout)
	defer navCancel()

	var loaderID cdp.LoaderID
	err := p.owner.run(navCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, id, errorText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return errors.New(errorText)
			}
			loaderID = id
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}

	if err := waitNetworkIdle(navCtx, idle, loaderID); err != nil {
		return fmt.Errorf("%w: 等待网络空闲超时 %s: %v", ErrNavigation, url, err)
	}
	return nil
}

// 单次导航内 networkIdle 事件很少（主文档加若干 iframe）
const idleEventBuffer = 32

// waitNetworkIdle 阻塞直到收到 loaderID 对应的 networkIdle，其他 loader 的事件忽略
func waitNetworkIdle(ctx context.Context, events <-chan cdp.LoaderID, loaderID cdp.LoaderID) error {
	for {
		select {
		case id := <-events:
			if id == loaderID {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *cdpPage) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	var raw []byte
	err := p.owner.run(ctx, chromedp.Evaluate(expression, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("执行页面脚本失败: %w", err)
	}
	return raw, nil
}

type cdpSession struct {
	owner *cdpContext
}

func (s *cdpSession) EmulateNetwork(ctx context.Context, p EmulationProfile) error {
	return s.owner.run(ctx,
		network.EmulateNetworkConditions(false, p.LatencyMs, p.DownloadBps, p.UploadBps).
			WithConnectionType(network.ConnectionType(p.Connection)),
	)
}

func (s *cdpSession) SetCPUThrottling(ctx context.Context, rate float64) error {
	return s.owner.run(ctx, emulation.SetCPUThrottlingRate(rate))
}

func (s *cdpSession) EmulateDevice(ctx context.Context, d DeviceDescriptor) error {
	return s.owner.run(ctx,
		emulation.SetDeviceMetricsOverride(d.Width, d.Height, d.DeviceScaleFactor, d.Mobile),
		emulation.SetUserAgentOverride(d.UserAgent),
		emulation.SetTouchEmulationEnabled(d.Touch),
	)
}

func (s *cdpSession) ClearBrowserCache(ctx context.Context) error {
	return s.owner.run(ctx, network.ClearBrowserCache())
}

// Detach 恢复不限速状态，避免影响下一次运行
func (s *cdpSession) Detach(ctx context.Context) error {
	return s.owner.run(ctx,
		network.EmulateNetworkConditions(false, 0, -1, -1).WithConnectionType(network.ConnectionTypeNone),
		emulation.SetCPUThrottlingRate(1),
		emulation.ClearDeviceMetricsOverride(),
	)
}

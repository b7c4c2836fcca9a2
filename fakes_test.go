package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeBrowser 记录上下文创建与 CDP 调用顺序的测试替身
type fakeBrowser struct {
	mu       sync.Mutex
	contexts []*fakeContext
	calls    []string

	vitals    string
	resources string
	measures  string

	// failNavigateAt 第 n 次导航（从 1 开始）返回错误，0 表示不失败
	failNavigateAt int
	navigations    int
	newContextErr  error
	detachErr      error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		vitals: `{"paints":[{"name":"first-paint","startTime":90},{"name":"first-contentful-paint","startTime":120.4}],
			"lcp":[300,850.6],
			"layoutShifts":[{"value":0.05,"hadRecentInput":false},{"value":0.5,"hadRecentInput":true},{"value":0.0123,"hadRecentInput":false}],
			"responseStart":42.2}`,
		resources: `[
			{"name":"http://localhost:3000/assets/app.js?v=1","initiatorType":"script","transferSize":3000,"decodedBodySize":9000,"duration":12},
			{"name":"http://localhost:3000/assets/chunk.js","initiatorType":"other","transferSize":1000,"decodedBodySize":3000,"duration":5},
			{"name":"http://localhost:3000/assets/app.css","initiatorType":"link","transferSize":1000,"decodedBodySize":4000,"duration":3},
			{"name":"http://localhost:3000/logo.png","initiatorType":"img","transferSize":5000,"decodedBodySize":5000,"duration":8}
		]`,
		measures: `{"measures":[{"name":"script-eval","duration":40},{"name":"Parse script","duration":10},{"name":"style recalc","duration":6}],"scriptTags":2}`,
	}
}

func (b *fakeBrowser) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBrowser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBrowser) count(call string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (b *fakeBrowser) NewContext(ctx context.Context) (BrowsingContext, error) {
	if b.newContextErr != nil {
		return nil, b.newContextErr
	}
	b.mu.Lock()
	c := &fakeContext{browser: b, id: fmt.Sprintf("ctx-%d", len(b.contexts)+1)}
	b.contexts = append(b.contexts, c)
	b.mu.Unlock()
	c.page = &fakePage{owner: c}
	b.record("newContext")
	return c, nil
}

func (b *fakeBrowser) Close() error {
	b.record("closeBrowser")
	return nil
}

type fakeContext struct {
	browser       *fakeBrowser
	id            string
	page          *fakePage
	closed        bool
	navigatedURLs []string
}

func (c *fakeContext) ID() string { return c.id }

func (c *fakeContext) NewPage(ctx context.Context) (Page, error) {
	return c.page, nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	c.browser.record("closeContext")
	return nil
}

type fakePage struct {
	owner *fakeContext
}

func (p *fakePage) Attach(ctx context.Context) (Session, error) {
	p.owner.browser.record("attach")
	return &fakeSession{browser: p.owner.browser}, nil
}

var errFakeNavigation = errors.New("net::ERR_CONNECTION_REFUSED")

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	b := p.owner.browser
	b.mu.Lock()
	b.navigations++
	n := b.navigations
	b.mu.Unlock()

	b.record("navigate")
	p.owner.navigatedURLs = append(p.owner.navigatedURLs, url)
	if b.failNavigateAt > 0 && n == b.failNavigateAt {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, errFakeNavigation)
	}
	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	b := p.owner.browser
	switch expression {
	case webVitalsExpr:
		return []byte(b.vitals), nil
	case resourcesExpr:
		return []byte(b.resources), nil
	case measuresExpr:
		return []byte(b.measures), nil
	}
	return nil, fmt.Errorf("unexpected expression: %.40s", expression)
}

type fakeSession struct {
	browser *fakeBrowser
}

func (s *fakeSession) EmulateNetwork(ctx context.Context, profile EmulationProfile) error {
	s.browser.record("network:" + profile.Network)
	return nil
}

func (s *fakeSession) SetCPUThrottling(ctx context.Context, rate float64) error {
	s.browser.record(fmt.Sprintf("cpu:%g", rate))
	return nil
}

func (s *fakeSession) EmulateDevice(ctx context.Context, device DeviceDescriptor) error {
	s.browser.record("device:" + device.Name)
	return nil
}

func (s *fakeSession) ClearBrowserCache(ctx context.Context) error {
	s.browser.record("clearCache")
	return nil
}

func (s *fakeSession) Detach(ctx context.Context) error {
	s.browser.record("detach")
	return s.browser.detachErr
}

// staticPage 只返回固定表达式结果的页面
type staticPage struct {
	payload string
	err     error
}

func (p staticPage) Attach(ctx context.Context) (Session, error) { return nil, errors.New("not supported") }
func (p staticPage) Navigate(ctx context.Context, url string) error { return nil }
func (p staticPage) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	return []byte(p.payload), p.err
}

// newTestOrchestrator 不真正 sleep 的编排器，返回记录下的等待次数
func newTestOrchestrator(b Browser) (*Orchestrator, *int) {
	o := NewOrchestrator(b, NewExecutor(false), NewNopLogger(), NewHarnessMetrics())
	sleeps := 0
	o.sleep = func(time.Duration) { sleeps++ }
	return o, &sleeps
}

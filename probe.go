package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// ===============================
// 目标预检（TTFB / 协议协商）
// ===============================

// Protocol 协议类型
type Protocol int

const (
	HTTP1 Protocol = iota
	HTTP2
	HTTP3
)

func (p Protocol) String() string {
	switch p {
	case HTTP1:
		return "HTTP/1.1"
	case HTTP2:
		return "HTTP/2"
	case HTTP3:
		return "HTTP/3"
	default:
		return "Unknown"
	}
}

// ParseProtocol 解析协议字符串
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "HTTP/3", "http3", "h3":
		return HTTP3, nil
	case "HTTP/2", "http2", "h2":
		return HTTP2, nil
	case "HTTP/1.1", "http1", "h1", "":
		return HTTP1, nil
	default:
		return HTTP1, fmt.Errorf("%w: unknown protocol %q (h1|h2|h3)", ErrInvalidArgument, s)
	}
}

// ProbeOptions 预检参数
type ProbeOptions struct {
	Protocol  Protocol
	Count     int
	Timeout   time.Duration
	Interval  time.Duration
	ResolveIP string // 非空时强制连接到该 IP，Host 保持不变
}

// ProbeResult 单次请求的结果
type ProbeResult struct {
	Index       int           `json:"index"`
	Page        PageKind      `json:"page"`
	TTFB        time.Duration `json:"ttfb"`
	StatusCode  int           `json:"statusCode"`
	Reused      bool          `json:"reused"`
	ActualProto string        `json:"actualProto"`
	Error       string        `json:"error,omitempty"`
}

// ProbeSummary 单个页面的预检汇总（TTFB 单位 ms）
type ProbeSummary struct {
	Framework    string             `json:"framework"`
	Page         PageKind           `json:"page"`
	URL          string             `json:"url"`
	Protocol     string             `json:"protocol"`
	TotalTests   int                `json:"totalTests"`
	SuccessCount int                `json:"successCount"`
	FailCount    int                `json:"failCount"`
	TTFB         StatisticalSummary `json:"ttfb"`
	TTFBP90      float64            `json:"ttfbP90"`
	TTFBP99      float64            `json:"ttfbP99"`
}

// ===============================
// HTTP 客户端
// ===============================

// pinnedAddr 把连接地址替换为指定 IP，端口保持不变
func pinnedAddr(ip, addr string) string {
	if ip == "" {
		return addr
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		port = "443"
	}
	return net.JoinHostPort(ip, port)
}

// newProbeClient 按协议创建客户端
func newProbeClient(opts ProbeOptions) *http.Client {
	if opts.Protocol == HTTP3 {
		return newHTTP3Client(opts)
	}

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, pinnedAddr(opts.ResolveIP, addr))
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	if opts.Protocol == HTTP2 {
		// 仅对 https 生效，明文地址会回落到 HTTP/1.1，结果里的 ActualProto 会体现
		transport.TLSClientConfig = &tls.Config{NextProtos: []string{"h2"}}
		transport.ForceAttemptHTTP2 = true
	} else {
		// 不进行 HTTP/2 ALPN 协商
		transport.TLSClientConfig = &tls.Config{NextProtos: []string{"http/1.1"}}
		transport.ForceAttemptHTTP2 = false
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}
}

func newHTTP3Client(opts ProbeOptions) *http.Client {
	transport := &http3.Transport{
		TLSClientConfig: &tls.Config{},
		Dial: func(ctx context.Context, addr string, tlsCfg *tls.Config, cfg *quic.Config) (*quic.Conn, error) {
			udpAddr, err := net.ResolveUDPAddr("udp", pinnedAddr(opts.ResolveIP, addr))
			if err != nil {
				return nil, fmt.Errorf("解析UDP地址失败: %w", err)
			}
			udpConn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return nil, fmt.Errorf("创建UDP连接失败: %w", err)
			}
			return quic.Dial(ctx, udpConn, udpAddr, tlsCfg, cfg)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}
}

// ===============================
// 预检逻辑
// ===============================

// measureRequest 执行单次请求并测量 TTFB
func measureRequest(ctx context.Context, client *http.Client, url string) ProbeResult {
	result := ProbeResult{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("创建请求失败: %v", err)
		return result
	}
	req.Header.Set("User-Agent", MobileDevice.UserAgent)

	var start time.Time
	var ttfb time.Duration
	var reused bool

	trace := &httptrace.ClientTrace{
		GotConn: func(connInfo httptrace.GotConnInfo) {
			reused = connInfo.Reused
		},
		GotFirstResponseByte: func() {
			ttfb = time.Since(start)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("请求失败: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.TTFB = ttfb
	result.StatusCode = resp.StatusCode
	result.Reused = reused
	result.ActualProto = resp.Proto
	if resp.StatusCode >= http.StatusBadRequest {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return result
}

// ProbeFramework 对 home / board 两个页面并行发起 Count 轮请求。
// 单次请求失败只记录在结果里，不中断预检。
func ProbeFramework(ctx context.Context, targets []MeasurementTarget, opts ProbeOptions, logger *Logger) ([]ProbeSummary, map[PageKind][]ProbeResult) {
	if opts.Count < 1 {
		opts.Count = 1
	}
	client := newProbeClient(opts)
	defer client.CloseIdleConnections()

	all := make(map[PageKind][]ProbeResult, len(targets))
rounds:
	for round := 1; round <= opts.Count; round++ {
		logger.Infof("🔄 第 %d/%d 轮预检 (并发 %d 个请求)", round, opts.Count, len(targets))

		results := make([]ProbeResult, len(targets))
		var wg sync.WaitGroup
		for i, t := range targets {
			wg.Add(1)
			go func(idx int, t MeasurementTarget) {
				defer wg.Done()
				r := measureRequest(ctx, client, t.PageURL)
				r.Index = round
				r.Page = t.PageKind
				results[idx] = r
			}(i, t)
		}
		wg.Wait()

		for _, r := range results {
			if r.Error != "" {
				logger.Warnf("  [%s/%s] ❌ 错误: %s", r.Page, opts.Protocol, r.Error)
			} else {
				reusedStr := "新"
				if r.Reused {
					reusedStr = "复用"
				}
				logger.Infof("  [%s/%s] ✓ TTFB: %.2fms [%s] [%s]", r.Page, opts.Protocol, durationMs(r.TTFB), reusedStr, r.ActualProto)
			}
			all[r.Page] = append(all[r.Page], r)
		}

		if round < opts.Count && opts.Interval > 0 {
			select {
			case <-ctx.Done():
				break rounds
			case <-time.After(opts.Interval):
			}
		}
	}

	summaries := make([]ProbeSummary, 0, len(targets))
	for _, t := range targets {
		summaries = append(summaries, summarizeProbe(t, opts.Protocol, all[t.PageKind]))
	}
	return summaries, all
}

// summarizeProbe 只统计成功的请求
func summarizeProbe(target MeasurementTarget, protocol Protocol, results []ProbeResult) ProbeSummary {
	summary := ProbeSummary{
		Framework:  target.FrameworkName,
		Page:       target.PageKind,
		URL:        target.PageURL,
		Protocol:   protocol.String(),
		TotalTests: len(results),
	}

	ttfbValues := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Error != "" {
			summary.FailCount++
			continue
		}
		summary.SuccessCount++
		ttfbValues = append(ttfbValues, durationMs(r.TTFB))
	}
	if len(ttfbValues) == 0 {
		return summary
	}

	summary.TTFB = Summarize(ttfbValues)
	p90, _ := stats.Percentile(ttfbValues, 90)
	p99, _ := stats.Percentile(ttfbValues, 99)
	summary.TTFBP90 = round(p90, 2)
	summary.TTFBP99 = round(p99, 2)
	return summary
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

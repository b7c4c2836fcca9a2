package main

import (
	"errors"
	"fmt"
	"sort"
)

// ===============================
// 网络 / CPU 仿真配置目录
// ===============================

// ErrInvalidArgument 配置名称或参数不合法
var ErrInvalidArgument = errors.New("invalid argument")

// EmulationProfile 一次测量所使用的网络与 CPU 条件。
// 吞吐量单位为 字节/秒（与 CDP 一致），-1 表示不限速。
type EmulationProfile struct {
	Name          string  `json:"name"`
	LatencyMs     float64 `json:"latencyMs"`
	DownloadBps   float64 `json:"downloadBps"`
	UploadBps     float64 `json:"uploadBps"`
	CPUMultiplier float64 `json:"cpuMultiplier"`
	Connection    string  `json:"connection"` // CDP connectionType
	Network       string  `json:"network"`
	CPU           string  `json:"cpu"`
}

// Throttled 是否启用了网络限速
func (p EmulationProfile) Throttled() bool {
	return p.DownloadBps > 0 || p.UploadBps > 0 || p.LatencyMs > 0
}

// Label 人类可读的描述，例如 "4G / 4x CPU"
func (p EmulationProfile) Label() string {
	return fmt.Sprintf("%s / %s CPU", networkPresets[p.Network].label, p.CPU)
}

type networkPreset struct {
	label       string
	connection  string
	latencyMs   float64
	downloadBps float64
	uploadBps   float64
}

const kbps = 1000.0 / 8 // 1 Kbps 对应的 字节/秒

// 固定预设，不允许用户调整，保证不同机器、不同批次之间可比
var networkPresets = map[string]networkPreset{
	"cellular2g": {label: "2G", connection: "cellular2g", latencyMs: 300, downloadBps: 250 * kbps, uploadBps: 50 * kbps},
	"cellular3g": {label: "Good 3G", connection: "cellular3g", latencyMs: 100, downloadBps: 400 * kbps, uploadBps: 400 * kbps},
	"cellular4g": {label: "4G", connection: "cellular4g", latencyMs: 20, downloadBps: 4000 * kbps, uploadBps: 3000 * kbps},
	"none":       {label: "No Throttling", connection: "none", latencyMs: 0, downloadBps: -1, uploadBps: -1},
}

var cpuPresets = map[string]float64{
	"1x": 1,
	"4x": 4,
	"6x": 6,
}

// DefaultNetwork 默认网络条件，对应无后缀的报告文件名
const DefaultNetwork = "cellular4g"

// ResolveProfile 按名称查找仿真配置
func ResolveProfile(connectionName, cpuName string) (EmulationProfile, error) {
	net, ok := networkPresets[connectionName]
	if !ok {
		return EmulationProfile{}, fmt.Errorf("%w: unknown network %q (available: %v)", ErrInvalidArgument, connectionName, NetworkNames())
	}
	cpu, ok := cpuPresets[cpuName]
	if !ok {
		return EmulationProfile{}, fmt.Errorf("%w: unknown cpu %q (available: %v)", ErrInvalidArgument, cpuName, CPUNames())
	}

	return EmulationProfile{
		Name:          connectionName + "-" + cpuName,
		LatencyMs:     net.latencyMs,
		DownloadBps:   net.downloadBps,
		UploadBps:     net.uploadBps,
		CPUMultiplier: cpu,
		Connection:    net.connection,
		Network:       connectionName,
		CPU:           cpuName,
	}, nil
}

// NetworkNames 所有网络预设名称（排序后）
func NetworkNames() []string {
	names := make([]string, 0, len(networkPresets))
	for n := range networkPresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CPUNames 所有 CPU 预设名称
func CPUNames() []string {
	return []string{"1x", "4x", "6x"}
}

// NetworkSuffix 报告文件名后缀，默认网络条件无后缀
func NetworkSuffix(network string) string {
	if network == "" || network == DefaultNetwork {
		return ""
	}
	return "_" + network
}

// ===============================
// 移动设备描述
// ===============================

// DeviceDescriptor 设备仿真参数
type DeviceDescriptor struct {
	Name              string
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	Touch             bool
	UserAgent         string
}

// MobileDevice 中端安卓设备（Pixel 5）
var MobileDevice = DeviceDescriptor{
	Name:              "Pixel 5",
	Width:             393,
	Height:            851,
	DeviceScaleFactor: 2.75,
	Mobile:            true,
	Touch:             true,
	UserAgent:         "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

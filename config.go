package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ===============================
// 配置加载模块
// ===============================

// 默认配置文件路径
const defaultConfigPath = "config.yaml"

// 看板种子数据中固定的 board id
const defaultBoardID = "b05927a0-76d2-42d5-8ad3-a1b93c39698c"

// Config 运行时配置
type Config struct {
	Name              string        // 框架名称
	URL               string        // 被测应用基础 URL
	Runs              int           // 每个页面、每种缓存模式的运行次数
	Network           string        // 网络预设名称
	CPU               string        // CPU 降速预设名称
	Mobile            bool          // 是否启用移动设备仿真
	BoardID           string        // board 页面使用的 id
	NavigationTimeout time.Duration // 等待网络空闲的上限

	Browser    BrowserConfig
	Output     OutputConfig
	Frameworks []FrameworkEntry // suite 命令使用的静态注册表

	DatabaseURL string // 为空时不写数据库
}

// BrowserConfig 浏览器启动配置
type BrowserConfig struct {
	ExecPath string
	Headless bool
	Flags    []string
}

// OutputConfig 输出配置
type OutputConfig struct {
	MetricsDir       string // 输出目录
	EnableLog        bool   // 是否写日志文件
	EnableHTML       bool   // 是否生成 HTML 报告
	EnablePrometheus bool   // 是否写 Prometheus textfile
}

// FrameworkEntry 注册表中的一个框架
type FrameworkEntry struct {
	Name string
	URL  string
}

// DefaultConfig 所有字段的默认值
func DefaultConfig() *Config {
	return &Config{
		Runs:              10,
		Network:           DefaultNetwork,
		CPU:               "1x",
		Mobile:            true,
		BoardID:           defaultBoardID,
		NavigationTimeout: 30 * time.Second,
		Browser:           BrowserConfig{Headless: true},
		Output:            OutputConfig{MetricsDir: "metrics"},
	}
}

// ===============================
// YAML 配置结构
// ===============================

type yamlConfig struct {
	Runs              int    `yaml:"runs"`
	Network           string `yaml:"network"`
	CPU               string `yaml:"cpu"`
	Mobile            *bool  `yaml:"mobile"`
	BoardID           string `yaml:"board_id"`
	NavigationTimeout string `yaml:"navigation_timeout"`
	Browser           struct {
		ExecPath string   `yaml:"exec_path"`
		Headless *bool    `yaml:"headless"`
		Flags    []string `yaml:"flags"`
	} `yaml:"browser"`
	Output struct {
		MetricsDir       string `yaml:"metrics_dir"`
		EnableLog        bool   `yaml:"enable_log"`
		EnableHTML       bool   `yaml:"enable_html"`
		EnablePrometheus bool   `yaml:"enable_prometheus"`
	} `yaml:"output"`
	DatabaseURL string `yaml:"database_url"`
	Frameworks  []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"frameworks"`
}

// LoadConfig 从 YAML 文件加载配置。
// 使用默认路径且文件不存在时返回默认配置。
func LoadConfig(path string) (*Config, error) {
	isDefault := path == "" || path == defaultConfigPath
	if path == "" {
		path = defaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if isDefault && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if yc.Runs != 0 {
		cfg.Runs = yc.Runs
	}
	if yc.Network != "" {
		cfg.Network = yc.Network
	}
	if yc.CPU != "" {
		cfg.CPU = yc.CPU
	}
	if yc.Mobile != nil {
		cfg.Mobile = *yc.Mobile
	}
	if yc.BoardID != "" {
		cfg.BoardID = yc.BoardID
	}

	// 解析导航超时
	if yc.NavigationTimeout != "" {
		timeout, err := time.ParseDuration(yc.NavigationTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: navigation_timeout %q: %v", ErrInvalidArgument, yc.NavigationTimeout, err)
		}
		cfg.NavigationTimeout = timeout
	}

	cfg.Browser.ExecPath = yc.Browser.ExecPath
	cfg.Browser.Flags = yc.Browser.Flags
	if yc.Browser.Headless != nil {
		cfg.Browser.Headless = *yc.Browser.Headless
	}

	if yc.Output.MetricsDir != "" {
		cfg.Output.MetricsDir = yc.Output.MetricsDir
	}
	cfg.Output.EnableLog = yc.Output.EnableLog
	cfg.Output.EnableHTML = yc.Output.EnableHTML
	cfg.Output.EnablePrometheus = yc.Output.EnablePrometheus
	cfg.DatabaseURL = yc.DatabaseURL

	// 转换框架注册表
	cfg.Frameworks = make([]FrameworkEntry, len(yc.Frameworks))
	for i, f := range yc.Frameworks {
		cfg.Frameworks[i] = FrameworkEntry{Name: f.Name, URL: f.URL}
	}

	return cfg, nil
}

// Validate 在任何浏览器操作之前检查配置
func (c *Config) Validate(requireURL bool) error {
	if c.Runs < 1 {
		return fmt.Errorf("%w: --runs must be a positive number, got %d", ErrInvalidArgument, c.Runs)
	}
	if _, err := ResolveProfile(c.Network, c.CPU); err != nil {
		return err
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("%w: navigation timeout must be positive", ErrInvalidArgument)
	}
	if requireURL {
		if c.URL == "" {
			return fmt.Errorf("%w: --url is required", ErrInvalidArgument)
		}
		if err := checkURL(c.URL); err != nil {
			return err
		}
	}
	for _, f := range c.Frameworks {
		if f.Name == "" {
			return fmt.Errorf("%w: framework entry without name (%s)", ErrInvalidArgument, f.URL)
		}
		if err := checkURL(f.URL); err != nil {
			return fmt.Errorf("framework %s: %w", f.Name, err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: invalid url %q", ErrInvalidArgument, raw)
	}
	return nil
}

// InferFrameworkName 未指定 --name 时从 URL 主机名推断
func InferFrameworkName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimSuffix(u.Hostname(), ".pages.dev")
}

// BrowserOptions 转换为浏览器启动参数
func (c *Config) BrowserOptions() BrowserOptions {
	return BrowserOptions{
		ExecPath:          c.Browser.ExecPath,
		Headless:          c.Browser.Headless,
		Flags:             c.Browser.Flags,
		NavigationTimeout: c.NavigationTimeout,
	}
}

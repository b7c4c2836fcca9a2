package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Prometheus textfile 文件名
const metricsTextfile = "framework-bench.prom"

// cliOptions 命令行参数，非零值覆盖配置文件
type cliOptions struct {
	configPath string
	metricsDir string

	url     string
	name    string
	runs    int
	network string
	cpu     string

	watch       bool
	databaseURL string

	protocol  string
	count     int
	interval  time.Duration
	resolveIP string
}

// ===============================
// 主函数
// ===============================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd 根命令即单框架测量，子命令为 suite / aggregate / probe
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "framework-bench",
		Short: "Measure bundle size and Core Web Vitals of a web app under mobile emulation",
		Long: `framework-bench drives headless Chrome over CDP against a running app and
measures the home page and one board page in cold-load and warm-load modes.

Examples:
  framework-bench --url http://localhost:3000 --name react
  framework-bench --url http://localhost:3000 --runs 5 --network cellular3g
  framework-bench suite
  framework-bench aggregate --watch
  framework-bench probe --url http://localhost:3000 --protocol h2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, true)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runMeasure(cmd.Context(), cfg, stdout, stderr)
		},
	}
	// stdout 只输出 JSON 结果，帮助与用法信息都写到 stderr
	root.SetOut(stderr)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	pf.StringVar(&opts.metricsDir, "metrics-dir", "", "output directory (overrides output.metrics_dir)")

	f := root.Flags()
	f.StringVar(&opts.url, "url", "", "base URL of the app under test")
	f.StringVar(&opts.name, "name", "", "framework name (default: inferred from URL host)")
	f.IntVar(&opts.runs, "runs", 0, "timed runs per page and cache mode (default 10)")
	f.StringVar(&opts.network, "network", "", "network preset: cellular2g|cellular3g|cellular4g|none")
	f.StringVar(&opts.cpu, "cpu", "", "CPU throttling preset: 1x|4x|6x")

	root.AddCommand(newSuiteCmd(opts, stdout, stderr), newAggregateCmd(opts, stderr), newProbeCmd(opts, stderr))
	return root
}

func newSuiteCmd(opts *cliOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Measure every framework in the config registry sequentially",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, false)
			if err != nil {
				return err
			}
			if len(cfg.Frameworks) == 0 {
				return fmt.Errorf("%w: no frameworks configured", ErrInvalidArgument)
			}
			cmd.SilenceUsage = true
			return runSuite(cmd.Context(), cfg, stdout, stderr)
		},
	}
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "timed runs per page and cache mode (default 10)")
	cmd.Flags().StringVar(&opts.network, "network", "", "network preset: cellular2g|cellular3g|cellular4g|none")
	cmd.Flags().StringVar(&opts.cpu, "cpu", "", "CPU throttling preset: 1x|4x|6x")
	return cmd
}

func newAggregateCmd(opts *cliOptions, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Build final-measurements.{json,md}, charts and optional HTML from per-framework reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, false)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runAggregate(cmd.Context(), cfg, opts.watch, stderr)
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-aggregate whenever a report file changes")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "also store the cells in PostgreSQL")
	return cmd
}

func newProbeCmd(opts *cliOptions, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Preflight TTFB and protocol check of the home and board routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, true)
			if err != nil {
				return err
			}
			protocol, err := ParseProtocol(opts.protocol)
			if err != nil {
				return err
			}
			if opts.count < 1 {
				return fmt.Errorf("%w: --count must be a positive number, got %d", ErrInvalidArgument, opts.count)
			}
			cmd.SilenceUsage = true
			return runProbe(cmd.Context(), cfg, ProbeOptions{
				Protocol:  protocol,
				Count:     opts.count,
				Timeout:   cfg.NavigationTimeout,
				Interval:  opts.interval,
				ResolveIP: opts.resolveIP,
			}, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "base URL of the app under test")
	cmd.Flags().StringVar(&opts.name, "name", "", "framework name (default: inferred from URL host)")
	cmd.Flags().StringVar(&opts.protocol, "protocol", "h1", "h1|h2|h3")
	cmd.Flags().IntVar(&opts.count, "count", 5, "request rounds")
	cmd.Flags().DurationVar(&opts.interval, "interval", 200*time.Millisecond, "pause between rounds")
	cmd.Flags().StringVar(&opts.resolveIP, "resolve", "", "connect to this IP instead of resolving the host")
	return cmd
}

// resolve 加载配置文件，应用命令行覆盖，并在任何浏览器操作之前校验
func (o *cliOptions) resolve(cmd *cobra.Command, requireURL bool) (*Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.metricsDir != "" {
		cfg.Output.MetricsDir = o.metricsDir
	}
	if o.url != "" {
		cfg.URL = o.url
	}
	if o.name != "" {
		cfg.Name = o.name
	}
	if cmd.Flags().Changed("runs") {
		cfg.Runs = o.runs
	}
	if o.network != "" {
		cfg.Network = o.network
	}
	if o.cpu != "" {
		cfg.CPU = o.cpu
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}

	if err := cfg.Validate(requireURL); err != nil {
		return nil, err
	}
	if cfg.Name == "" && cfg.URL != "" {
		cfg.Name = InferFrameworkName(cfg.URL)
	}
	return cfg, nil
}

// ===============================
// 测量
// ===============================

func runMeasure(ctx context.Context, cfg *Config, stdout, stderr io.Writer) error {
	profile, err := ResolveProfile(cfg.Network, cfg.CPU)
	if err != nil {
		return err
	}

	logger, err := NewLogger(cfg.Output.MetricsDir, cfg.Output.EnableLog, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("🚀 框架性能测量工具")
	logger.LogConfig(*cfg, profile)

	metrics := NewHarnessMetrics()
	cells, err := measureFramework(ctx, cfg, profile, logger, metrics)
	writeHarnessMetrics(cfg, metrics, logger)
	if err != nil {
		logger.Errorf("❌ 测量失败: %v", err)
		return err
	}

	data, err := json.MarshalIndent(cells, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON 序列化失败: %w", err)
	}
	fmt.Fprintln(stdout, string(data))

	if err := saveReport(cfg, cells, logger); err != nil {
		return err
	}

	printSummaryTable(stderr, cells)
	logger.Info("✅ 测量完成!")
	return nil
}

func runSuite(ctx context.Context, cfg *Config, stdout, stderr io.Writer) error {
	profile, err := ResolveProfile(cfg.Network, cfg.CPU)
	if err != nil {
		return err
	}

	logger, err := NewLogger(cfg.Output.MetricsDir, cfg.Output.EnableLog, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	metrics := NewHarnessMetrics()
	defer writeHarnessMetrics(cfg, metrics, logger)

	var all []AggregatedCellStats
	for i, fw := range cfg.Frameworks {
		fwCfg := *cfg
		fwCfg.Name = fw.Name
		fwCfg.URL = fw.URL

		logger.Section(fmt.Sprintf("%d/%d %s", i+1, len(cfg.Frameworks), fw.Name))
		logger.LogConfig(fwCfg, profile)

		// 逐个测量，一个框架一个浏览器进程
		cells, err := measureFramework(ctx, &fwCfg, profile, logger, metrics)
		if err != nil {
			logger.Errorf("❌ %s 测量失败: %v", fw.Name, err)
			return fmt.Errorf("framework %s: %w", fw.Name, err)
		}
		if err := saveReport(&fwCfg, cells, logger); err != nil {
			return err
		}
		all = append(all, cells...)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON 序列化失败: %w", err)
	}
	fmt.Fprintln(stdout, string(data))

	printSummaryTable(stderr, all)
	logger.Info("✅ 全部框架测量完成!")
	return nil
}

func measureFramework(ctx context.Context, cfg *Config, profile EmulationProfile, logger *Logger, metrics *HarnessMetrics) ([]AggregatedCellStats, error) {
	browser, err := LaunchBrowser(ctx, cfg.BrowserOptions())
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	orchestrator := NewOrchestrator(browser, NewExecutor(cfg.Mobile), logger, metrics)
	return orchestrator.MeasureFramework(ctx, cfg.Name, cfg.URL, cfg.BoardID, profile, cfg.Runs)
}

func saveReport(cfg *Config, cells []AggregatedCellStats, logger *Logger) error {
	report := NewFrameworkReport(cfg, cells, time.Now())
	path, err := SaveFrameworkReport(cfg.Output.MetricsDir, report, cfg.Network)
	if err != nil {
		return err
	}
	logger.Infof("📄 JSON 报告: %s", path)
	return nil
}

func writeHarnessMetrics(cfg *Config, metrics *HarnessMetrics, logger *Logger) {
	if !cfg.Output.EnablePrometheus {
		return
	}
	if err := os.MkdirAll(cfg.Output.MetricsDir, 0755); err != nil {
		logger.Warnf("⚠️ 创建输出目录失败: %v", err)
		return
	}
	path := filepath.Join(cfg.Output.MetricsDir, metricsTextfile)
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warnf("⚠️ 写入 Prometheus 指标失败: %v", err)
		return
	}
	logger.Infof("📈 Prometheus 指标: %s", path)
}

// ===============================
// 聚合
// ===============================

func runAggregate(ctx context.Context, cfg *Config, watch bool, stderr io.Writer) error {
	logger, err := NewLogger(cfg.Output.MetricsDir, cfg.Output.EnableLog, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	var store *ResultStore
	if cfg.DatabaseURL != "" {
		store, err = OpenResultStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	rebuild := func() error {
		return aggregateOnce(ctx, cfg, store, logger, stderr)
	}

	if err := rebuild(); err != nil {
		if !watch {
			logger.Errorf("❌ 聚合失败: %v", err)
			return err
		}
		logger.Warnf("⚠️ 首次聚合失败: %v", err)
	}
	if !watch {
		return nil
	}
	return WatchReports(ctx, cfg.Output.MetricsDir, defaultWatchDebounce, logger, rebuild)
}

func aggregateOnce(ctx context.Context, cfg *Config, store *ResultStore, logger *Logger, stderr io.Writer) error {
	logger.Section("报告生成")

	reports, err := LoadFrameworkReports(cfg.Output.MetricsDir, logger)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("%w in %s", errNoReports, cfg.Output.MetricsDir)
	}
	logger.Infof("📂 读取到 %d 份框架报告", len(reports))

	cells, metas := CollectResults(reports)
	artifacts, err := BuildReport(cells, metas, time.Now())
	if err != nil {
		return err
	}

	paths, err := WriteArtifacts(cfg.Output.MetricsDir, artifacts, cfg.Output.EnableHTML)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Infof("📄 %s", p)
	}

	if store != nil {
		batchID := uuid.NewString()
		if err := store.SaveCells(ctx, batchID, cells); err != nil {
			return err
		}
		logger.Infof("🗄️ 已写入数据库 (batch %s, %d 行)", batchID, len(cells))
	}

	printSummaryTable(stderr, cells)
	return nil
}

// ===============================
// 预检
// ===============================

func runProbe(ctx context.Context, cfg *Config, opts ProbeOptions, stderr io.Writer) error {
	logger, err := NewLogger(cfg.Output.MetricsDir, cfg.Output.EnableLog, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Infof("🚀 目标预检 %s (%s, %d 轮)", cfg.URL, opts.Protocol, opts.Count)

	report := &ProbeReport{
		StartTime: logger.GetStartTime(),
		URL:       cfg.URL,
		Protocol:  opts.Protocol.String(),
		Count:     opts.Count,
	}

	targets := NewTargets(cfg.Name, cfg.URL, cfg.BoardID)
	summaries, results := ProbeFramework(ctx, targets, opts, logger)
	report.Finalize(summaries, results)
	printProbeTable(stderr, summaries)

	path, err := ExportProbeJSON(report, cfg.Output.MetricsDir)
	if err != nil {
		logger.Errorf("导出 JSON 报告失败: %v", err)
	} else {
		logger.Infof("📄 JSON 报告: %s", path)
	}
	if logger.GetLogPath() != "" {
		logger.Infof("📝 日志文件: %s", logger.GetLogPath())
	}
	return nil
}

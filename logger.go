package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ===============================
// 日志模块
// ===============================

// Logger 日志记录器：控制台输出到 stderr（stdout 保留给 JSON 结果），
// 启用时同时以 JSON 格式写入日志文件
type Logger struct {
	*zap.SugaredLogger
	file      *os.File
	startTime time.Time
	logPath   string
}

// NewLogger 创建新的日志记录器，会自动创建日志目录和文件
func NewLogger(outputDir string, enabled bool, console io.Writer) (*Logger, error) {
	logger := &Logger{startTime: time.Now()}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCfg.EncodeCaller = nil
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), zapcore.InfoLevel),
	}

	if enabled {
		logDir := filepath.Join(outputDir, "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		timestamp := logger.startTime.Format("2006-01-02_15-04-05")
		logger.logPath = filepath.Join(logDir, fmt.Sprintf("%s.log", timestamp))

		file, err := os.Create(logger.logPath)
		if err != nil {
			return nil, fmt.Errorf("创建日志文件失败: %w", err)
		}
		logger.file = file

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), zapcore.DebugLevel))
	}

	logger.SugaredLogger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return logger, nil
}

// NewNopLogger 不输出任何内容的日志记录器（测试用）
func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), startTime: time.Now()}
}

// Close 刷新缓冲并关闭日志文件
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// GetLogPath 获取日志文件路径
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// GetStartTime 获取开始时间
func (l *Logger) GetStartTime() time.Time {
	return l.startTime
}

// Section 输出分隔区域
func (l *Logger) Section(title string) {
	l.Infof("==================== %s ====================", title)
}

// LogConfig 记录测量配置
func (l *Logger) LogConfig(cfg Config, profile EmulationProfile) {
	l.Section("测量配置")
	l.Infow("framework", "name", cfg.Name, "url", cfg.URL)
	l.Infow("conditions",
		"runsPerPage", cfg.Runs,
		"network", profile.Network,
		"cpu", profile.CPU,
		"profile", profile.Label(),
		"mobile", cfg.Mobile,
		"navigationTimeout", cfg.NavigationTimeout.String(),
	)
	if len(cfg.Browser.Flags) > 0 {
		l.Infow("browser", "flags", strings.Join(cfg.Browser.Flags, " "), "headless", cfg.Browser.Headless)
	}
}
